// Package bigquery loads batches through a per batch staging table merged by row_key
package bigquery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/warehouse"
	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

// Target names the destination dataset
type Target struct {
	Project  string // empty -> credential project
	Dataset  string
	Location string
}

// Warehouse commits batches to BigQuery
type Warehouse struct {
	api     api
	project string
	target  Target
}

var newClient = func(ctx context.Context, project, location string, cred credentials.Credential) (api, error) {
	c, err := bq.NewClient(ctx, project, option.WithCredentialsJSON(cred.JSON()))
	if err != nil {
		return nil, err
	}
	c.Location = location
	return &client{c: c}, nil
}

// New opens a client for t authenticated with cred
func New(ctx context.Context, t Target, cred credentials.Credential) (*Warehouse, error) {
	if cred.IsZero() {
		return nil, perr.CredentialMissingf("bigquery: no service account credential")
	}
	if t.Project == "" {
		t.Project = cred.ProjectID()
	}
	if t.Project == "" || t.Dataset == "" {
		return nil, perr.InvalidArgf("bigquery: project and dataset are required")
	}
	if t.Location == "" {
		t.Location = "US"
	}
	a, err := newClient(ctx, t.Project, t.Location, cred)
	if err != nil {
		return nil, perr.FromBigQuery(err, "bigquery: new client")
	}
	return &Warehouse{api: a, project: t.Project, target: t}, nil
}

// Name implements warehouse.Warehouse
func (w *Warehouse) Name() string { return "bigquery" }

// Ensure creates the dataset in the configured location and the table with s
func (w *Warehouse) Ensure(ctx context.Context, s record.Schema) error {
	if err := s.Check(); err != nil {
		return err
	}
	if err := w.api.ensureDataset(ctx, w.target.Dataset, w.target.Location); err != nil {
		return perr.FromBigQuery(err, "ensure dataset "+w.target.Dataset)
	}
	if err := w.api.ensureTable(ctx, w.target.Dataset, s.Table, TableSchema(s), s.KeyFields); err != nil {
		return perr.FromBigQuery(err, "ensure table "+s.Table)
	}
	return nil
}

// Commit loads b into a staging table (WRITE_TRUNCATE) and merges it into the
// target by row_key in one DML statement; the staging table is dropped afterwards
func (w *Warehouse) Commit(ctx context.Context, s record.Schema, b warehouse.Batch) error {
	if len(b.Rows) == 0 {
		return nil
	}
	body, err := EncodeRows(s, b.Rows)
	if err != nil {
		return err
	}
	stg := StagingTable(s.Table, b.Token)
	defer func() {
		if err := w.api.deleteTable(context.WithoutCancel(ctx), w.target.Dataset, stg); err != nil {
			logger.C(ctx).Warn().Err(err).Str("table", stg).Msg("bigquery: drop staging table failed")
		}
	}()

	if err := w.api.load(ctx, w.target.Dataset, stg, body, TableSchema(s)); err != nil {
		return perr.FromBigQuery(err, "load staging "+stg)
	}
	if err := w.api.exec(ctx, MergeSQL(w.project, w.target.Dataset, s, stg)); err != nil {
		return perr.FromBigQuery(err, "merge "+stg)
	}
	return nil
}

// Count returns the table row count
func (w *Warehouse) Count(ctx context.Context, s record.Schema) (int64, error) {
	n, err := w.api.count(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableRef(w.project, w.target.Dataset, s.Table)))
	if err != nil {
		return 0, perr.FromBigQuery(err, "count "+s.Table)
	}
	return n, nil
}

// Close releases the client
func (w *Warehouse) Close() error { return w.api.close() }

// TableSchema maps s to a BigQuery schema with the row_key column first
func TableSchema(s record.Schema) bq.Schema {
	out := bq.Schema{{Name: warehouse.KeyColumn, Type: bq.StringFieldType, Required: true, Description: "identity of the row"}}
	for _, f := range s.Fields {
		out = append(out, &bq.FieldSchema{Name: f.Name, Type: fieldType(f.Kind), Required: f.Required, Description: f.Description})
	}
	return out
}

func fieldType(k record.Kind) bq.FieldType {
	switch k {
	case record.KindFloat:
		return bq.FloatFieldType
	case record.KindInt:
		return bq.IntegerFieldType
	case record.KindBool:
		return bq.BooleanFieldType
	case record.KindDate:
		return bq.DateFieldType
	case record.KindTimestamp:
		return bq.TimestampFieldType
	default:
		return bq.StringFieldType
	}
}

// EncodeRows renders rows as newline delimited JSON for a load job
func EncodeRows(s record.Schema, rows []warehouse.Row) ([]byte, error) {
	var buf bytes.Buffer
	for _, r := range rows {
		if len(r.Values) != len(s.Fields) {
			return nil, perr.SchemaViolationf("row %s has %d values, schema has %d fields", r.Key, len(r.Values), len(s.Fields))
		}
		rec := record.New(record.Field{Name: warehouse.KeyColumn, Value: record.String(r.Key)})
		for i, f := range s.Fields {
			rec.Set(f.Name, r.Values[i])
		}
		line, err := json.Marshal(rec)
		if err != nil {
			return nil, perr.Wrapf(err, perr.ErrorCodeSchemaViolation, "encode row %s", r.Key)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// StagingTable names the staging table of a batch token
func StagingTable(table, token string) string {
	if len(token) > 16 {
		token = token[:16]
	}
	return table + "__stg_" + token
}

// MergeSQL upserts the staging table into the target by row_key
func MergeSQL(project, dataset string, s record.Schema, staging string) string {
	cols := warehouse.Columns(s)
	set := make([]string, 0, len(s.Fields))
	ins := make([]string, len(cols))
	vals := make([]string, len(cols))
	for i, c := range cols {
		ins[i] = quote(c)
		vals[i] = "S." + quote(c)
		if c != warehouse.KeyColumn {
			set = append(set, fmt.Sprintf("%s = S.%s", quote(c), quote(c)))
		}
	}
	var b strings.Builder
	fmt.Fprintf(&b, "MERGE %s T\n", tableRef(project, dataset, s.Table))
	fmt.Fprintf(&b, "USING %s S\n", tableRef(project, dataset, staging))
	fmt.Fprintf(&b, "ON T.%s = S.%s\n", quote(warehouse.KeyColumn), quote(warehouse.KeyColumn))
	fmt.Fprintf(&b, "WHEN MATCHED THEN UPDATE SET %s\n", strings.Join(set, ", "))
	fmt.Fprintf(&b, "WHEN NOT MATCHED THEN INSERT (%s) VALUES (%s)", strings.Join(ins, ", "), strings.Join(vals, ", "))
	return b.String()
}

func tableRef(project, dataset, table string) string {
	return "`" + project + "." + dataset + "." + table + "`"
}

func quote(ident string) string { return "`" + ident + "`" }
