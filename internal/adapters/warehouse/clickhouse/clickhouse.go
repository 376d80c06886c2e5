// Package clickhouse loads batches into a ReplacingMergeTree table keyed by row_key
package clickhouse

import (
	"context"
	"fmt"
	"strings"

	"stockpipe/internal/adapters/warehouse"
	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/store"
	"stockpipe/internal/platform/store/ch"
)

// dedupWindow is how many recent insert tokens the table remembers
const dedupWindow = 1000

// Warehouse commits through a store.Clickhouse seam
type Warehouse struct {
	conn     store.Clickhouse
	database string
	owned    bool
}

// Option configures a Warehouse
type Option func(*Warehouse)

// Owned makes Close also close the connection
func Owned() Option { return func(w *Warehouse) { w.owned = true } }

// New returns a warehouse writing to database (maps to the dataset name)
func New(conn store.Clickhouse, database string, opts ...Option) *Warehouse {
	if conn == nil {
		panic("clickhouse warehouse: nil connection")
	}
	if database == "" {
		database = "default"
	}
	w := &Warehouse{conn: conn, database: database}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Name implements warehouse.Warehouse
func (w *Warehouse) Name() string { return "clickhouse" }

func (w *Warehouse) table(s record.Schema) string {
	return quote(w.database) + "." + quote(s.Table)
}

// Ensure creates the database and table when missing
func (w *Warehouse) Ensure(ctx context.Context, s record.Schema) error {
	if err := s.Check(); err != nil {
		return err
	}
	if err := w.conn.Exec(ctx, "CREATE DATABASE IF NOT EXISTS "+quote(w.database)); err != nil {
		return perr.FromClickHouse(err, "create database "+w.database)
	}
	if err := w.conn.Exec(ctx, CreateTableSQL(w.database, s)); err != nil {
		return perr.FromClickHouse(err, "create table "+s.Table)
	}
	return nil
}

// Commit sends b as one native insert block. The block carries the batch token
// as insert_deduplication_token so a retried block is dropped server side
func (w *Warehouse) Commit(ctx context.Context, s record.Schema, b warehouse.Batch) error {
	if len(b.Rows) == 0 {
		return nil
	}
	rows := make([][]any, len(b.Rows))
	for i, r := range b.Rows {
		if len(r.Values) != len(s.Fields) {
			return perr.SchemaViolationf("row %s has %d values, schema has %d fields", r.Key, len(r.Values), len(s.Fields))
		}
		vals := make([]any, 0, len(r.Values)+1)
		vals = append(vals, r.Key)
		for _, v := range r.Values {
			vals = append(vals, v.Any())
		}
		rows[i] = vals
	}
	cols := warehouse.Columns(s)
	for i := range cols {
		cols[i] = quote(cols[i])
	}
	settings := ch.Settings{"insert_deduplication_token": b.Token}
	if err := w.conn.Insert(ctx, w.table(s), cols, rows, settings); err != nil {
		return perr.FromClickHouse(err, fmt.Sprintf("insert batch %s", short(b.Token)))
	}
	return nil
}

// Count returns the deduplicated row count
func (w *Warehouse) Count(ctx context.Context, s record.Schema) (int64, error) {
	rows, err := w.conn.Query(ctx, "SELECT count() FROM "+w.table(s)+" FINAL")
	if err != nil {
		return 0, perr.FromClickHouse(err, "count "+s.Table)
	}
	defer rows.Close()
	var n uint64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, perr.FromClickHouse(err, "scan count")
		}
	}
	if err := rows.Err(); err != nil {
		return 0, perr.FromClickHouse(err, "count "+s.Table)
	}
	return int64(n), nil
}

// Close closes the connection when the warehouse owns it
func (w *Warehouse) Close() error {
	if w.owned {
		return w.conn.Close()
	}
	return nil
}

// CreateTableSQL renders the DDL for s under database
func CreateTableSQL(database string, s record.Schema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s.%s (\n", quote(database), quote(s.Table))
	fmt.Fprintf(&b, "  %s String", quote(warehouse.KeyColumn))
	for _, f := range s.Fields {
		fmt.Fprintf(&b, ",\n  %s %s", quote(f.Name), columnType(f))
		if f.Description != "" {
			fmt.Fprintf(&b, " COMMENT '%s'", strings.ReplaceAll(f.Description, "'", "\\'"))
		}
	}
	fmt.Fprintf(&b, "\n) ENGINE = ReplacingMergeTree\nORDER BY %s\n", quote(warehouse.KeyColumn))
	fmt.Fprintf(&b, "SETTINGS non_replicated_deduplication_window = %d", dedupWindow)
	return b.String()
}

func columnType(f record.FieldSpec) string {
	var t string
	switch f.Kind {
	case record.KindString:
		t = "String"
	case record.KindFloat:
		t = "Float64"
	case record.KindInt:
		t = "Int64"
	case record.KindBool:
		t = "Bool"
	case record.KindDate:
		t = "Date32"
	case record.KindTimestamp:
		t = "DateTime64(3, 'UTC')"
	default:
		t = "String"
	}
	if f.Required {
		return t
	}
	return "Nullable(" + t + ")"
}

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "\\`") + "`"
}

func short(token string) string {
	if len(token) > 12 {
		return token[:12]
	}
	return token
}
