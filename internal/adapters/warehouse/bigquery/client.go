package bigquery

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	bq "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
)

// api is the slice of the BigQuery client the warehouse drives
type api interface {
	ensureDataset(ctx context.Context, dataset, location string) error
	ensureTable(ctx context.Context, dataset, table string, schema bq.Schema, clustering []string) error
	load(ctx context.Context, dataset, table string, ndjson []byte, schema bq.Schema) error
	exec(ctx context.Context, sql string) error
	count(ctx context.Context, sql string) (int64, error)
	deleteTable(ctx context.Context, dataset, table string) error
	close() error
}

type client struct{ c *bq.Client }

func status(err error) int {
	var g *googleapi.Error
	if errors.As(err, &g) {
		return g.Code
	}
	return 0
}

func (a *client) ensureDataset(ctx context.Context, dataset, location string) error {
	ds := a.c.Dataset(dataset)
	_, err := ds.Metadata(ctx)
	if status(err) != http.StatusNotFound {
		return err
	}
	err = ds.Create(ctx, &bq.DatasetMetadata{Location: location})
	if status(err) == http.StatusConflict {
		return nil
	}
	return err
}

func (a *client) ensureTable(ctx context.Context, dataset, table string, schema bq.Schema, clustering []string) error {
	t := a.c.Dataset(dataset).Table(table)
	_, err := t.Metadata(ctx)
	if status(err) != http.StatusNotFound {
		return err
	}
	md := &bq.TableMetadata{Schema: schema}
	if len(clustering) > 0 {
		md.Clustering = &bq.Clustering{Fields: clustering}
	}
	err = t.Create(ctx, md)
	if status(err) == http.StatusConflict {
		return nil
	}
	return err
}

func (a *client) load(ctx context.Context, dataset, table string, ndjson []byte, schema bq.Schema) error {
	src := bq.NewReaderSource(bytes.NewReader(ndjson))
	src.SourceFormat = bq.JSON
	src.Schema = schema
	l := a.c.Dataset(dataset).Table(table).LoaderFrom(src)
	l.WriteDisposition = bq.WriteTruncate
	l.CreateDisposition = bq.CreateIfNeeded
	job, err := l.Run(ctx)
	if err != nil {
		return err
	}
	st, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return st.Err()
}

func (a *client) exec(ctx context.Context, sql string) error {
	job, err := a.c.Query(sql).Run(ctx)
	if err != nil {
		return err
	}
	st, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return st.Err()
}

func (a *client) count(ctx context.Context, sql string) (int64, error) {
	it, err := a.c.Query(sql).Read(ctx)
	if err != nil {
		return 0, err
	}
	var row []bq.Value
	if err := it.Next(&row); err != nil {
		if errors.Is(err, iterator.Done) {
			return 0, nil
		}
		return 0, err
	}
	n, _ := row[0].(int64)
	return n, nil
}

func (a *client) deleteTable(ctx context.Context, dataset, table string) error {
	err := a.c.Dataset(dataset).Table(table).Delete(ctx)
	if status(err) == http.StatusNotFound {
		return nil
	}
	return err
}

func (a *client) close() error { return a.c.Close() }
