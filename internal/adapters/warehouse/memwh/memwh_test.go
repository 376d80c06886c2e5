package memwh

import (
	"context"
	"testing"
	"time"

	"stockpipe/internal/adapters/warehouse"
	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
	kit "stockpipe/internal/platform/testkit"
)

func row(key string, price float64) warehouse.Row {
	s := record.StockSchema("")
	r := record.New(
		record.Field{Name: record.FieldStockName, Value: record.String(key)},
		record.Field{Name: record.FieldDate, Value: record.Date(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))},
		record.Field{Name: record.FieldPrice, Value: record.Float(price)},
	)
	return warehouse.Row{Key: key, Values: s.Project(r)}
}

func TestCommitUpsertsByKey(t *testing.T) {
	ctx := context.Background()
	s := record.StockSchema("")
	w := New()
	if err := w.Ensure(ctx, s); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(ctx, s, warehouse.Batch{Token: "a", Rows: []warehouse.Row{row("k1", 1), row("k2", 2)}}); err != nil {
		t.Fatal(err)
	}
	if err := w.Commit(ctx, s, warehouse.Batch{Token: "b", Rows: []warehouse.Row{row("k2", 20), row("k3", 3)}}); err != nil {
		t.Fatal(err)
	}
	n, err := w.Count(ctx, s)
	if err != nil || n != 3 {
		t.Fatalf("Count = %d, %v", n, err)
	}
	rows := w.Rows(s.Table)
	if rows[1].Key != "k2" || rows[1].Values[2].Float() != 20 {
		t.Fatalf("k2 not overwritten in place: %+v", rows[1])
	}
	if w.Commits() != 2 {
		t.Fatalf("Commits = %d", w.Commits())
	}
}

func TestCommitIsAllOrNothing(t *testing.T) {
	ctx := context.Background()
	s := record.StockSchema("")
	w := New().WithFault(FailTimes(1, perr.WarehouseUnavailablef("boom")))
	if err := w.Ensure(ctx, s); err != nil {
		t.Fatal(err)
	}
	b := warehouse.Batch{Token: "t", Rows: []warehouse.Row{row("k1", 1), row("k2", 2), row("k3", 3)}}

	err := w.Commit(ctx, s, b)
	kit.MustCode(t, err, perr.ErrorCodeWarehouseUnavailable)
	if n, _ := w.Count(ctx, s); n != 0 {
		t.Fatalf("failed commit left %d rows", n)
	}
	if err := w.Commit(ctx, s, b); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if n, _ := w.Count(ctx, s); n != 3 || w.Attempts("t") != 2 {
		t.Fatalf("count = %d attempts = %d", n, w.Attempts("t"))
	}
}

func TestCommitErrors(t *testing.T) {
	ctx := context.Background()
	s := record.StockSchema("")
	w := New()
	kit.MustCode(t, w.Commit(ctx, s, warehouse.Batch{Token: "x"}), perr.ErrorCodeNotFound)
	_, err := w.Count(ctx, s)
	kit.MustCode(t, err, perr.ErrorCodeNotFound)

	_ = w.Ensure(ctx, s)
	bad := warehouse.Batch{Token: "x", Rows: []warehouse.Row{{Key: "k", Values: []record.Value{record.String("a")}}}}
	kit.MustCode(t, w.Commit(ctx, s, bad), perr.ErrorCodeSchemaViolation)

	kit.MustCode(t, w.Ensure(ctx, record.Schema{}), perr.ErrorCodeInvalidArgument)
}
