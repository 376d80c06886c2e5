// Package memwh is an in-process warehouse for dry runs and tests
package memwh

import (
	"context"
	"sync"

	"stockpipe/internal/adapters/warehouse"
	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
)

// Fault decides whether the commit of b fails on attempt (1 based per token).
// It runs after half of the batch has been staged
type Fault func(b warehouse.Batch, attempt int) error

// Warehouse keeps tables in memory with upsert by key
type Warehouse struct {
	mu      sync.Mutex
	tables  map[string]*table
	fault   Fault
	tries   map[string]int
	commits int
}

type table struct {
	schema record.Schema
	rows   map[string][]record.Value
	order  []string
}

// New returns an empty warehouse
func New() *Warehouse {
	return &Warehouse{tables: map[string]*table{}, tries: map[string]int{}}
}

// WithFault installs a fault hook and returns w
func (w *Warehouse) WithFault(f Fault) *Warehouse {
	w.mu.Lock()
	w.fault = f
	w.mu.Unlock()
	return w
}

// Name implements warehouse.Warehouse
func (w *Warehouse) Name() string { return "memory" }

// Ensure creates the table when missing
func (w *Warehouse) Ensure(ctx context.Context, s record.Schema) error {
	if err := s.Check(); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.tables[s.Table]; !ok {
		w.tables[s.Table] = &table{schema: s, rows: map[string][]record.Value{}}
	}
	return ctx.Err()
}

// Commit stages every row and swaps them in only when the whole batch staged
func (w *Warehouse) Commit(ctx context.Context, s record.Schema, b warehouse.Batch) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	t, ok := w.tables[s.Table]
	if !ok {
		return perr.NotFoundf("memwh: table %s does not exist", s.Table)
	}
	w.tries[b.Token]++
	attempt := w.tries[b.Token]

	staged := make(map[string][]record.Value, len(b.Rows))
	for i, r := range b.Rows {
		if len(r.Values) != len(t.schema.Fields) {
			return perr.SchemaViolationf("memwh: row %s has %d values, table has %d columns", r.Key, len(r.Values), len(t.schema.Fields))
		}
		staged[r.Key] = append([]record.Value(nil), r.Values...)
		if i == len(b.Rows)/2 && w.fault != nil {
			if err := w.fault(b, attempt); err != nil {
				return err
			}
		}
	}
	if err := ctx.Err(); err != nil {
		return perr.Wrap(err, perr.ErrorCodeCanceled, "memwh: commit canceled")
	}

	for _, r := range b.Rows {
		if _, exists := t.rows[r.Key]; !exists {
			t.order = append(t.order, r.Key)
		}
		t.rows[r.Key] = staged[r.Key]
	}
	w.commits++
	return nil
}

// Count returns the number of distinct keys in the table
func (w *Warehouse) Count(_ context.Context, s record.Schema) (int64, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tables[s.Table]
	if !ok {
		return 0, perr.NotFoundf("memwh: table %s does not exist", s.Table)
	}
	return int64(len(t.rows)), nil
}

// Close implements warehouse.Warehouse
func (w *Warehouse) Close() error { return nil }

// Commits returns the number of successful commits
func (w *Warehouse) Commits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commits
}

// Attempts returns how many commits were tried for token
func (w *Warehouse) Attempts(token string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.tries[token]
}

// Rows returns a copy of table in first insert order
func (w *Warehouse) Rows(tbl string) []warehouse.Row {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tables[tbl]
	if !ok {
		return nil
	}
	out := make([]warehouse.Row, 0, len(t.order))
	for _, k := range t.order {
		out = append(out, warehouse.Row{Key: k, Values: append([]record.Value(nil), t.rows[k]...)})
	}
	return out
}

// FailTimes returns a fault that fails the first n attempts of every batch with err
func FailTimes(n int, err error) Fault {
	return func(_ warehouse.Batch, attempt int) error {
		if attempt <= n {
			return err
		}
		return nil
	}
}
