package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"stockpipe/internal/platform/store/ch"
)

// fakeTxNoPing satisfies TxRunner but not Pinger
type fakeTxNoPing struct{}

func (f *fakeTxNoPing) Tx(context.Context, func(q RowQuerier) error) error { return nil }
func (f *fakeTxNoPing) Exec(context.Context, string, ...any) (CommandTag, error) {
	return cmdTag(0), nil
}
func (f *fakeTxNoPing) Query(context.Context, string, ...any) (Rows, error) {
	return newRows(nil, nil), nil
}
func (f *fakeTxNoPing) QueryRow(context.Context, string, ...any) Row {
	return scanFunc(func(...any) error { return nil })
}

// fakeTxWithPing satisfies TxRunner and Pinger
type fakeTxWithPing struct {
	fakeTxNoPing
	err    error
	closed bool
}

func (f *fakeTxWithPing) Ping(context.Context) error { return f.err }
func (f *fakeTxWithPing) Close() error               { f.closed = true; return nil }

// fakeCH is an in-memory Clickhouse seam
type fakeCH struct {
	pingErrs []error
	pings    int
	closed   bool
}

func (f *fakeCH) Exec(context.Context, string, ...any) error { return nil }
func (f *fakeCH) Insert(context.Context, string, []string, [][]any, ch.Settings) error {
	return nil
}
func (f *fakeCH) Query(context.Context, string, ...any) (Rows, error) { return newRows(nil, nil), nil }
func (f *fakeCH) Ping(context.Context) error {
	f.pings++
	if len(f.pingErrs) == 0 {
		return nil
	}
	err := f.pingErrs[0]
	f.pingErrs = f.pingErrs[1:]
	return err
}
func (f *fakeCH) Close() error { f.closed = true; return nil }

func TestGuard_NilStore(t *testing.T) {
	t.Parallel()

	var s *Store
	if err := s.Guard(context.Background()); err == nil {
		t.Fatalf("nil store should return error")
	}
}

func TestGuard_NoSeams(t *testing.T) {
	t.Parallel()

	if err := (&Store{}).Guard(context.Background()); err != nil {
		t.Fatalf("expected nil error when no seams are set, got %v", err)
	}
}

func TestGuard_PG_NotPinger_Ignored(t *testing.T) {
	t.Parallel()

	s := &Store{PG: &fakeTxNoPing{}}
	if err := s.Guard(context.Background()); err != nil {
		t.Fatalf("expected nil error when PG is not a Pinger, got %v", err)
	}
}

func TestGuard_PrefixesBackendErrors(t *testing.T) {
	t.Parallel()

	s := &Store{
		PG: &fakeTxWithPing{err: errors.New("boom")},
		CH: &fakeCH{pingErrs: []error{errors.New("down")}},
	}
	err := s.Guard(context.Background())
	if err == nil {
		t.Fatalf("expected guard error")
	}
	if !strings.Contains(err.Error(), "pg: boom") || !strings.Contains(err.Error(), "ch: down") {
		t.Fatalf("guard error = %q", err.Error())
	}
}

func TestClose_ClosesEveryBackend(t *testing.T) {
	t.Parallel()

	pg := &fakeTxWithPing{}
	c := &fakeCH{}
	s := &Store{PG: pg, CH: c}
	if err := s.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !pg.closed || !c.closed {
		t.Fatalf("pg closed=%v ch closed=%v", pg.closed, c.closed)
	}
}
