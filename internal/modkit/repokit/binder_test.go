package repokit

import (
	"context"
	"errors"
	"testing"
	"time"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/store"
	kit "stockpipe/internal/platform/testkit"
)

type fakeQ struct {
	sqls []string
	err  error
}

func (f *fakeQ) Exec(_ context.Context, sql string, _ ...any) (store.CommandTag, error) {
	f.sqls = append(f.sqls, sql)
	return nil, f.err
}

func (f *fakeQ) Query(_ context.Context, sql string, _ ...any) (store.Rows, error) {
	f.sqls = append(f.sqls, sql)
	return nil, f.err
}

func (f *fakeQ) QueryRow(_ context.Context, sql string, _ ...any) store.Row {
	f.sqls = append(f.sqls, sql)
	return nil
}

type fakeTx struct {
	fakeQ
	txCalls int
}

func (f *fakeTx) Tx(_ context.Context, fn func(q Queryer) error) error {
	f.txCalls++
	return fn(&f.fakeQ)
}

type guardFunc func(context.Context) error

func (g guardFunc) Guard(ctx context.Context) error { return g(ctx) }

func TestBinder(t *testing.T) {
	b := BindFunc[string](func(Queryer) string { return "ok" })
	if got := MustBind[string](b, &fakeQ{}); got != "ok" {
		t.Fatalf("MustBind = %q", got)
	}
	kit.MustPanic(t, func() { _ = MustBind[string](b, nil) })
	kit.MustPanic(t, func() { _ = RequireQueryer(nil) })
}

func TestInTxBindsTxQueryer(t *testing.T) {
	tx := &fakeTx{}
	b := BindFunc[*fakeQ](func(q Queryer) *fakeQ { return q.(*fakeQ) })
	err := InTx(context.Background(), tx, b, func(r *fakeQ) error {
		_, err := r.Exec(context.Background(), "INSERT 1")
		return err
	})
	if err != nil || tx.txCalls != 1 || len(tx.sqls) != 1 {
		t.Fatalf("err=%v tx=%d sqls=%v", err, tx.txCalls, tx.sqls)
	}
}

func TestBeginHooks(t *testing.T) {
	tx := &fakeTx{}
	if got := WithBeginHooks(tx); got != TxRunner(tx) {
		t.Fatalf("no hooks should return inner")
	}

	hooked := WithBeginHooks(tx, StatementTimeout(1500*time.Millisecond), StatementTimeout(0))
	err := WithTx(context.Background(), hooked, func(q Queryer) error {
		_, err := q.Exec(context.Background(), "UPDATE x")
		return err
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}
	want := []string{"SET LOCAL statement_timeout = 1500", "UPDATE x"}
	if len(tx.sqls) != len(want) || tx.sqls[0] != want[0] || tx.sqls[1] != want[1] {
		t.Fatalf("sqls = %q want %q", tx.sqls, want)
	}

	_, _ = hooked.Exec(context.Background(), "direct")
	if tx.txCalls != 1 || tx.sqls[2] != "direct" {
		t.Fatalf("direct Exec should bypass hooks")
	}

	boom := errors.New("boom")
	failing := WithBeginHooks(tx, func(context.Context, Queryer) error { return boom })
	ran := false
	err = WithTx(context.Background(), failing, func(Queryer) error { ran = true; return nil })
	if !errors.Is(err, boom) || ran {
		t.Fatalf("hook error should stop fn, err=%v ran=%v", err, ran)
	}
}

func TestGuard(t *testing.T) {
	if err := Guard(context.Background(), time.Second, nil); err != nil {
		t.Fatalf("nil guard: %v", err)
	}
	ok := guardFunc(func(ctx context.Context) error {
		if _, has := ctx.Deadline(); !has {
			t.Errorf("timeout not applied")
		}
		return nil
	})
	if err := Guard(context.Background(), time.Second, ok); err != nil {
		t.Fatalf("ok guard: %v", err)
	}
	bad := guardFunc(func(context.Context) error { return errors.New("pg: connection refused") })
	err := Guard(context.Background(), 0, bad)
	kit.MustCode(t, err, perr.ErrorCodeUnavailable)
	kit.MustContain(t, err.Error(), "connection refused")
}
