package store

import (
	"context"
	"errors"
	"time"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/retry"
	"stockpipe/internal/platform/store/pg"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pgxQuerier is the statement surface shared by *pgxpool.Pool and pgx.Tx
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// traced implements RowQuerier over a pool or a transaction and reports every
// statement to the tracer when one is configured
type traced struct {
	q      pgxQuerier
	tracer pg.QueryTracer
	slowUS int64
}

func (t traced) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	start := time.Now()
	ct, err := t.q.Exec(ctx, sql, args...)
	t.emit(ctx, sql, args, start, err)
	return tag{ct}, err
}

func (t traced) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	start := time.Now()
	rs, err := t.q.Query(ctx, sql, args...)
	t.emit(ctx, sql, args, start, err)
	if err != nil {
		return nil, err
	}
	return rows{r: rs}, nil
}

func (t traced) QueryRow(ctx context.Context, sql string, args ...any) Row {
	start := time.Now()
	r := t.q.QueryRow(ctx, sql, args...)
	// emitted after Scan so the scan error is captured
	return row{
		r: r,
		after: func(scanErr error) {
			if errors.Is(scanErr, pgx.ErrNoRows) {
				scanErr = nil
			}
			t.emit(ctx, sql, args, start, scanErr)
		},
	}
}

func (t traced) emit(ctx context.Context, sql string, args []any, start time.Time, err error) {
	if t.tracer == nil {
		return
	}
	elapsedUS := time.Since(start).Microseconds()
	t.tracer.OnQuery(ctx, pg.QueryEvent{
		SQL:       sql,
		Args:      args,
		ElapsedUS: elapsedUS,
		Err:       err,
		Slow:      t.slowUS > 0 && elapsedUS >= t.slowUS,
	})
}

// pgAdapter wraps pg.PG and implements RowQuerier + TxRunner
type pgAdapter struct {
	traced
	p        *pg.PG
	begin    func(ctx context.Context) (pgx.Tx, error)
	txPolicy retry.Policy
}

func newPGAdapter(p *pg.PG) *pgAdapter {
	return &pgAdapter{
		traced: traced{q: p.Pool, tracer: p.Tracer, slowUS: int64(p.SlowMs) * 1000},
		p:      p,
		begin:  p.Pool.Begin,
		txPolicy: retry.Policy{
			Attempts: 3,
			Base:     20 * time.Millisecond,
			Cap:      250 * time.Millisecond,
			Classify: func(_ context.Context, err error) bool { return perr.IsRetryable(err) },
		},
	}
}

func (a *pgAdapter) Ping(ctx context.Context) error {
	if a == nil {
		return errors.New("pg: nil adapter")
	}
	var one int
	return a.QueryRow(ctx, "SELECT 1").Scan(&one)
}

func (a *pgAdapter) Close() error {
	a.p.Close()
	return nil
}

// Tx runs fn in a transaction; serialization failures and deadlocks rerun fn
// from the start, so fn must not keep state across calls
func (a *pgAdapter) Tx(ctx context.Context, fn func(q RowQuerier) error) error {
	err := a.txPolicy.Do(ctx, func(ctx context.Context, _ int) error {
		tx, err := a.begin(ctx)
		if err != nil {
			return err
		}
		if err := fn(traced{q: tx, tracer: a.tracer, slowUS: a.slowUS}); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		return tx.Commit(ctx)
	})
	if ex, ok := retry.Exhausted(err); ok {
		return ex.Err
	}
	return err
}

// adapters for pgx to our tiny Row/Rows/CommandTag

type row struct {
	r     pgx.Row
	after func(error)
}

func (x row) Scan(dst ...any) error {
	err := x.r.Scan(dst...)
	if x.after != nil {
		x.after(err)
	}
	return err
}

type rows struct{ r pgx.Rows }

func (x rows) Next() bool            { return x.r.Next() }
func (x rows) Scan(dst ...any) error { return x.r.Scan(dst...) }
func (x rows) Err() error            { return x.r.Err() }
func (x rows) Close()                { x.r.Close() }
func (x rows) Columns() []string {
	f := x.r.FieldDescriptions()
	out := make([]string, len(f))
	for i := range f {
		out[i] = f[i].Name
	}
	return out
}

// wrap pgconn.CommandTag so we satisfy our CommandTag interface
type tag struct{ t pgconn.CommandTag }

func (t tag) String() string      { return t.t.String() }
func (t tag) RowsAffected() int64 { return t.t.RowsAffected() }
