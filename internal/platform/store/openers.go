package store

import (
	"context"
	"time"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/retry"
	chx "stockpipe/internal/platform/store/ch"
	"stockpipe/internal/platform/store/pg"
)

// seams for tests
var (
	pingSleep  = retry.SleepCtx
	openCHConn = func(ctx context.Context, cfg chx.Config) (Clickhouse, error) {
		c, err := chx.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return newCHAdapter(c), nil
	}
)

// bootPolicy retries every ping failure until the attempts are spent or ctx ends
func bootPolicy(attempts int) retry.Policy {
	if attempts <= 0 {
		attempts = 6
	}
	return retry.Policy{
		Attempts: attempts,
		Base:     150 * time.Millisecond,
		Cap:      2 * time.Second,
		Sleep:    pingSleep,
		Classify: func(ctx context.Context, _ error) bool { return ctx.Err() == nil },
	}
}

func pingWithRetry(ctx context.Context, attempts int, timeout time.Duration, ping func(context.Context) error) error {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return bootPolicy(attempts).Do(ctx, func(ctx context.Context, _ int) error {
		toCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return ping(toCtx)
	})
}

// openPG opens pg and wraps it with our sql adapter once the pool answers a ping
func openPG(ctx context.Context, cfg Config, s *Store) (TxRunner, error) {
	var tracer pg.QueryTracer
	if cfg.PG.LogSQL {
		tracer = pg.Tracer(s.Log)
	}

	p, err := pg.Open(ctx, pg.Config{
		URL:             cfg.PG.URL,
		MaxConns:        cfg.PG.MaxConns,
		SlowMs:          cfg.PG.SlowQueryMs,
		ApplicationName: cfg.AppName,
	}, tracer, nil)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "open postgres")
	}

	// ping the pool directly so boot attempts stay out of the sql trace
	if err := pingWithRetry(ctx, cfg.PG.ConnectRetries, cfg.PG.PingTimeout, p.Pool.Ping); err != nil {
		p.Close()
		if perr.IsCode(err, perr.ErrorCodeCanceled) {
			return nil, err
		}
		return nil, perr.Wrap(err, perr.ErrorCodeUnavailable, "postgres ping failed")
	}
	return newPGAdapter(p), nil
}

func openCH(ctx context.Context, cfg Config, _ *Store) (Clickhouse, error) {
	c, err := openCHConn(ctx, chx.Config{
		URL:        cfg.CH.URL,
		ClientName: cfg.CH.ClientName,
		ClientTag:  cfg.CH.ClientTag,
	})
	if err != nil {
		return nil, err
	}
	if err := pingWithRetry(ctx, cfg.CH.ConnectRetries, cfg.CH.PingTimeout, c.Ping); err != nil {
		_ = c.Close()
		if perr.IsCode(err, perr.ErrorCodeCanceled) {
			return nil, err
		}
		return nil, perr.Wrap(err, perr.ErrorCodeWarehouseUnavailable, "clickhouse ping failed")
	}
	return c, nil
}
