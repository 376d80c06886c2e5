// Package ch wraps the clickhouse-go native driver behind the few calls the warehouse needs
package ch

import (
	"context"
	"strings"
	"time"

	perr "stockpipe/internal/platform/errors"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// Config configures the clickhouse client
type Config struct {
	URL          string
	ClientName   string
	ClientTag    string
	DialTimeout  time.Duration
	MaxOpenConns int
}

// Settings are per query server settings such as insert_deduplication_token
type Settings = clickhouse.Settings

// Rows is the minimal result set iteration for ch
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
	Columns() []string
}

// CH is a clickhouse client over a pooled native connection
type CH struct {
	conn driver.Conn
}

var openConn = clickhouse.Open

// Open parses the DSN and prepares a connection pool; no round trip happens until first use
func Open(_ context.Context, cfg Config) (*CH, error) {
	opts, err := clickhouse.ParseDSN(cfg.URL)
	if err != nil {
		return nil, perr.Wrap(err, perr.ErrorCodeInvalidArgument, "parse clickhouse dsn")
	}
	opts.ClientInfo = BuildClientInfo(cfg.ClientName, cfg.ClientTag)
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.MaxOpenConns > 0 {
		opts.MaxOpenConns = cfg.MaxOpenConns
	}
	conn, err := openConn(opts)
	if err != nil {
		return nil, perr.FromClickHouse(err, "open clickhouse")
	}
	return &CH{conn: conn}, nil
}

// Exec runs a statement that returns no rows
func (c *CH) Exec(ctx context.Context, sql string, args ...any) error {
	return c.conn.Exec(ctx, sql, args...)
}

// Insert appends rows to table in a single native batch. columns may be empty
// to use the table order. settings travel with the insert query only
func (c *CH) Insert(ctx context.Context, table string, columns []string, rows [][]any, settings Settings) error {
	if len(rows) == 0 {
		return nil
	}
	if len(settings) > 0 {
		ctx = clickhouse.Context(ctx, clickhouse.WithSettings(settings))
	}
	q := "INSERT INTO " + table
	if len(columns) > 0 {
		q += " (" + strings.Join(columns, ", ") + ")"
	}
	b, err := c.conn.PrepareBatch(ctx, q)
	if err != nil {
		return err
	}
	for _, r := range rows {
		if err := b.Append(r...); err != nil {
			_ = b.Abort()
			return err
		}
	}
	return b.Send()
}

// Query runs a query and returns ch.Rows
func (c *CH) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return c.conn.Query(ctx, sql, args...)
}

// Ping checks the server is reachable
func (c *CH) Ping(ctx context.Context) error { return c.conn.Ping(ctx) }

// Close closes the pool
func (c *CH) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
