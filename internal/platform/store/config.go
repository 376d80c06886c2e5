package store

import (
	"time"

	"stockpipe/internal/platform/config"
)

// Config aggregates per backend configuration
type Config struct {
	AppName string

	PG PGConfig
	CH CHConfig
}

// PGConfig configures postgres connectivity and tracing
type PGConfig struct {
	Enabled     bool
	URL         string
	MaxConns    int32
	LogSQL      bool
	SlowQueryMs int

	ConnectRetries int           // default 6
	PingTimeout    time.Duration // default 3s
}

// CHConfig configures clickhouse connectivity
type CHConfig struct {
	Enabled    bool
	URL        string
	ClientName string
	ClientTag  string

	ConnectRetries int
	PingTimeout    time.Duration
}

// ConfigFromEnv reads SERVICE_PGSQL_* and SERVICE_CLICKHOUSE_*; a backend is
// enabled when its DBURL is set
func ConfigFromEnv(cfg config.Conf, role string) Config {
	pg := cfg.Prefix("SERVICE_PGSQL_")
	chc := cfg.Prefix("SERVICE_CLICKHOUSE_")
	return Config{
		AppName: "stockpipe",
		PG: PGConfig{
			Enabled:        pg.Has("DBURL"),
			URL:            pg.MayString("DBURL", ""),
			MaxConns:       int32(pg.MayInt("MAX_CONNS", 4)),
			LogSQL:         pg.MayBool("LOG_SQL", false),
			SlowQueryMs:    pg.MayInt("SLOW_MS", 500),
			ConnectRetries: pg.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    pg.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
		CH: CHConfig{
			Enabled:        chc.Has("DBURL"),
			URL:            chc.MayString("DBURL", ""),
			ClientName:     "stockpipe",
			ClientTag:      role,
			ConnectRetries: chc.MayInt("CONNECT_RETRIES", 6),
			PingTimeout:    chc.MayDuration("PING_TIMEOUT", 3*time.Second),
		},
	}
}
