package store

import (
	"testing"
	"time"

	"stockpipe/internal/platform/config"
)

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("SERVICE_PGSQL_DBURL", "postgres://u:p@db:5432/stockpipe")
	t.Setenv("SERVICE_PGSQL_LOG_SQL", "true")
	t.Setenv("SERVICE_CLICKHOUSE_DBURL", "")
	t.Setenv("SERVICE_CLICKHOUSE_PING_TIMEOUT", "5s")

	c := ConfigFromEnv(config.New(), "serve")
	if !c.PG.Enabled || c.PG.URL != "postgres://u:p@db:5432/stockpipe" || !c.PG.LogSQL {
		t.Fatalf("pg = %+v", c.PG)
	}
	if c.PG.MaxConns != 4 || c.PG.ConnectRetries != 6 {
		t.Fatalf("pg defaults = %+v", c.PG)
	}
	if c.CH.Enabled || c.CH.ClientTag != "serve" || c.CH.PingTimeout != 5*time.Second {
		t.Fatalf("ch = %+v", c.CH)
	}
}
