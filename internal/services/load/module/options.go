package module

import (
	"time"

	"stockpipe/internal/platform/config"
	"stockpipe/internal/platform/validate"
)

// Warehouse drivers
const (
	DriverBigQuery   = "bigquery"
	DriverClickHouse = "clickhouse"
	DriverMemory     = "memory"
)

// Options holds configuration for the load module
type Options struct {
	Driver   string `env:"CORE_WAREHOUSE_DRIVER" validate:"oneof=bigquery clickhouse memory"`
	Project  string `env:"CORE_WAREHOUSE_PROJECT"`
	Dataset  string `env:"CORE_WAREHOUSE_DATASET" validate:"required,ident"`
	Table    string `env:"CORE_WAREHOUSE_TABLE" validate:"required,ident"`
	Location string `env:"CORE_WAREHOUSE_LOCATION"`

	BatchSize     int           `env:"CORE_LOAD_BATCH_SIZE" validate:"min=1"`
	Workers       int           `env:"CORE_LOAD_WORKERS" validate:"min=1,max=64"`
	MaxRetries    int           `env:"CORE_LOAD_MAX_RETRIES" validate:"min=1"`
	RetryBase     time.Duration `env:"CORE_LOAD_RETRY_BACKOFF_BASE" validate:"gte=0"`
	CommitTimeout time.Duration `env:"CORE_LOAD_COMMIT_TIMEOUT" validate:"gt=0"`
	KeepSink      bool          `env:"CORE_LOAD_KEEP_SINK"`
}

// FromConfig reads CORE_LOAD_* and CORE_WAREHOUSE_*
func FromConfig(cfg config.Conf) Options {
	ld := cfg.Prefix("CORE_LOAD_")
	wh := cfg.Prefix("CORE_WAREHOUSE_")
	return Options{
		Driver:   wh.MayString("DRIVER", DriverBigQuery),
		Project:  wh.MayString("PROJECT", ""),
		Dataset:  wh.MayString("DATASET", "StockMktData"),
		Table:    wh.MayString("TABLE", "StockData"),
		Location: wh.MayString("LOCATION", "US"),

		BatchSize:     ld.MayInt("BATCH_SIZE", 500),
		Workers:       ld.MayInt("WORKERS", 4),
		MaxRetries:    ld.MayInt("MAX_RETRIES", 5),
		RetryBase:     ld.MayDuration("RETRY_BACKOFF_BASE", time.Second),
		CommitTimeout: ld.MayDuration("COMMIT_TIMEOUT", 5*time.Minute),
		KeepSink:      ld.MayBool("KEEP_SINK", false),
	}
}

// Validate checks the options; failures are InvalidArgument naming the env key
func (o Options) Validate() error { return validate.Struct(o) }
