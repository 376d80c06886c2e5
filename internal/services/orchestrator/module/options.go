package module

import (
	"time"

	"stockpipe/internal/platform/config"
	"stockpipe/internal/platform/validate"
)

// Options holds configuration for the orchestrator and its status API
type Options struct {
	KeepSink       bool          `env:"CORE_LOAD_KEEP_SINK"`
	Interval       time.Duration `env:"CORE_PIPELINE_INTERVAL" validate:"gte=0"`
	RunOnStart     bool          `env:"CORE_PIPELINE_RUN_ON_START"`
	LedgerCapacity int           `env:"CORE_PIPELINE_LEDGER_CAPACITY" validate:"min=1"`
	LedgerTimeout  time.Duration `env:"CORE_PIPELINE_LEDGER_TIMEOUT" validate:"gte=0"`

	Swagger        bool          `env:"CORE_API_SWAGGER"`
	Profiler       bool          `env:"CORE_API_PROFILER"`
	CORSOrigins    []string      `env:"CORE_API_CORS_ORIGINS" validate:"dive,url"`
	RequestTimeout time.Duration `env:"CORE_API_REQUEST_TIMEOUT" validate:"gte=0"`
}

// FromConfig reads CORE_PIPELINE_*, CORE_API_* and the shared CORE_LOAD_KEEP_SINK
func FromConfig(cfg config.Conf) Options {
	pl := cfg.Prefix("CORE_PIPELINE_")
	api := cfg.Prefix("CORE_API_")
	return Options{
		KeepSink:       cfg.Prefix("CORE_LOAD_").MayBool("KEEP_SINK", false),
		Interval:       pl.MayDuration("INTERVAL", 24*time.Hour),
		RunOnStart:     pl.MayBool("RUN_ON_START", false),
		LedgerCapacity: pl.MayInt("LEDGER_CAPACITY", 100),
		LedgerTimeout:  pl.MayDuration("LEDGER_TIMEOUT", 5*time.Second),

		Swagger:        api.MayBool("SWAGGER", true),
		Profiler:       api.MayBool("PROFILER", false),
		CORSOrigins:    api.MayCSV("CORS_ORIGINS", nil),
		RequestTimeout: api.MayDuration("REQUEST_TIMEOUT", 30*time.Second),
	}
}

// Validate checks the options; failures are InvalidArgument naming the env key
func (o Options) Validate() error { return validate.Struct(o) }
