package module

import (
	"stockpipe/internal/adapters/source/investing"
	"stockpipe/internal/platform/config"
)

// Options holds configuration for the extraction module
type Options struct {
	Source                   investing.Config
	FailOnNormalizationError bool
	AllowEmpty               bool
	Table                    string
}

// FromConfig reads CORE_EXTRACT_* and the target table from CORE_WAREHOUSE_TABLE
func FromConfig(cfg config.Conf) Options {
	ex := cfg.Prefix("CORE_EXTRACT_")
	return Options{
		Source:                   investing.FromConfig(ex),
		FailOnNormalizationError: ex.MayBool("FAIL_ON_NORMALIZATION_ERROR", false),
		AllowEmpty:               ex.MayBool("ALLOW_EMPTY", false),
		Table:                    cfg.Prefix("CORE_WAREHOUSE_").MayString("TABLE", "StockData"),
	}
}
