package investing

import (
	"time"

	"stockpipe/internal/platform/config"
)

// DefaultEndpoint is the index page the original scraper walked
const DefaultEndpoint = "https://www.investing.com"

// FromConfig reads CORE_EXTRACT_* (pass cfg.Prefix("CORE_EXTRACT_"))
func FromConfig(cfg config.Conf) Config {
	return Config{
		Endpoint:        cfg.MayString("SOURCE_ENDPOINT", DefaultEndpoint),
		Timeout:         cfg.MayDuration("REQUEST_TIMEOUT", 10*time.Second),
		MaxRetries:      cfg.MayInt("MAX_RETRIES", 3),
		RetryBase:       cfg.MayDuration("RETRY_BACKOFF_BASE", 3*time.Second),
		Interval:        cfg.MayDuration("PAGE_INTERVAL", 2*time.Second),
		MaxStocks:       cfg.MayInt("MAX_STOCKS", 0),
		SkipUnavailable: cfg.MayBool("SKIP_UNAVAILABLE_PAGES", false),
		UserAgent:       cfg.MayString("USER_AGENT", ""),
	}
}
