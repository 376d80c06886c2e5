package ch

import (
	"os"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2"
)

// BuildClientInfo describes this process to the server so inserts show up
// attributed in system.query_log. role examples: "load", "serve"
func BuildClientInfo(app, role string) clickhouse.ClientInfo {
	host, _ := os.Hostname()
	if strings.TrimSpace(app) == "" {
		app = "stockpipe"
	}

	type kv = struct{ Name, Version string }
	products := []kv{{Name: strings.TrimSpace(app), Version: vcsShortSHA()}}
	if r := strings.TrimSpace(role); r != "" {
		products = append(products, kv{Name: "role", Version: r})
	}
	products = append(products,
		kv{Name: "go", Version: runtime.Version()},
		kv{Name: "host", Version: strings.TrimSpace(host)},
	)
	return clickhouse.ClientInfo{Products: products}
}

func vcsShortSHA() string {
	if bi, ok := debug.ReadBuildInfo(); ok && bi != nil {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && len(s.Value) >= 7 {
				return s.Value[:7]
			}
		}
	}
	return "unknown"
}
