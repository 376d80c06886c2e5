package cli

import (
	"github.com/spf13/cobra"
)

// flagSpec binds a command line flag to the env key it overrides
type flagSpec struct {
	name  string
	key   string
	usage string
}

var persistentFlags = []flagSpec{
	{"warehouse", "CORE_WAREHOUSE_DRIVER", "warehouse driver: bigquery, clickhouse or memory"},
	{"project", "CORE_WAREHOUSE_PROJECT", "warehouse project (default: credential project)"},
	{"dataset", "CORE_WAREHOUSE_DATASET", "target dataset"},
	{"table", "CORE_WAREHOUSE_TABLE", "target table"},
	{"source-endpoint", "CORE_EXTRACT_SOURCE_ENDPOINT", "index page of the source"},
	{"batch-size", "CORE_LOAD_BATCH_SIZE", "records per warehouse commit"},
	{"workers", "CORE_LOAD_WORKERS", "parallel load partitions"},
	{"load-max-retries", "CORE_LOAD_MAX_RETRIES", "attempts per batch"},
	{"extract-max-retries", "CORE_EXTRACT_MAX_RETRIES", "attempts per source page"},
	{"fail-on-normalization-error", "CORE_EXTRACT_FAIL_ON_NORMALIZATION_ERROR", "abort on the first malformed row (true|false)"},
	{"keep-sink", "CORE_LOAD_KEEP_SINK", "keep the intermediate sink after a successful load (true|false)"},
	{"credentials-dir", "CORE_CREDENTIALS_DIR", "directory holding service-account.json"},
	{"sink-root", "CORE_SINK_ROOT", "directory the intermediate sinks are written under"},
}

type flagValues map[string]*string

func bindFlags(cmd *cobra.Command, specs []flagSpec) flagValues {
	vals := flagValues{}
	for _, s := range specs {
		v := new(string)
		cmd.PersistentFlags().StringVar(v, s.name, "", s.usage+" ["+s.key+"]")
		vals[s.key] = v
	}
	return vals
}

// overrides returns the env keys set on the command line
func (f flagValues) overrides() map[string]string {
	out := map[string]string{}
	for k, v := range f {
		if *v != "" {
			out[k] = *v
		}
	}
	return out
}
