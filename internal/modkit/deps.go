// Package modkit provides module wiring and core deps
package modkit

import (
	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/modkit/repokit"
	"stockpipe/internal/platform/config"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/platform/store"
)

// Deps holds core dependencies passed to modules
// this is wiring only and does not introduce new abstractions
type Deps struct {
	Log logger.Logger
	Cfg config.Conf

	// PG backs the run ledger, nil means the in memory ledger
	PG repokit.TxRunner
	// CH is the clickhouse warehouse connection, nil unless configured
	CH store.Clickhouse

	// Creds resolves the process credential, shared by every stage
	Creds credentials.Provider
	// Sink is the local intermediate store between extraction and load
	Sink *ndjson.Store
}

// ZeroOK returns true when deps are safe to use with zero values in tests
// consumers should still nil check for optional stores
func (d Deps) ZeroOK() bool { return true }
