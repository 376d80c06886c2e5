package modkit

import (
	"testing"

	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/platform/config"
)

func TestDeps_ZeroValue_IsOK(t *testing.T) {
	t.Parallel()
	var d Deps
	if !d.ZeroOK() {
		t.Fatal("zero-value Deps should be safe in tests (ZeroOK == true)")
	}
}

func TestDeps_NonZero_IsAlsoOK(t *testing.T) {
	t.Parallel()

	d := Deps{
		Cfg:   config.New(),
		Creds: credentials.Static{},
		Sink:  ndjson.New(t.TempDir()),
	}
	if !d.ZeroOK() {
		t.Fatal("non-zero Deps should also report ZeroOK == true")
	}
}
