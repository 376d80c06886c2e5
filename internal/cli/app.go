package cli

import (
	"context"
	"os"
	"path/filepath"

	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/modkit"
	"stockpipe/internal/modkit/module"
	"stockpipe/internal/platform/config"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/platform/store"
	extractdom "stockpipe/internal/services/extract/domain"
	extractmod "stockpipe/internal/services/extract/module"
	loaddom "stockpipe/internal/services/load/domain"
	loadmod "stockpipe/internal/services/load/module"
	orchmod "stockpipe/internal/services/orchestrator/module"
	orchsvc "stockpipe/internal/services/orchestrator/service"
)

// app is the wired process: stores, stage modules and the orchestrator
type app struct {
	store   *store.Store
	deps    modkit.Deps
	extract *extractmod.Module
	load    *loadmod.Module
	orch    *orchmod.Module
}

func sinkStore(cfg config.Conf) *ndjson.Store {
	sc := cfg.Prefix("CORE_SINK_")
	root := sc.MayString("ROOT", filepath.Join(os.TempDir(), "stockpipe"))
	return ndjson.New(root, ndjson.WithGzip(sc.MayBool("GZIP", false)))
}

// bootstrap opens the configured backends and wires every module
func bootstrap(ctx context.Context, cfg config.Conf, role string) (*app, error) {
	st, err := store.Open(ctx, store.ConfigFromEnv(cfg, role), store.WithLogger(*logger.Get()))
	if err != nil {
		return nil, err
	}
	a := &app{store: st}
	a.deps = modkit.Deps{
		Log:   *logger.Named(role),
		Cfg:   cfg,
		PG:    st.PG,
		CH:    st.CH,
		Creds: credentials.New(credentials.FromConfig(cfg.Prefix("CORE_CREDENTIALS_"))),
		Sink:  sinkStore(cfg),
	}

	ledger, err := orchmod.OpenLedger(ctx, a.deps)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	if a.load, err = loadmod.New(a.deps, orchsvc.Events(ledger)); err != nil {
		a.close(ctx)
		return nil, err
	}
	if a.extract, err = extractmod.New(a.deps, nil); err != nil {
		a.close(ctx)
		return nil, err
	}
	a.orch, err = orchmod.New(a.deps, ledger,
		module.MustPortsOf[extractdom.RunnerPort](a.extract),
		module.MustPortsOf[loaddom.RunnerPort](a.load),
	)
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	return a, nil
}

// hasStore reports whether any backend is configured for the health guard
func (a *app) hasStore() bool { return a.store.PG != nil || a.store.CH != nil }

func (a *app) close(ctx context.Context) {
	if a.store == nil {
		return
	}
	if err := a.store.Close(ctx); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("store close failed")
	}
}
