// Package module wires the orchestrator, its ledger and the status routes
package module

import (
	"context"
	"time"

	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/modkit"
	"stockpipe/internal/modkit/httpkit"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	phttp "stockpipe/internal/platform/net/http"
	"stockpipe/internal/services/orchestrator/domain"
	ohttp "stockpipe/internal/services/orchestrator/http"
	"stockpipe/internal/services/orchestrator/repo"
	"stockpipe/internal/services/orchestrator/service"
)

// RoutePrefix is where the run endpoints are mounted
const RoutePrefix = "/api/v1/runs"

// Ports defines the orchestrator module ports
type Ports struct {
	Runner domain.RunnerPort
	Status domain.StatusPort
}

// Module implements the orchestrator module
type Module struct {
	deps    modkit.Deps
	opts    Options
	svc     *service.Service
	base    context.Context
	started time.Time
}

// OpenLedger returns the Postgres ledger (migrated) when deps.PG is set,
// otherwise the in memory ring
func OpenLedger(ctx context.Context, deps modkit.Deps) (domain.Ledger, error) {
	opts := FromConfig(deps.Cfg)
	if deps.PG == nil {
		return repo.NewMemory(opts.LedgerCapacity), nil
	}
	l := repo.NewPostgres(deps.PG, opts.LedgerTimeout)
	if err := l.Migrate(ctx); err != nil {
		return nil, perr.Wrap(err, perr.CodeOf(err), "migrate run ledger")
	}
	logger.C(ctx).Info().Msg("run ledger: postgres")
	return l, nil
}

// New wires the orchestrator over the two stage runners
func New(deps modkit.Deps, ledger domain.Ledger, ex domain.ExtractPort, ld domain.LoadPort) (*Module, error) {
	if deps.Sink == nil {
		panic("orchestrator module requires deps.Sink")
	}
	opts := FromConfig(deps.Cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	svc := service.New(ledger, ex, ld, sinkRemover{deps.Sink}, service.Config{KeepSink: opts.KeepSink})
	return &Module{deps: deps, opts: opts, svc: svc, base: context.Background(), started: time.Now()}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "orchestrator" }

// Ports returns the module ports
func (m *Module) Ports() any { return Ports{Runner: m.svc, Status: m.svc} }

// Service exposes the orchestrator service
func (m *Module) Service() *service.Service { return m.svc }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// WithBase sets the context API triggered runs execute under; it should
// outlive requests and end with the server
func (m *Module) WithBase(ctx context.Context) *Module {
	m.base = ctx
	return m
}

// MountRoutes mounts the run endpoints under RoutePrefix plus docs and pprof when enabled
func (m *Module) MountRoutes(r phttp.Router) {
	modkit.Build(
		modkit.WithName(m.Name()),
		modkit.WithPrefix(RoutePrefix),
		modkit.WithMiddlewares(httpkit.CommonStack(m.opts.CORSOrigins, m.opts.RequestTimeout)...),
		modkit.WithRegister(func(sub phttp.Router) {
			ohttp.Register(sub, ohttp.Deps{Runner: m.svc, Status: m.svc, Base: m.base})
		}),
	).Mount(r)
	phttp.MountSwagger(r, ohttp.OpenAPI, m.opts.Swagger)
	phttp.MountProfiler(r, "/debug", m.opts.Profiler)
}

// MountHealth mounts /healthz; guard nil reports the store as skipped
func (m *Module) MountHealth(r phttp.Router, guard func(context.Context) error) {
	ohttp.RegisterHealth(r, ohttp.HealthDeps{
		ServiceName: "stockpipe",
		StartedAt:   m.started,
		Guard:       guard,
		Active:      m.svc.Active,
	})
}

// Schedule runs the pipeline every Interval until ctx is done. A tick that
// finds a run still active is skipped. Interval 0 disables the schedule
func (m *Module) Schedule(ctx context.Context) {
	log := logger.C(ctx).With().Str("component", "scheduler").Logger()
	defer m.svc.Wait()
	if m.opts.Interval <= 0 {
		log.Info().Msg("schedule disabled")
		<-ctx.Done()
		return
	}
	log.Info().Dur("interval", m.opts.Interval).Bool("run_on_start", m.opts.RunOnStart).Msg("schedule started")

	if m.opts.RunOnStart {
		m.tick(ctx)
	}
	t := time.NewTicker(m.opts.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("schedule stopped")
			return
		case <-t.C:
			m.tick(ctx)
		}
	}
}

func (m *Module) tick(ctx context.Context) {
	run, err := m.svc.Run(ctx, domain.TriggerSchedule)
	switch {
	case err == nil:
	case perr.IsCode(err, perr.ErrorCodeConflict):
		logger.C(ctx).Info().Str("active_run", run.ID).Msg("scheduled run skipped: a run is active")
	default:
		logger.C(ctx).Error().Str("run_id", run.ID).Str("code", perr.CodeOf(err).String()).Err(err).Msg("scheduled run failed")
	}
}

// sinkRemover adapts the ndjson store to the orchestrator port
type sinkRemover struct{ s *ndjson.Store }

func (a sinkRemover) Remove(h ndjson.Handle) error { return a.s.Remove(h) }
