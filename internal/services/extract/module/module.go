// Package module wires the extraction stage
package module

import (
	"context"

	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/adapters/source/investing"
	"stockpipe/internal/core/normalize"
	"stockpipe/internal/core/record"
	"stockpipe/internal/modkit"
	phttp "stockpipe/internal/platform/net/http"
	"stockpipe/internal/services/extract/domain"
	"stockpipe/internal/services/extract/service"
)

// Ports defines the extraction module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the extraction module
type Module struct {
	deps  modkit.Deps
	ports Ports
}

// New wires the investing source, the stock normalizer and the ndjson sink.
// src replaces the investing source when non nil
func New(deps modkit.Deps, src domain.Source) (*Module, error) {
	if deps.Sink == nil || deps.Creds == nil {
		panic("extract module requires deps.Sink and deps.Creds")
	}
	opts := FromConfig(deps.Cfg)
	if src == nil {
		c, err := investing.New(opts.Source)
		if err != nil {
			return nil, err
		}
		src = c
	}
	svc := service.New(
		deps.Creds, src, normalize.NewStock(), sinkStore{deps.Sink},
		record.StockSchema(opts.Table),
		service.Config{
			FailOnNormalizationError: opts.FailOnNormalizationError,
			AllowEmpty:               opts.AllowEmpty,
		},
	)
	return &Module{deps: deps, ports: Ports{Runner: svc}}, nil
}

// Name returns the module name
func (m *Module) Name() string { return "extract" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Runner returns the stage runner
func (m *Module) Runner() domain.RunnerPort { return m.ports.Runner }

// MountRoutes is a no-op as extraction has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}

// sinkStore adapts the ndjson store to the domain sink port
type sinkStore struct{ s *ndjson.Store }

func (a sinkStore) Create(ctx context.Context, runID string) (domain.SinkWriter, error) {
	w, err := a.s.Create(ctx, runID)
	if err != nil {
		return nil, err
	}
	return w, nil
}
