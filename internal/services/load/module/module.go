// Package module wires the load stage to the configured warehouse
package module

import (
	"context"

	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/adapters/warehouse/bigquery"
	chwh "stockpipe/internal/adapters/warehouse/clickhouse"
	"stockpipe/internal/adapters/warehouse/memwh"
	"stockpipe/internal/core/record"
	"stockpipe/internal/modkit"
	perr "stockpipe/internal/platform/errors"
	phttp "stockpipe/internal/platform/net/http"
	"stockpipe/internal/services/load/domain"
	"stockpipe/internal/services/load/service"
)

// Ports defines the load module ports
type Ports struct {
	Runner domain.RunnerPort
}

// Module implements the load module
type Module struct {
	deps  modkit.Deps
	opts  Options
	mem   *memwh.Warehouse
	ports Ports
}

// New builds the load stage. events may be nil
func New(deps modkit.Deps, events domain.EventsPort) (*Module, error) {
	if deps.Creds == nil {
		panic("load module requires deps.Creds")
	}
	opts := FromConfig(deps.Cfg)
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if opts.Driver == DriverClickHouse && deps.CH == nil {
		return nil, perr.InvalidArgf("warehouse driver clickhouse needs SERVICE_CLICKHOUSE_DBURL")
	}

	m := &Module{deps: deps, opts: opts}
	if opts.Driver == DriverMemory {
		m.mem = memwh.New()
	}
	svc := service.New(deps.Creds, m.open, sinkSource{}, record.StockSchema(opts.Table), service.Config{
		BatchSize:     opts.BatchSize,
		Workers:       opts.Workers,
		MaxRetries:    opts.MaxRetries,
		RetryBase:     opts.RetryBase,
		CommitTimeout: opts.CommitTimeout,
	})
	if events != nil {
		svc.WithEvents(events)
	}
	m.ports = Ports{Runner: svc}
	return m, nil
}

// open returns a warehouse for one load run
func (m *Module) open(ctx context.Context, cred credentials.Credential) (domain.Warehouse, error) {
	switch m.opts.Driver {
	case DriverClickHouse:
		return chwh.New(m.deps.CH, m.opts.Dataset), nil
	case DriverMemory:
		return m.mem, nil
	default:
		return bigquery.New(ctx, bigquery.Target{
			Project:  m.opts.Project,
			Dataset:  m.opts.Dataset,
			Location: m.opts.Location,
		}, cred)
	}
}

// Name returns the module name
func (m *Module) Name() string { return "load" }

// Ports returns the module ports
func (m *Module) Ports() any { return m.ports }

// Runner returns the stage runner
func (m *Module) Runner() domain.RunnerPort { return m.ports.Runner }

// Options returns the resolved options
func (m *Module) Options() Options { return m.opts }

// Memory returns the in process warehouse when the memory driver is selected
func (m *Module) Memory() *memwh.Warehouse { return m.mem }

// MountRoutes is a no-op as load has no routes
func (m *Module) MountRoutes(_ phttp.Router) {}

// sinkSource reads committed ndjson sinks
type sinkSource struct{}

func (sinkSource) Verify(h domain.SinkHandle) error { return ndjson.Verify(h) }

func (sinkSource) Open(h domain.SinkHandle, s record.Schema) (domain.SinkReader, error) {
	r, err := ndjson.NewReader(h, s)
	if err != nil {
		return nil, err
	}
	return r, nil
}
