package domain

import (
	"context"

	extractdom "stockpipe/internal/services/extract/domain"
	loaddom "stockpipe/internal/services/load/domain"
)

// RunnerPort executes pipeline runs
type RunnerPort interface {
	// Run executes a full run and blocks until it is terminal
	Run(ctx context.Context, trigger Trigger) (Run, error)
	// Start reserves a run and executes it in the background under ctx
	Start(ctx context.Context, trigger Trigger) (Run, error)
}

// StatusPort reads run history
type StatusPort interface {
	Latest(ctx context.Context) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	Batches(ctx context.Context, runID string) ([]BatchEvent, error)
}

// Ledger persists runs and batch events
type Ledger interface {
	SaveRun(ctx context.Context, r Run) error
	SaveBatch(ctx context.Context, ev BatchEvent) error
	Latest(ctx context.Context) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
	Batches(ctx context.Context, runID string) ([]BatchEvent, error)
}

// ExtractPort is the extraction stage
type ExtractPort = extractdom.RunnerPort

// LoadPort is the load stage
type LoadPort = loaddom.RunnerPort

// SinkRemover deletes a committed sink after a successful load
type SinkRemover interface {
	Remove(h extractdom.SinkHandle) error
}
