package domain

import (
	"context"

	"stockpipe/internal/core/record"
)

// RunnerPort is the public port of the stage
type RunnerPort interface {
	Run(ctx context.Context, runID string) (Result, error)
}

// CredentialPort resolves the service credential
type CredentialPort interface {
	Resolve(ctx context.Context) (Credential, error)
}

// Source streams raw items; an emit error aborts the scrape and is returned
type Source interface {
	Scrape(ctx context.Context, token string, emit func(RawItem) error) (SourceStats, error)
}

// Normalizer maps one raw row to a record
type Normalizer interface {
	Normalize(entity string, cells []Cell) (record.Record, error)
}

// Sink hands out a fresh writer per run
type Sink interface {
	Create(ctx context.Context, runID string) (SinkWriter, error)
}

// SinkWriter appends records and commits them as a unit
type SinkWriter interface {
	Write(r record.Record) error
	Count() int64
	Commit(table string, skipped int64) (SinkHandle, error)
	Abort() error
}
