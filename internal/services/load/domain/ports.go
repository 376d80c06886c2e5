package domain

import (
	"context"

	"stockpipe/internal/core/record"
)

// RunnerPort is the public port of the stage
type RunnerPort interface {
	Run(ctx context.Context, sink SinkHandle) (Result, error)
}

// CredentialPort resolves the service credential
type CredentialPort interface {
	Resolve(ctx context.Context) (Credential, error)
}

// WarehouseOpener connects to the configured warehouse with cred
type WarehouseOpener func(ctx context.Context, cred Credential) (Warehouse, error)

// SinkReader streams records; io.EOF ends the stream
type SinkReader interface {
	Next() (record.Record, error)
	Close() error
}

// SinkSource verifies and opens committed sinks
type SinkSource interface {
	Verify(h SinkHandle) error
	Open(h SinkHandle, s record.Schema) (SinkReader, error)
}

// EventsPort receives batch ledger events; implementations must not block for long
type EventsPort interface {
	BatchEvent(ctx context.Context, ev BatchEvent)
}
