// Package warehouse defines the contract the load stage commits batches through
package warehouse

import (
	"context"

	"stockpipe/internal/core/record"
)

// KeyColumn is the identity column every warehouse table carries ahead of the schema fields
const KeyColumn = "row_key"

// Row is one keyed record projected to schema order
type Row struct {
	Key    string
	Values []record.Value
}

// Batch is the unit of atomic commit. Token is deterministic over the keyed
// content so a replayed batch can be recognized by the warehouse
type Batch struct {
	Token string
	Rows  []Row
}

// Warehouse is an analytical table store with idempotent, keyed batch commits
type Warehouse interface {
	// Name identifies the driver in logs and reports
	Name() string
	// Ensure creates the dataset and table for s when missing
	Ensure(ctx context.Context, s record.Schema) error
	// Commit writes b as a unit: every row lands or none does. Rows whose key
	// already exists are overwritten
	Commit(ctx context.Context, s record.Schema, b Batch) error
	// Count returns the logical row count of the table
	Count(ctx context.Context, s record.Schema) (int64, error)
	Close() error
}

// Columns returns the warehouse column order for s
func Columns(s record.Schema) []string {
	return append([]string{KeyColumn}, s.Names()...)
}
