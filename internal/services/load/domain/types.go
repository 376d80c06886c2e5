// Package domain holds the types and ports of the load stage
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/adapters/warehouse"
	"stockpipe/internal/core/record"
)

type (
	// Batch re-exports the unit of warehouse commit
	Batch = warehouse.Batch
	// Row re-exports a keyed, projected record
	Row = warehouse.Row
	// Warehouse re-exports the warehouse contract
	Warehouse = warehouse.Warehouse
	// SinkHandle re-exports a committed sink
	SinkHandle = ndjson.Handle
	// Credential re-exports the resolved credential bundle
	Credential = credentials.Credential
)

// Result reports a finished load
type Result struct {
	RunID       string `json:"run_id"`
	Warehouse   string `json:"warehouse"`
	Records     int64  `json:"records"`
	RowsWritten int64  `json:"rows_written"`
	Batches     int64  `json:"batches"`
	Deduped     int64  `json:"deduped"`
	TableRows   int64  `json:"table_rows"` // -1 when the count could not be read
}

// BatchStatus is the lifecycle of one batch in the ledger
type BatchStatus string

// Batch lifecycle events
const (
	BatchAttempted BatchStatus = "attempted"
	BatchCommitted BatchStatus = "committed"
	BatchRejected  BatchStatus = "rejected"
	BatchFailed    BatchStatus = "failed"
)

// BatchEvent is one ledger entry for a batch
type BatchEvent struct {
	RunID     string      `json:"run_id"`
	Token     string      `json:"token,omitempty"`
	Partition int         `json:"partition"`
	Seq       int         `json:"seq"`
	Rows      int         `json:"rows"`
	Status    BatchStatus `json:"status"`
	Attempt   int         `json:"attempt,omitempty"`
	Err       string      `json:"err,omitempty"`
	At        time.Time   `json:"at"`
}

// NewBatch validates records against s, keys them and collapses duplicate keys
// to the last occurrence, keeping the position of the first. The token is a
// SHA-256 over the keyed content, so equal input yields an equal token
func NewBatch(s record.Schema, recs []record.Record) (b Batch, deduped int, err error) {
	pos := make(map[string]int, len(recs))
	rows := make([]Row, 0, len(recs))
	for _, r := range recs {
		if err := s.Validate(r); err != nil {
			return Batch{}, 0, err
		}
		key, err := s.Key(r)
		if err != nil {
			return Batch{}, 0, err
		}
		row := Row{Key: key, Values: s.Project(r)}
		if i, dup := pos[key]; dup {
			rows[i] = row
			deduped++
			continue
		}
		pos[key] = len(rows)
		rows = append(rows, row)
	}

	h := sha256.New()
	for _, r := range rows {
		h.Write([]byte(r.Key))
		for _, v := range r.Values {
			h.Write([]byte{0x1f})
			h.Write([]byte(v.Canonical()))
		}
		h.Write([]byte{0x1e})
	}
	return Batch{Token: hex.EncodeToString(h.Sum(nil)), Rows: rows}, deduped, nil
}
