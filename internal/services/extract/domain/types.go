// Package domain holds the types and ports of the extraction stage
package domain

import (
	"stockpipe/internal/adapters/credentials"
	"stockpipe/internal/adapters/sink/ndjson"
	"stockpipe/internal/adapters/source/investing"
	"stockpipe/internal/core/normalize"
)

// RawItem re-exports the scraped row shape
type RawItem = investing.Item

// SourceStats re-exports the scrape counters
type SourceStats = investing.Stats

// Cell re-exports a header/text pair
type Cell = normalize.Cell

// Credential re-exports the resolved credential bundle
type Credential = credentials.Credential

// SinkHandle re-exports a committed sink
type SinkHandle = ndjson.Handle

// Result reports a finished extraction
type Result struct {
	RunID       string     `json:"run_id"`
	RecordCount int64      `json:"record_count"`
	Skipped     int64      `json:"skipped"`
	Pages       int        `json:"pages"`
	Sink        SinkHandle `json:"-"`
	SinkDir     string     `json:"sink_dir,omitempty"`
}
