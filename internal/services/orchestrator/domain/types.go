// Package domain holds the run model of the pipeline orchestrator
package domain

import (
	"time"

	perr "stockpipe/internal/platform/errors"
	ptime "stockpipe/internal/platform/time"
	loaddom "stockpipe/internal/services/load/domain"
)

// State is the lifecycle of one pipeline run
type State string

// Run states; Succeeded and Failed are terminal
const (
	StatePending    State = "pending"
	StateExtracting State = "extracting"
	StateLoading    State = "loading"
	StateSucceeded  State = "succeeded"
	StateFailed     State = "failed"
)

var next = map[State][]State{
	StatePending:    {StateExtracting, StateFailed},
	StateExtracting: {StateLoading, StateFailed},
	StateLoading:    {StateSucceeded, StateFailed},
}

// Terminal reports whether no further transition is allowed
func (s State) Terminal() bool { return s == StateSucceeded || s == StateFailed }

// CanTransition reports whether s may move to to
func (s State) CanTransition(to State) bool {
	for _, n := range next[s] {
		if n == to {
			return true
		}
	}
	return false
}

// Trigger names what started a run
type Trigger string

// Run triggers
const (
	TriggerCLI      Trigger = "cli"
	TriggerSchedule Trigger = "schedule"
	TriggerAPI      Trigger = "api"
)

// Run is the ledger record of one pipeline execution
type Run struct {
	ID         string     `json:"id"`
	Trigger    Trigger    `json:"trigger"`
	State      State      `json:"state"`
	StartedAt  time.Time  `json:"started_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Reason is the failing stage error, verbatim
	Reason string `json:"reason,omitempty"`
	Code   string `json:"code,omitempty"`

	SinkDir     string `json:"sink_dir,omitempty"`
	Records     int64  `json:"records"`
	Skipped     int64  `json:"skipped"`
	RowsWritten int64  `json:"rows_written"`
	Batches     int64  `json:"batches"`
	TableRows   int64  `json:"table_rows"`
}

// Advance moves r to state at now; illegal transitions are programmer errors
func (r *Run) Advance(to State, now time.Time) error {
	if !r.State.CanTransition(to) {
		return perr.Internalf("run %s: illegal transition %s -> %s", r.ID, r.State, to)
	}
	r.State = to
	r.UpdatedAt = now
	if to.Terminal() {
		r.FinishedAt = ptime.Ptr(now)
	}
	return nil
}

// Fail moves r to Failed keeping err's text as the reason
func (r *Run) Fail(err error, now time.Time) error {
	if err := r.Advance(StateFailed, now); err != nil {
		return err
	}
	r.Reason = err.Error()
	r.Code = perr.CodeOf(err).String()
	return nil
}

type (
	// BatchEvent is a load batch ledger entry
	BatchEvent = loaddom.BatchEvent
	// BatchStatus is the lifecycle of a batch
	BatchStatus = loaddom.BatchStatus
)
