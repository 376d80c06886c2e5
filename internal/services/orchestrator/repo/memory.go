package repo

import (
	"context"
	"sync"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/services/orchestrator/domain"
)

// Memory is a bounded in process ledger; the oldest run and its batches are
// evicted once capacity runs are held. Every write is also logged
type Memory struct {
	mu      sync.RWMutex
	cap     int
	order   []string // run ids, oldest first
	runs    map[string]domain.Run
	batches map[string][]domain.BatchEvent
}

// NewMemory returns a ledger keeping the last capacity runs (<=0 -> 100)
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = 100
	}
	return &Memory{
		cap:     capacity,
		runs:    map[string]domain.Run{},
		batches: map[string][]domain.BatchEvent{},
	}
}

// SaveRun stores the snapshot of a run
func (m *Memory) SaveRun(ctx context.Context, r domain.Run) error {
	m.mu.Lock()
	if _, ok := m.runs[r.ID]; !ok {
		m.order = append(m.order, r.ID)
		if len(m.order) > m.cap {
			old := m.order[0]
			m.order = m.order[1:]
			delete(m.runs, old)
			delete(m.batches, old)
		}
	}
	m.runs[r.ID] = r
	m.mu.Unlock()

	ev := logger.C(ctx).Info().
		Str("state", string(r.State)).
		Str("trigger", string(r.Trigger))
	if r.Reason != "" {
		ev = ev.Str("code", r.Code).Str("reason", r.Reason)
	}
	ev.Msg("ledger: run")
	return nil
}

// SaveBatch appends a batch event of a known run; events of evicted or
// unknown runs are only logged
func (m *Memory) SaveBatch(ctx context.Context, ev domain.BatchEvent) error {
	m.mu.Lock()
	if _, ok := m.runs[ev.RunID]; ok {
		m.batches[ev.RunID] = append(m.batches[ev.RunID], ev)
	}
	m.mu.Unlock()

	logger.C(ctx).Debug().
		Str("token", ev.Token).
		Str("status", string(ev.Status)).
		Int("attempt", ev.Attempt).
		Msg("ledger: batch")
	return nil
}

// Latest returns the most recent run
func (m *Memory) Latest(context.Context) (domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.order) == 0 {
		return domain.Run{}, perr.NotFoundf("no runs recorded yet")
	}
	return m.runs[m.order[len(m.order)-1]], nil
}

// List returns up to limit runs, newest first
func (m *Memory) List(_ context.Context, limit int) ([]domain.Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Run, 0, min(limit, len(m.order)))
	for i := len(m.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.runs[m.order[i]])
	}
	return out, nil
}

// Batches returns the batch events of a run in write order
func (m *Memory) Batches(_ context.Context, runID string) ([]domain.BatchEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.runs[runID]; !ok {
		return nil, perr.NotFoundf("run %s not found", runID)
	}
	return append([]domain.BatchEvent(nil), m.batches[runID]...), nil
}
