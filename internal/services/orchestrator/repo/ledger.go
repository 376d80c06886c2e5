package repo

import (
	"context"
	"time"

	"stockpipe/internal/modkit/repokit"
	"stockpipe/internal/services/orchestrator/domain"
)

// Postgres adapts the bound repo to the ledger port
// writes run in a short tx bounded by a statement timeout
type Postgres struct {
	db   repokit.TxRunner
	repo Repo
}

// NewPostgres binds the ledger to db; stmtTimeout <= 0 leaves the server default
func NewPostgres(db repokit.TxRunner, stmtTimeout time.Duration) *Postgres {
	return &Postgres{
		db:   repokit.WithBeginHooks(db, repokit.StatementTimeout(stmtTimeout)),
		repo: repokit.MustBind(NewPG(), db),
	}
}

// Migrate creates the ledger tables
func (p *Postgres) Migrate(ctx context.Context) error {
	return repokit.InTx(ctx, p.db, NewPG(), func(r Repo) error { return r.EnsureSchema(ctx) })
}

// SaveRun upserts the run snapshot
func (p *Postgres) SaveRun(ctx context.Context, run domain.Run) error {
	return repokit.InTx(ctx, p.db, NewPG(), func(r Repo) error { return r.UpsertRun(ctx, run) })
}

// SaveBatch appends a batch event
func (p *Postgres) SaveBatch(ctx context.Context, ev domain.BatchEvent) error {
	return repokit.InTx(ctx, p.db, NewPG(), func(r Repo) error { return r.InsertBatch(ctx, ev) })
}

// Latest returns the most recent run
func (p *Postgres) Latest(ctx context.Context) (domain.Run, error) { return p.repo.LatestRun(ctx) }

// List returns up to limit runs, newest first
func (p *Postgres) List(ctx context.Context, limit int) ([]domain.Run, error) {
	return p.repo.ListRuns(ctx, limit)
}

// Batches returns the batch events of a run
func (p *Postgres) Batches(ctx context.Context, runID string) ([]domain.BatchEvent, error) {
	return p.repo.ListBatches(ctx, runID)
}

var (
	_ domain.Ledger = (*Postgres)(nil)
	_ domain.Ledger = (*Memory)(nil)
)
