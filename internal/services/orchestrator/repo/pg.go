// Package repo provides the run ledger implementations
package repo

import (
	"context"

	"stockpipe/internal/modkit/repokit"
	perr "stockpipe/internal/platform/errors"
	pstrings "stockpipe/internal/platform/strings"
	"stockpipe/internal/platform/store"
	"stockpipe/internal/services/orchestrator/domain"
)

// Schema creates the ledger tables; safe to run on every start
const Schema = `
	CREATE TABLE IF NOT EXISTS pipeline_runs (
		id           text PRIMARY KEY,
		trigger      text        NOT NULL,
		state        text        NOT NULL,
		started_at   timestamptz NOT NULL,
		updated_at   timestamptz NOT NULL,
		finished_at  timestamptz,
		reason       text        NOT NULL DEFAULT '',
		code         text        NOT NULL DEFAULT '',
		sink_dir     text,
		records      bigint      NOT NULL DEFAULT 0,
		skipped      bigint      NOT NULL DEFAULT 0,
		rows_written bigint      NOT NULL DEFAULT 0,
		batches      bigint      NOT NULL DEFAULT 0,
		table_rows   bigint      NOT NULL DEFAULT -1
	);
	CREATE INDEX IF NOT EXISTS pipeline_runs_started_idx ON pipeline_runs (started_at DESC);

	CREATE TABLE IF NOT EXISTS pipeline_batches (
		id          bigserial PRIMARY KEY,
		run_id      text        NOT NULL,
		token       text        NOT NULL DEFAULT '',
		partition   int         NOT NULL,
		seq         int         NOT NULL,
		rows        int         NOT NULL,
		status      text        NOT NULL,
		attempt     int         NOT NULL DEFAULT 0,
		err         text        NOT NULL DEFAULT '',
		at          timestamptz NOT NULL
	);
	CREATE INDEX IF NOT EXISTS pipeline_batches_run_idx ON pipeline_batches (run_id, id);
`

// Repo is the ledger persistence surface
type Repo interface {
	EnsureSchema(ctx context.Context) error
	UpsertRun(ctx context.Context, r domain.Run) error
	InsertBatch(ctx context.Context, ev domain.BatchEvent) error
	LatestRun(ctx context.Context) (domain.Run, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	ListBatches(ctx context.Context, runID string) ([]domain.BatchEvent, error)
}

type (
	// PG is a Postgres implementation of the ledger repo
	PG      struct{}
	queries struct{ q repokit.Queryer }
)

// NewPG returns a binder for the Postgres implementation
func NewPG() repokit.Binder[Repo] { return PG{} }

// Bind attaches a Queryer to the Postgres implementation
func (PG) Bind(q repokit.Queryer) Repo { return &queries{q: q} }

// EnsureSchema creates the ledger tables when missing
func (r *queries) EnsureSchema(ctx context.Context) error {
	_, err := r.q.Exec(ctx, Schema)
	return perr.FromPostgres(err, "ledger: ensure schema")
}

// UpsertRun writes the current snapshot of a run
func (r *queries) UpsertRun(ctx context.Context, run domain.Run) error {
	const sql = `
		INSERT INTO pipeline_runs (
			id, trigger, state, started_at, updated_at, finished_at,
			reason, code, sink_dir, records, skipped, rows_written, batches, table_rows
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE
		SET state        = EXCLUDED.state,
		    updated_at   = EXCLUDED.updated_at,
		    finished_at  = EXCLUDED.finished_at,
		    reason       = EXCLUDED.reason,
		    code         = EXCLUDED.code,
		    sink_dir     = EXCLUDED.sink_dir,
		    records      = EXCLUDED.records,
		    skipped      = EXCLUDED.skipped,
		    rows_written = EXCLUDED.rows_written,
		    batches      = EXCLUDED.batches,
		    table_rows   = EXCLUDED.table_rows
	`
	_, err := r.q.Exec(ctx, sql,
		run.ID, string(run.Trigger), string(run.State), run.StartedAt, run.UpdatedAt, run.FinishedAt,
		run.Reason, run.Code, pstrings.SQLNull(run.SinkDir), run.Records, run.Skipped, run.RowsWritten, run.Batches, run.TableRows,
	)
	return perr.FromPostgresf(err, "ledger: upsert run %s", run.ID)
}

// InsertBatch appends a batch event
func (r *queries) InsertBatch(ctx context.Context, ev domain.BatchEvent) error {
	const sql = `
		INSERT INTO pipeline_batches (run_id, token, partition, seq, rows, status, attempt, err, at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := r.q.Exec(ctx, sql,
		ev.RunID, ev.Token, ev.Partition, ev.Seq, ev.Rows, string(ev.Status), ev.Attempt, ev.Err, ev.At,
	)
	return perr.FromPostgresf(err, "ledger: insert batch for run %s", ev.RunID)
}

const runColumns = `
	id, trigger, state, started_at, updated_at, finished_at,
	reason, code, sink_dir, records, skipped, rows_written, batches, table_rows
`

func scanRun(row store.Row) (domain.Run, error) {
	var (
		run            domain.Run
		trigger, state string
		sinkDir        *string
	)
	err := row.Scan(
		&run.ID, &trigger, &state, &run.StartedAt, &run.UpdatedAt, &run.FinishedAt,
		&run.Reason, &run.Code, &sinkDir, &run.Records, &run.Skipped, &run.RowsWritten, &run.Batches, &run.TableRows,
	)
	run.Trigger, run.State = domain.Trigger(trigger), domain.State(state)
	run.SinkDir = pstrings.Deref(sinkDir)
	return run, err
}

// LatestRun returns the most recently started run
func (r *queries) LatestRun(ctx context.Context) (domain.Run, error) {
	run, err := store.One(ctx, r.q, scanRun,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC, id DESC LIMIT 1`)
	if perr.IsCode(err, perr.ErrorCodeNotFound) {
		return domain.Run{}, perr.NotFoundf("no runs recorded yet")
	}
	return run, perr.FromPostgres(err, "ledger: latest run")
}

// ListRuns returns up to limit runs, newest first
func (r *queries) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	runs, err := store.Many(ctx, r.q, scanRun,
		`SELECT `+runColumns+` FROM pipeline_runs ORDER BY started_at DESC, id DESC LIMIT $1`, limit)
	return runs, perr.FromPostgres(err, "ledger: list runs")
}

// ListBatches returns the batch events of a run in write order
func (r *queries) ListBatches(ctx context.Context, runID string) ([]domain.BatchEvent, error) {
	const sql = `
		SELECT run_id, token, partition, seq, rows, status, attempt, err, at
		FROM pipeline_batches WHERE run_id = $1 ORDER BY id
	`
	evs, err := store.Many(ctx, r.q, func(row store.Row) (domain.BatchEvent, error) {
		var (
			ev     domain.BatchEvent
			status string
		)
		err := row.Scan(&ev.RunID, &ev.Token, &ev.Partition, &ev.Seq, &ev.Rows, &status, &ev.Attempt, &ev.Err, &ev.At)
		ev.Status = domain.BatchStatus(status)
		return ev, err
	}, sql, runID)
	return evs, perr.FromPostgresf(err, "ledger: list batches for run %s", runID)
}
