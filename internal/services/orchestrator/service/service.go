// Package service runs extraction then load and records every run in the ledger
package service

import (
	"context"
	"sync"
	"time"

	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	loaddom "stockpipe/internal/services/load/domain"
	"stockpipe/internal/services/orchestrator/domain"

	"github.com/google/uuid"
)

// Config controls run finalization
type Config struct {
	KeepSink bool // keep the sink after a successful load
}

// Service is the pipeline orchestrator. At most one run is active per process
type Service struct {
	Ledger  domain.Ledger
	Extract domain.ExtractPort
	Load    domain.LoadPort
	Sinks   domain.SinkRemover
	Cfg     Config

	mu     sync.Mutex
	active *domain.Run
	wg     sync.WaitGroup
	now    func() time.Time
	newID  func() string
}

// New constructs the orchestrator and panics on nil deps
func New(ledger domain.Ledger, ex domain.ExtractPort, ld domain.LoadPort, sinks domain.SinkRemover, cfg Config) *Service {
	if ledger == nil || ex == nil || ld == nil || sinks == nil {
		panic("orchestrator.New: nil dependency")
	}
	return &Service{
		Ledger:  ledger,
		Extract: ex,
		Load:    ld,
		Sinks:   sinks,
		Cfg:     cfg,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Run executes a run and blocks until it is terminal. The returned error is
// the failing stage's error, or Conflict when another run is active
func (s *Service) Run(ctx context.Context, trigger domain.Trigger) (domain.Run, error) {
	r, err := s.reserve(ctx, trigger)
	if err != nil {
		return r, err
	}
	return s.execute(ctx, r)
}

// Start reserves a run synchronously and executes it in the background
// under ctx, which should outlive the caller's request
func (s *Service) Start(ctx context.Context, trigger domain.Trigger) (domain.Run, error) {
	r, err := s.reserve(ctx, trigger)
	if err != nil {
		return r, err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.execute(ctx, r)
	}()
	return r, nil
}

// Wait blocks until background runs started with Start finish
func (s *Service) Wait() { s.wg.Wait() }

// Active returns the run in progress, if any
func (s *Service) Active() (domain.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return domain.Run{}, false
	}
	return *s.active, true
}

func (s *Service) reserve(ctx context.Context, trigger domain.Trigger) (domain.Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return *s.active, perr.Conflictf("run %s is still %s", s.active.ID, s.active.State)
	}
	now := s.now().UTC()
	r := domain.Run{
		ID:        s.newID(),
		Trigger:   trigger,
		State:     domain.StatePending,
		StartedAt: now,
		UpdatedAt: now,
		TableRows: -1,
	}
	s.active = &r
	s.save(logger.WithRun(ctx, r.ID), r)
	return r, nil
}

func (s *Service) execute(ctx context.Context, r domain.Run) (domain.Run, error) {
	ctx = logger.WithStage(logger.WithRun(ctx, r.ID), "pipeline")
	log := logger.C(ctx)
	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}()

	fail := func(err error) (domain.Run, error) {
		if ferr := r.Fail(err, s.now().UTC()); ferr != nil {
			log.Error().Err(ferr).Msg("pipeline: state machine")
		}
		s.save(ctx, r)
		log.Error().Str("code", r.Code).Str("state", string(r.State)).Msg("pipeline: run failed")
		return r, err
	}

	if err := s.advance(ctx, &r, domain.StateExtracting); err != nil {
		return fail(err)
	}
	ex, err := s.Extract.Run(ctx, r.ID)
	if err != nil {
		return fail(err)
	}
	r.SinkDir, r.Records, r.Skipped = ex.SinkDir, ex.RecordCount, ex.Skipped

	if err := s.advance(ctx, &r, domain.StateLoading); err != nil {
		return fail(err)
	}
	ld, err := s.Load.Run(ctx, ex.Sink)
	r.RowsWritten, r.Batches, r.TableRows = ld.RowsWritten, ld.Batches, ld.TableRows
	if err != nil {
		return fail(err)
	}

	if !s.Cfg.KeepSink {
		if err := s.Sinks.Remove(ex.Sink); err != nil {
			log.Warn().Err(err).Str("sink", ex.SinkDir).Msg("pipeline: remove sink failed")
		} else {
			r.SinkDir = ""
		}
	}
	if err := s.advance(ctx, &r, domain.StateSucceeded); err != nil {
		return fail(err)
	}
	log.Info().
		Int64("records", r.Records).
		Int64("skipped", r.Skipped).
		Int64("rows_written", r.RowsWritten).
		Int64("table_rows", r.TableRows).
		Dur("took", r.UpdatedAt.Sub(r.StartedAt)).
		Msg("pipeline: run succeeded")
	return r, nil
}

func (s *Service) advance(ctx context.Context, r *domain.Run, to domain.State) error {
	if err := r.Advance(to, s.now().UTC()); err != nil {
		return err
	}
	s.mu.Lock()
	if s.active != nil {
		*s.active = *r
	}
	s.mu.Unlock()
	s.save(ctx, *r)
	return nil
}

// save writes the run snapshot; ledger failures never change a run's outcome
func (s *Service) save(ctx context.Context, r domain.Run) {
	if err := s.Ledger.SaveRun(context.WithoutCancel(ctx), r); err != nil {
		logger.C(ctx).Warn().Err(err).Str("state", string(r.State)).Msg("pipeline: ledger write failed")
	}
}

// Latest returns the most recent run
func (s *Service) Latest(ctx context.Context) (domain.Run, error) { return s.Ledger.Latest(ctx) }

// List returns recent runs, newest first
func (s *Service) List(ctx context.Context, limit int) ([]domain.Run, error) {
	return s.Ledger.List(ctx, limit)
}

// Batches returns the batch events of a run
func (s *Service) Batches(ctx context.Context, runID string) ([]domain.BatchEvent, error) {
	return s.Ledger.Batches(ctx, runID)
}

// Events adapts a ledger to the load stage's event port
func Events(l domain.Ledger) loaddom.EventsPort { return ledgerEvents{l} }

type ledgerEvents struct{ l domain.Ledger }

func (e ledgerEvents) BatchEvent(ctx context.Context, ev domain.BatchEvent) {
	if err := e.l.SaveBatch(ctx, ev); err != nil {
		logger.C(ctx).Warn().Err(err).Str("status", string(ev.Status)).Msg("pipeline: ledger batch write failed")
	}
}
