// Package service provides the load stage implementation
package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/platform/retry"
	"stockpipe/internal/services/load/domain"
)

// Config holds the stage tuning
type Config struct {
	BatchSize     int           // records per batch; <=0 -> 500
	Workers       int           // key partitions committing in parallel; <=0 -> 1
	MaxRetries    int           // attempts per batch including the first; <=0 -> 5
	RetryBase     time.Duration // first backoff; <=0 -> 1s
	RetryCap      time.Duration // backoff ceiling; <=0 -> 30s
	CommitTimeout time.Duration // per attempt; <=0 -> 5m
}

func (c Config) withDefaults() Config {
	if c.BatchSize <= 0 {
		c.BatchSize = 500
	}
	if c.Workers <= 0 {
		c.Workers = 1
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 5
	}
	if c.RetryBase <= 0 {
		c.RetryBase = time.Second
	}
	if c.RetryCap <= 0 {
		c.RetryCap = 30 * time.Second
	}
	if c.CommitTimeout <= 0 {
		c.CommitTimeout = 5 * time.Minute
	}
	return c
}

// Service implements the load stage
type Service struct {
	Creds  domain.CredentialPort
	Open   domain.WarehouseOpener
	Sink   domain.SinkSource
	Events domain.EventsPort // optional
	Schema record.Schema
	Cfg    Config

	sleep func(context.Context, time.Duration) error
	now   func() time.Time
}

// New constructs the load service
func New(creds domain.CredentialPort, open domain.WarehouseOpener, sink domain.SinkSource, schema record.Schema, cfg Config) *Service {
	if creds == nil {
		panic("load.Service requires a non nil credential provider")
	}
	if open == nil {
		panic("load.Service requires a non nil WarehouseOpener")
	}
	if sink == nil {
		panic("load.Service requires a non nil SinkSource")
	}
	if err := schema.Check(); err != nil {
		panic("load.Service: " + err.Error())
	}
	return &Service{
		Creds: creds, Open: open, Sink: sink,
		Schema: schema,
		Cfg:    cfg.withDefaults(),
		sleep:  retry.SleepCtx,
		now:    time.Now,
	}
}

// WithEvents wires a batch ledger
func (s *Service) WithEvents(ev domain.EventsPort) *Service {
	s.Events = ev
	return s
}

// WithSleep replaces the backoff sleep, for tests
func (s *Service) WithSleep(fn func(context.Context, time.Duration) error) *Service {
	s.sleep = fn
	return s
}

func (s *Service) policy() retry.Policy {
	return retry.Policy{
		Attempts: s.Cfg.MaxRetries,
		Base:     s.Cfg.RetryBase,
		Cap:      s.Cfg.RetryCap,
		Sleep:    s.sleep,
	}
}

// runState is shared by the dispatcher and the partitions of one Run
type runState struct {
	runID  string
	cancel context.CancelFunc

	once sync.Once
	err  error

	rows    atomic.Int64
	batches atomic.Int64
	deduped atomic.Int64
}

// fail records the first error and stops scheduling new batches
func (st *runState) fail(err error) {
	st.once.Do(func() {
		st.err = err
		st.cancel()
	})
}

// Run streams the sink into the warehouse. Records are routed by identity to
// Workers partitions; each partition commits its batches serially, so commits
// of one identity never reorder. The first permanent failure stops new batches
// and is returned; batches committed before it stay committed
func (s *Service) Run(ctx context.Context, h domain.SinkHandle) (domain.Result, error) {
	runID := h.Manifest.RunID
	ctx = logger.WithStage(logger.WithRun(ctx, runID), "load")
	log := logger.C(ctx)
	res := domain.Result{RunID: runID, TableRows: -1}

	if h.Manifest.Table != "" && h.Manifest.Table != s.Schema.Table {
		return res, perr.SchemaViolationf("sink holds table %s, loader targets %s", h.Manifest.Table, s.Schema.Table)
	}
	cred, err := s.Creds.Resolve(ctx)
	if err != nil {
		return res, err
	}
	if err := s.Sink.Verify(h); err != nil {
		return res, err
	}

	wh, err := s.Open(ctx, cred)
	if err != nil {
		return res, err
	}
	defer func() {
		if err := wh.Close(); err != nil {
			log.Warn().Err(err).Msg("load: close warehouse failed")
		}
	}()
	res.Warehouse = wh.Name()

	if err := s.policy().Do(ctx, func(ctx context.Context, _ int) error { return wh.Ensure(ctx, s.Schema) }); err != nil {
		return res, escalate(err, "ensure table "+s.Schema.Table)
	}

	rd, err := s.Sink.Open(h, s.Schema)
	if err != nil {
		return res, err
	}
	defer func() { _ = rd.Close() }()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	st := &runState{runID: runID, cancel: cancel}

	parts := make([]chan record.Record, s.Cfg.Workers)
	var wg sync.WaitGroup
	for i := range parts {
		parts[i] = make(chan record.Record, s.Cfg.BatchSize)
		wg.Add(1)
		go func(idx int, in <-chan record.Record) {
			defer wg.Done()
			s.partition(runCtx, st, wh, idx, in)
		}(i, parts[i])
	}

	n, derr := s.dispatch(runCtx, rd, parts)
	if derr != nil {
		if perr.IsCode(derr, perr.ErrorCodeSchemaViolation) {
			s.emit(ctx, domain.BatchEvent{RunID: runID, Partition: -1, Status: domain.BatchRejected, Err: derr.Error()})
		}
		st.fail(derr)
	}
	for _, p := range parts {
		close(p)
	}
	wg.Wait()

	res.Records = n
	res.RowsWritten = st.rows.Load()
	res.Batches = st.batches.Load()
	res.Deduped = st.deduped.Load()

	switch {
	case st.err != nil:
		log.Error().Err(st.err).
			Str("code", perr.CodeOf(st.err).String()).
			Int64("batches_committed", res.Batches).
			Msg("load: stage failed")
		return res, st.err
	case ctx.Err() != nil:
		return res, perr.Wrap(ctx.Err(), perr.ErrorCodeCanceled, "load canceled")
	}

	cctx, ccancel := context.WithTimeout(ctx, s.Cfg.CommitTimeout)
	defer ccancel()
	if total, err := wh.Count(cctx, s.Schema); err != nil {
		log.Warn().Err(err).Msg("load: table row count unavailable")
	} else {
		res.TableRows = total
	}

	log.Info().
		Str("warehouse", res.Warehouse).
		Int64("records", res.Records).
		Int64("rows_written", res.RowsWritten).
		Int64("batches", res.Batches).
		Int64("deduped", res.Deduped).
		Int64("table_rows", res.TableRows).
		Msg("load: done")
	return res, nil
}

// dispatch validates every record and routes it to its key partition
func (s *Service) dispatch(ctx context.Context, rd domain.SinkReader, parts []chan record.Record) (int64, error) {
	var n int64
	for {
		if ctx.Err() != nil {
			return n, nil
		}
		r, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		if err := s.Schema.Validate(r); err != nil {
			return n, perr.WithOp(err, fmt.Sprintf("sink record %d", n+1))
		}
		key, err := s.Schema.Key(r)
		if err != nil {
			return n, perr.WithOp(err, fmt.Sprintf("sink record %d", n+1))
		}
		select {
		case parts[partitionOf(key, len(parts))] <- r:
			n++
		case <-ctx.Done():
			return n, nil
		}
	}
}

// partition accumulates batches from in and commits them one at a time
func (s *Service) partition(ctx context.Context, st *runState, wh domain.Warehouse, idx int, in <-chan record.Record) {
	buf := make([]record.Record, 0, s.Cfg.BatchSize)
	seq := 0
	flush := func() bool {
		if len(buf) == 0 {
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		seq++
		err := s.commit(ctx, st, wh, idx, seq, buf)
		buf = buf[:0]
		if err != nil {
			st.fail(err)
			return false
		}
		return true
	}
	for r := range in {
		buf = append(buf, r)
		if len(buf) >= s.Cfg.BatchSize && !flush() {
			for range in {
			}
			return
		}
	}
	flush()
}

// commit builds and commits one batch with bounded retries. Every attempt runs
// detached from cancellation under its own timeout; cancellation is observed
// between attempts
func (s *Service) commit(ctx context.Context, st *runState, wh domain.Warehouse, part, seq int, recs []record.Record) error {
	ev := domain.BatchEvent{RunID: st.runID, Partition: part, Seq: seq}
	b, deduped, err := domain.NewBatch(s.Schema, recs)
	if err != nil {
		ev.Status, ev.Rows, ev.Err = domain.BatchRejected, len(recs), err.Error()
		s.emit(ctx, ev)
		return err
	}
	ev.Token, ev.Rows = b.Token, len(b.Rows)

	err = s.policy().Do(ctx, func(ctx context.Context, attempt int) error {
		a := ev
		a.Status, a.Attempt = domain.BatchAttempted, attempt
		s.emit(ctx, a)

		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.Cfg.CommitTimeout)
		defer cancel()
		return wh.Commit(cctx, s.Schema, b)
	})
	if err != nil {
		err = escalate(err, "batch "+short(b.Token))
		ev.Status, ev.Err = domain.BatchFailed, err.Error()
		if perr.IsCode(err, perr.ErrorCodeSchemaViolation) {
			ev.Status = domain.BatchRejected
		}
		s.emit(ctx, ev)
		return err
	}

	st.rows.Add(int64(len(b.Rows)))
	st.batches.Add(1)
	st.deduped.Add(int64(deduped))
	ev.Status = domain.BatchCommitted
	s.emit(ctx, ev)
	return nil
}

// escalate turns a retry outcome into the stage error: spent attempts become
// LoadFailed exactly once, coded permanent errors keep their code
func escalate(err error, what string) error {
	if ex, ok := retry.Exhausted(err); ok {
		return perr.Wrapf(ex.Err, perr.ErrorCodeLoadFailed, "%s: gave up after %d attempts", what, ex.Attempts)
	}
	switch perr.CodeOf(err) {
	case perr.ErrorCodeCanceled, perr.ErrorCodeSchemaViolation, perr.ErrorCodeCredentialMissing,
		perr.ErrorCodeLoadFailed, perr.ErrorCodeNotFound:
		return perr.WithOp(err, what)
	}
	return perr.Wrap(err, perr.ErrorCodeLoadFailed, what)
}

func (s *Service) emit(ctx context.Context, ev domain.BatchEvent) {
	ev.At = s.now().UTC()
	logger.C(ctx).Debug().
		Str("token", short(ev.Token)).
		Int("partition", ev.Partition).
		Int("seq", ev.Seq).
		Int("rows", ev.Rows).
		Int("attempt", ev.Attempt).
		Str("status", string(ev.Status)).
		Str("err", ev.Err).
		Msg("load: batch")
	if s.Events != nil {
		s.Events.BatchEvent(context.WithoutCancel(ctx), ev)
	}
}

func partitionOf(key string, n int) int {
	if n <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return int(h.Sum32() % uint32(n))
}

func short(token string) string {
	if len(token) > 12 {
		return token[:12]
	}
	return token
}
