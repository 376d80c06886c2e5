// Package service provides the extraction stage implementation
package service

import (
	"context"

	"stockpipe/internal/core/record"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/platform/logger"
	"stockpipe/internal/services/extract/domain"

	"github.com/google/uuid"
)

// Config holds the stage policy
type Config struct {
	// FailOnNormalizationError aborts on the first bad item instead of skipping it
	FailOnNormalizationError bool

	// AllowEmpty commits a sink with zero records instead of failing with NoData
	AllowEmpty bool
}

// Service implements the extraction stage
type Service struct {
	Creds  domain.CredentialPort
	Source domain.Source
	Norm   domain.Normalizer
	Sink   domain.Sink
	Schema record.Schema
	Cfg    Config
}

// New constructs the extraction service
func New(creds domain.CredentialPort, src domain.Source, norm domain.Normalizer, sink domain.Sink, schema record.Schema, cfg Config) *Service {
	if creds == nil {
		panic("extract.Service requires a non nil credential provider")
	}
	if src == nil {
		panic("extract.Service requires a non nil Source")
	}
	if norm == nil {
		panic("extract.Service requires a non nil Normalizer")
	}
	if sink == nil {
		panic("extract.Service requires a non nil Sink")
	}
	if err := schema.Check(); err != nil {
		panic("extract.Service: " + err.Error())
	}
	return &Service{Creds: creds, Source: src, Norm: norm, Sink: sink, Schema: schema, Cfg: cfg}
}

// Run scrapes the source, normalizes every item and commits the records to a
// fresh sink. Nothing is committed unless the whole scrape succeeds
func (s *Service) Run(ctx context.Context, runID string) (domain.Result, error) {
	if runID == "" {
		runID = uuid.NewString()
	}
	ctx = logger.WithStage(logger.WithRun(ctx, runID), "extract")
	log := logger.C(ctx)
	res := domain.Result{RunID: runID}

	cred, err := s.Creds.Resolve(ctx)
	if err != nil {
		return res, err
	}

	w, err := s.Sink.Create(ctx, runID)
	if err != nil {
		return res, err
	}
	committed := false
	defer func() {
		if !committed {
			if err := w.Abort(); err != nil {
				log.Warn().Err(err).Msg("extract: abort sink failed")
			}
		}
	}()

	var skipped int64
	st, err := s.Source.Scrape(ctx, cred.SourceToken(), func(it domain.RawItem) error {
		if err := ctx.Err(); err != nil {
			return perr.Wrap(err, perr.ErrorCodeCanceled, "extract canceled")
		}
		rec, err := s.normalize(it)
		if err != nil {
			if s.Cfg.FailOnNormalizationError {
				return err
			}
			skipped++
			log.Warn().Err(err).
				Str("stock", it.Stock).
				Str("field", fieldOf(err)).
				Msg("extract: skipping item")
			return nil
		}
		return w.Write(rec)
	})
	res.Pages = st.Pages
	res.Skipped = skipped
	res.RecordCount = w.Count()
	if err != nil {
		log.Error().Err(err).Str("code", perr.CodeOf(err).String()).Msg("extract: scrape failed")
		return res, err
	}

	if w.Count() == 0 && !s.Cfg.AllowEmpty {
		return res, perr.Newf(perr.ErrorCodeNoData, "no records extracted from %d stocks (%d skipped)", st.Stocks, skipped)
	}

	h, err := w.Commit(s.Schema.Table, skipped)
	if err != nil {
		return res, err
	}
	committed = true
	res.Sink, res.SinkDir = h, h.Dir

	log.Info().
		Int64("records", res.RecordCount).
		Int64("skipped", skipped).
		Int("stocks", st.Stocks).
		Int("pages", st.Pages).
		Int("no_table", st.NoTable).
		Int("skipped_pages", st.SkippedPages).
		Str("sink", h.Dir).
		Msg("extract: sink committed")
	return res, nil
}

// normalize maps it to a record and checks it fits the target schema
func (s *Service) normalize(it domain.RawItem) (record.Record, error) {
	rec, err := s.Norm.Normalize(it.Stock, it.Cells)
	if err != nil {
		return record.Record{}, err
	}
	if err := s.Schema.Validate(rec); err != nil {
		return record.Record{}, perr.WithField(perr.Wrap(err, perr.ErrorCodeNormalization, "normalized record does not fit schema"), fieldOf(err))
	}
	return rec, nil
}

func fieldOf(err error) string {
	if e, ok := perr.As(err); ok {
		return e.Field()
	}
	return ""
}
