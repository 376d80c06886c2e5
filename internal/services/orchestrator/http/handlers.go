// Package http provides the run status endpoints
package http

import (
	stdctx "context"
	_ "embed"
	"net/http"
	"strconv"
	"time"

	"stockpipe/internal/core/version"
	"stockpipe/internal/modkit/httpkit"
	perr "stockpipe/internal/platform/errors"
	"stockpipe/internal/services/orchestrator/domain"

	"github.com/go-chi/chi/v5"
)

// OpenAPI is the static document served under /docs
//
//go:embed openapi.json
var OpenAPI []byte

const (
	defaultLimit = 20
	maxLimit     = 200
)

// Deps are the handler dependencies
type Deps struct {
	Runner domain.RunnerPort
	Status domain.StatusPort

	// Base outlives requests; runs started over HTTP execute under it
	Base stdctx.Context
}

type handlers struct{ deps Deps }

// Register mounts the run routes
func Register(r httpkit.Router, d Deps) {
	h := &handlers{deps: d}

	httpkit.Get(r, "/", h.list)
	httpkit.Get(r, "/latest", h.latest)
	httpkit.Get(r, "/{id}/batches", h.batches)
	r.Post("/", httpkit.Handle(h.trigger))
}

// RunList is the list payload
type RunList struct {
	Runs  []domain.Run `json:"runs"`
	Limit int          `json:"limit" example:"20"`
}

// swagger:route GET /runs Runs runsList
// @Summary Recent pipeline runs, newest first
// @Tags Runs
// @Produce json
// @Param limit query int false "max runs (1-200)"
// @Success 200 {object} RunList "ok"
// @Router /runs [get]
func (h *handlers) list(r *http.Request) (any, error) {
	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxLimit {
			return nil, perr.WithField(perr.InvalidArgf("limit must be an integer between 1 and %d", maxLimit), "limit")
		}
		limit = n
	}
	runs, err := h.deps.Status.List(r.Context(), limit)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []domain.Run{}
	}
	return RunList{Runs: runs, Limit: limit}, nil
}

// swagger:route GET /runs/latest Runs runsLatest
// @Summary Latest pipeline run
// @Tags Runs
// @Produce json
// @Success 200 {object} domain.Run "ok"
// @Failure 404 {object} httpkit.Envelope "no runs yet"
// @Router /runs/latest [get]
func (h *handlers) latest(r *http.Request) (any, error) {
	return h.deps.Status.Latest(r.Context())
}

// swagger:route GET /runs/{id}/batches Runs runsBatches
// @Summary Load batch events of a run
// @Tags Runs
// @Produce json
// @Param id path string true "run id"
// @Success 200 {array} domain.BatchEvent "ok"
// @Router /runs/{id}/batches [get]
func (h *handlers) batches(r *http.Request) (any, error) {
	evs, err := h.deps.Status.Batches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return nil, err
	}
	if evs == nil {
		evs = []domain.BatchEvent{}
	}
	return evs, nil
}

// swagger:route POST /runs Runs runsTrigger
// @Summary Start a pipeline run now
// @Tags Runs
// @Produce json
// @Success 202 {object} domain.Run "accepted"
// @Failure 409 {object} httpkit.Envelope "a run is already active"
// @Router /runs [post]
func (h *handlers) trigger(r *http.Request) httpkit.Response {
	base := h.deps.Base
	if base == nil {
		base = stdctx.WithoutCancel(r.Context())
	}
	run, err := h.deps.Runner.Start(base, domain.TriggerAPI)
	if err != nil {
		return httpkit.Error(err)
	}
	return httpkit.Accepted(run)
}

// HealthDeps are the liveness dependencies
type HealthDeps struct {
	ServiceName string
	StartedAt   time.Time
	Guard       func(stdctx.Context) error // nil when no store is configured
	Active      func() (domain.Run, bool)
}

// HealthResponse is the liveness payload
type HealthResponse struct {
	OK        bool              `json:"ok"         example:"true"`
	Service   string            `json:"service"    example:"stockpipe"`
	Started   string            `json:"started"    example:"2025-09-03T13:00:00Z"`
	Uptime    int64             `json:"uptime"     example:"300"`
	Store     string            `json:"store"      example:"ok"` // ok fail skipped
	Error     string            `json:"error,omitempty"`
	ActiveRun *domain.Run       `json:"active_run,omitempty"`
	Build     version.BuildInfo `json:"build"`
}

// RegisterHealth mounts GET /healthz
func RegisterHealth(r httpkit.Router, d HealthDeps) {
	r.Get("/healthz", httpkit.Handle(func(req *http.Request) httpkit.Response {
		resp := HealthResponse{
			OK:      true,
			Service: d.ServiceName,
			Started: d.StartedAt.UTC().Format(time.RFC3339),
			Uptime:  int64(time.Since(d.StartedAt) / time.Second),
			Store:   "skipped",
			Build:   version.Info(),
		}
		if d.Guard != nil {
			ctx, cancel := stdctx.WithTimeout(req.Context(), 2*time.Second)
			defer cancel()
			resp.Store = "ok"
			if err := d.Guard(ctx); err != nil {
				resp.OK, resp.Store, resp.Error = false, "fail", err.Error()
			}
		}
		if d.Active != nil {
			if run, ok := d.Active(); ok {
				resp.ActiveRun = &run
			}
		}
		if !resp.OK {
			return httpkit.Unavailable(resp)
		}
		return httpkit.OK(resp)
	}))
}
