package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockpipe/internal/platform/config"
	phttp "stockpipe/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func TestNewServerAddr(t *testing.T) {
	srv := phttp.NewServer(config.New().WithOverrides(map[string]string{"API_PORT": ":12345"}))
	if srv.Addr() != ":12345" {
		t.Fatalf("addr = %q", srv.Addr())
	}
	called := false
	_ = phttp.NewServer(config.New(), func(*chi.Mux) { called = true })
	if !called {
		t.Fatalf("option hook not invoked")
	}
}

func TestServerRunStopsOnContext(t *testing.T) {
	srv := phttp.NewServer(config.New().WithOverrides(map[string]string{"API_PORT": "127.0.0.1:0"}))
	r := srv.Router()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			w.Header().Set("X-MW", "yes")
			next.ServeHTTP(w, req)
		})
	})
	r.Get("/ping", func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "pong") })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	rec := httptest.NewRecorder()
	r.Mux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	if rec.Body.String() != "pong" || rec.Header().Get("X-MW") != "yes" {
		t.Fatalf("ping = %d %q", rec.Code, rec.Body.String())
	}

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestServerRunReturnsListenError(t *testing.T) {
	srv := phttp.NewServer(config.New().WithOverrides(map[string]string{"API_PORT": "127.0.0.1:abc"}))
	if err := srv.Run(context.Background()); err == nil {
		t.Fatalf("expected listen error")
	}
}

func TestMountSwagger(t *testing.T) {
	mux := chi.NewRouter()
	r := phttp.AdaptChi(mux)
	phttp.MountSwagger(r, []byte(`{"openapi":"3.0.3"}`), true)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil))
	var doc map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil || doc["openapi"] != "3.0.3" {
		t.Fatalf("doc = %q, %v", rec.Body.String(), err)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/index.html", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("swagger ui status = %d", rec.Code)
	}

	off := chi.NewRouter()
	phttp.MountSwagger(phttp.AdaptChi(off), []byte(`{}`), false)
	rec = httptest.NewRecorder()
	off.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/docs/openapi.json", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("disabled swagger served %d", rec.Code)
	}
}
