package middleware_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"stockpipe/internal/platform/net/middleware"
)

func TestAccessLogPassesThrough(t *testing.T) {
	cases := []struct {
		name   string
		opt    middleware.AccessLogOptions
		status int
		body   []string
	}{
		{"created", middleware.AccessLogOptions{}, http.StatusCreated, []string{"ok"}},
		{"slow marked", middleware.AccessLogOptions{Slow: time.Nanosecond}, http.StatusOK, []string{"slow"}},
		{"multi write", middleware.AccessLogOptions{}, http.StatusOK, []string{"hi", "there"}},
		{"server error", middleware.AccessLogOptions{}, http.StatusServiceUnavailable, []string{"down"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if c.status != http.StatusOK {
					w.WriteHeader(c.status)
				}
				for _, b := range c.body {
					_, _ = io.WriteString(w, b)
				}
			})
			rr := httptest.NewRecorder()
			middleware.AccessLogZerolog(c.opt)(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/runs", nil))

			want := ""
			for _, b := range c.body {
				want += b
			}
			if rr.Code != c.status || rr.Body.String() != want {
				t.Fatalf("got %d %q, want %d %q", rr.Code, rr.Body.String(), c.status, want)
			}
		})
	}
}
