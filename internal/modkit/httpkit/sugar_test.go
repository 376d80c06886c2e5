package httpkit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	phttp "stockpipe/internal/platform/net/http"

	"github.com/go-chi/chi/v5"
)

func TestGetPostRegister(t *testing.T) {
	r := phttp.AdaptChi(chi.NewRouter())
	Get(r, "/latest", func(*http.Request) (any, error) { return "latest", nil })
	Post(r, "/", func(*http.Request) (any, error) { return Accepted("queued"), nil })

	for _, c := range []struct {
		method, path string
		code         int
	}{
		{http.MethodGet, "/latest", http.StatusOK},
		{http.MethodPost, "/", http.StatusAccepted},
		{http.MethodPost, "/latest", http.StatusMethodNotAllowed},
	} {
		rr := httptest.NewRecorder()
		r.Mux().ServeHTTP(rr, httptest.NewRequest(c.method, c.path, nil))
		if rr.Code != c.code {
			t.Fatalf("%s %s = %d want %d", c.method, c.path, rr.Code, c.code)
		}
	}
}
