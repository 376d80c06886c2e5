package http

import (
	"net/http"

	httpSwagger "github.com/swaggo/http-swagger"
)

// MountSwagger serves doc at /docs/openapi.json and the Swagger UI under /docs/
func MountSwagger(r Router, doc []byte, enabled bool) {
	if !enabled || len(doc) == 0 {
		return
	}
	r.Get("/docs/openapi.json", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write(doc)
	})
	ui := httpSwagger.Handler(httpSwagger.URL("/docs/openapi.json"))
	r.Get("/docs/*", func(w http.ResponseWriter, req *http.Request) {
		ui.ServeHTTP(w, req)
	})
}
