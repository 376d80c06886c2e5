package httpkit

import (
	"net/http"
	"time"

	"stockpipe/internal/platform/net/middleware"
)

// CommonStack is the per module middleware slice mounted under the server defaults
// origins empty disables CORS
func CommonStack(origins []string, timeout time.Duration) []func(http.Handler) http.Handler {
	stack := []func(http.Handler) http.Handler{}
	if len(origins) > 0 {
		stack = append(stack, middleware.CORS(middleware.CORSOptions{AllowedOrigins: origins, MaxAge: 300}))
	}
	if timeout > 0 {
		stack = append(stack, middleware.Timeout(timeout))
	}
	return stack
}
