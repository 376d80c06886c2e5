// Package module defines the minimal contract for a modkit module
package module

import (
	phttp "stockpipe/internal/platform/net/http"
)

// Module defines the minimal contract used by modkit
// kept in its own package so modules exporting port types avoid import cycles
type Module interface {
	MountRoutes(r phttp.Router)
	Ports() any
	Name() string
}
