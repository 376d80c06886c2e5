package modkit

import (
	"stockpipe/internal/modkit/module"
	"stockpipe/internal/platform/logger"
	phttp "stockpipe/internal/platform/net/http"
)

// Module is the common surface for pipeline modules; stage modules mount no routes
type Module = module.Module

// MountAll mounts every module's routes on r in order
func MountAll(r phttp.Router, mods ...Module) {
	log := logger.Named("modkit")
	for _, m := range mods {
		if m == nil {
			continue
		}
		m.MountRoutes(r)
		log.Debug().Str("module", m.Name()).Msg("routes mounted")
	}
}
