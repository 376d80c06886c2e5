package modkit

import (
	"net/http"
	"strings"

	phttp "stockpipe/internal/platform/net/http"
)

// Built is a plain struct with the fields modules care about
type Built struct {
	Name     string
	Prefix   string
	Mw       []func(http.Handler) http.Handler
	Register func(phttp.Router)
}

// Build applies Option funcs and returns a plain struct
func Build(opts ...Option) Built {
	var c buildCfg
	for _, o := range opts {
		o(&c)
	}
	if c.register == nil {
		c.register = func(phttp.Router) {}
	}
	prefix := strings.TrimSpace(c.prefix)
	if prefix != "" {
		prefix = "/" + strings.Trim(prefix, "/")
	}
	return Built{
		Name:     c.name,
		Prefix:   prefix,
		Mw:       append([]func(http.Handler) http.Handler(nil), c.mw...),
		Register: c.register,
	}
}

// Mount registers b's routes on r, scoped under Prefix with Mw when either is set
func (b Built) Mount(r phttp.Router) {
	if b.Prefix == "" && len(b.Mw) == 0 {
		b.Register(r)
		return
	}
	scoped := func(sub phttp.Router) {
		if len(b.Mw) > 0 {
			sub.Use(b.Mw...)
		}
		b.Register(sub)
	}
	if b.Prefix == "" {
		r.Group(scoped)
		return
	}
	r.Route(b.Prefix, scoped)
}
