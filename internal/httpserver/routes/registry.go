// Package routes mounts every HTTP endpoint. Each file registers itself from
// init() under a Scope that picks its middleware stack.
package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tabstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabstash/internal/httpserver/mw"
)

// Scope selects the middleware stack a registrar is mounted under.
type Scope int

const (
	Public  Scope = iota // no extra middleware
	Admin                // restricted to deps.AdminCIDRS
	Limited              // per-client token bucket shared by all Limited routes
)

type Registrar func(r chi.Router, d deps.Deps)

type entry struct {
	scope Scope
	reg   Registrar
}

var registry []entry

// Register adds a registrar under scope.
func Register(scope Scope, reg Registrar) {
	registry = append(registry, entry{scope: scope, reg: reg})
}

// RegisterAll mounts every registrar. Called once per router.
func RegisterAll(r chi.Router, d deps.Deps) {
	stacks := map[Scope][]func(http.Handler) http.Handler{
		Admin: {mw.AllowOnlyCIDRS(d.AdminCIDRS, d.TrustProxy, d.Logger)},
		Limited: {mw.RateLimit(mw.RateLimitConfig{
			Burst:             d.ImportBurst,
			RefillPerIPPerMin: d.ImportRefillPerMin,
			MaxEntries:        10000,
			TrustProxy:        d.TrustProxy,
		})},
	}

	for _, e := range registry {
		e.reg(r.With(stacks[e.scope]...), d)
	}
}
