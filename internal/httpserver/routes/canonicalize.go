package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tabstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabstash/internal/httpserver/handlers"
)

func init() { Register(Public, registerCanonicalize) }

func registerCanonicalize(r chi.Router, d deps.Deps) {
	r.Get("/api/canonicalize", handlers.Canonicalize(d))
}
