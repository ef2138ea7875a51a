package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/tabstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabstash/internal/httpserver/handlers"
)

func init() { Register(Limited, registerImports) }

func registerImports(r chi.Router, d deps.Deps) {
	r.Post("/api/imports", handlers.Imports(d))
	r.Post("/api/imports/text", handlers.ImportText(d))
}
