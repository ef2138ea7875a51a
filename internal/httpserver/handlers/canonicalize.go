package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/tabstash/internal/canonical"
	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/httpserver/deps"
)

type canonicalizeResponse struct {
	URL       string `json:"url"`
	Canonical string `json:"canonical"`
	Domain    string `json:"domain,omitempty"`
}

// Canonicalize handles GET /api/canonicalize?url=...
func Canonicalize(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := r.URL.Query().Get("url")
		if strings.TrimSpace(raw) == "" {
			writeError(w, d.Logger, fmt.Errorf("%w: url query parameter is required", domain.ErrInvalidInput))
			return
		}

		c := canonical.Canonicalize(raw)
		writeJSON(w, http.StatusOK, canonicalizeResponse{
			URL:       raw,
			Canonical: c,
			Domain:    domain.DomainOf(c),
		})
	}
}
