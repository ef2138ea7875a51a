package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/httpserver/deps"
	"github.com/MrSnakeDoc/tabstash/internal/sources/text"
)

// IdempotencyHeader may carry the idempotency key instead of the body.
const IdempotencyHeader = "Idempotency-Key"

type importRequest struct {
	OwnerID        string                 `json:"ownerId"`
	IdempotencyKey string                 `json:"idempotencyKey,omitempty"`
	Items          []domain.RawImportItem `json:"items"`
	DedupeMode     string                 `json:"dedupeMode,omitempty"`
}

type importTextRequest struct {
	OwnerID        string `json:"ownerId"`
	IdempotencyKey string `json:"idempotencyKey,omitempty"`
	Text           string `json:"text"`
	DedupeMode     string `json:"dedupeMode,omitempty"`
}

// Imports handles POST /api/imports.
func Imports(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body importRequest
		if err := decodeBody(w, r, d.MaxRequestBodyBytes, &body); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		runImport(w, r, d, body.OwnerID, body.IdempotencyKey, body.DedupeMode, body.Items)
	}
}

// ImportText handles POST /api/imports/text: links are extracted from free
// text and imported like a regular batch.
func ImportText(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body importTextRequest
		if err := decodeBody(w, r, d.MaxRequestBodyBytes, &body); err != nil {
			writeError(w, d.Logger, err)
			return
		}

		items, err := text.Extract(body.Text)
		if err != nil {
			writeError(w, d.Logger, err)
			return
		}

		runImport(w, r, d, body.OwnerID, body.IdempotencyKey, body.DedupeMode, items)
	}
}

func runImport(w http.ResponseWriter, r *http.Request, d deps.Deps, ownerID, key, mode string, items []domain.RawImportItem) {
	if strings.TrimSpace(key) == "" {
		key = r.Header.Get(IdempotencyHeader)
	}

	dedupe, err := domain.ParseDedupeMode(mode)
	if err != nil {
		writeError(w, d.Logger, err)
		return
	}

	result, err := d.Importer.Import(r.Context(), domain.ImportRequest{
		OwnerID:        ownerID,
		IdempotencyKey: key,
		Items:          items,
		DedupeMode:     dedupe,
	})
	if err != nil {
		writeError(w, d.Logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func decodeBody(w http.ResponseWriter, r *http.Request, limit int64, v any) error {
	if limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		return fmt.Errorf("%w: malformed JSON body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}
