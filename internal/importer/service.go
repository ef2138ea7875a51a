// Package importer implements the deduplicated import pipeline: batch
// reconciliation against the resource store, wrapped in an idempotency guard.
package importer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// tokenDomain separates replay tokens from other hashed identifiers.
const tokenDomain = "tabstash/import/v1"

// Service is the entry point used by the HTTP handlers, the CLI and the
// bookmark scheduler.
type Service struct {
	reconciler *Reconciler
	guard      *Guard
	logger     logger.Logger
}

// NewService wires a reconciler and a guard over the given stores.
func NewService(resources domain.ResourceStore, replays domain.ReplayStore, log logger.Logger) *Service {
	log = log.Named("importer")
	return &Service{
		reconciler: NewReconciler(resources, log),
		guard:      NewGuard(replays, log),
		logger:     log,
	}
}

// Import validates req and runs it under its idempotency key, if any.
func (s *Service) Import(ctx context.Context, req domain.ImportRequest) (domain.ImportResult, error) {
	if err := req.Validate(); err != nil {
		return domain.ImportResult{}, err
	}

	token := ""
	if key := strings.TrimSpace(req.IdempotencyKey); key != "" {
		token = ReplayToken(req.OwnerID, key)
	}

	result, err := s.guard.WithIdempotency(ctx, token, func(ctx context.Context) (domain.ImportResult, error) {
		return s.reconciler.Reconcile(ctx, req.OwnerID, req.Items, req.DedupeMode)
	})
	if err != nil {
		s.logger.Error("import failed",
			logger.String("owner_id", req.OwnerID),
			logger.Int("items", len(req.Items)),
			logger.Error(err))
		return domain.ImportResult{}, err
	}

	s.logger.Info("import completed",
		logger.String("owner_id", req.OwnerID),
		logger.Int("items", len(req.Items)),
		logger.Int("created", len(result.Created)),
		logger.Int("reused", len(result.Reused)),
		logger.Bool("idempotent", token != ""))
	return result, nil
}

// ReplayToken scopes a caller-supplied idempotency key to its owner so that
// keys never replay across owners.
func ReplayToken(ownerID, key string) string {
	h := sha256.New()
	h.Write([]byte(tokenDomain))
	h.Write([]byte{0x00})
	h.Write([]byte(ownerID))
	h.Write([]byte{0x00})
	h.Write([]byte(key))
	return hex.EncodeToString(h.Sum(nil))
}
