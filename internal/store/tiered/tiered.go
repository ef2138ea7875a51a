// Package tiered pairs a primary store with a fallback store. Every call that
// the primary fails is logged, counted and retried on the fallback.
package tiered

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// Counter tracks fallback events across tiered stores.
type Counter struct {
	n atomic.Int64
}

// Inc records one fallback.
func (c *Counter) Inc() { c.n.Add(1) }

// Load returns the number of fallbacks so far.
func (c *Counter) Load() int64 { return c.n.Load() }

// shouldFallback reports whether err is an infrastructure failure.
// Uniqueness races and caller cancellation are answers, not outages.
func shouldFallback(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	return !errors.Is(err, domain.ErrUniquenessRace)
}

func logFallback(log logger.Logger, counter *Counter, op string, err error) {
	counter.Inc()
	log.Warn("primary store failed, using fallback",
		logger.String("op", op),
		logger.Int64("fallbacks", counter.Load()),
		logger.Error(err))
}

// Adopter stores a resource under its existing identity. A primary that
// implements it takes over resources created in the fallback during an outage.
type Adopter interface {
	Adopt(ctx context.Context, res domain.Resource) (*domain.Resource, error)
}

// Deleter removes a resource by ID. A fallback that implements it drops
// resources once the primary adopted them.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// ResourceStore is a two-tier domain.ResourceStore.
type ResourceStore struct {
	primary  domain.ResourceStore
	fallback domain.ResourceStore
	counter  *Counter
	logger   logger.Logger
}

// NewResourceStore creates a two-tier resource store. counter may be shared.
func NewResourceStore(primary, fallback domain.ResourceStore, counter *Counter, log logger.Logger) *ResourceStore {
	return &ResourceStore{
		primary:  primary,
		fallback: fallback,
		counter:  counter,
		logger:   log.Named("tiered"),
	}
}

// FindByOwnerAndURL looks in the primary first. When the primary has nothing,
// a resource left in the fallback by an earlier outage is moved into the
// primary and returned, so the key keeps a single identity.
func (s *ResourceStore) FindByOwnerAndURL(ctx context.Context, ownerID, canonicalURL string) (*domain.Resource, error) {
	res, err := s.primary.FindByOwnerAndURL(ctx, ownerID, canonicalURL)
	if shouldFallback(ctx, err) {
		logFallback(s.logger, s.counter, "find", err)
		return s.fallback.FindByOwnerAndURL(ctx, ownerID, canonicalURL)
	}
	if err != nil || res != nil {
		return res, err
	}
	return s.promote(ctx, ownerID, canonicalURL)
}

func (s *ResourceStore) promote(ctx context.Context, ownerID, canonicalURL string) (*domain.Resource, error) {
	stray, err := s.fallback.FindByOwnerAndURL(ctx, ownerID, canonicalURL)
	if err != nil || stray == nil {
		return nil, err
	}

	adopter, ok := s.primary.(Adopter)
	if !ok {
		return stray, nil
	}
	adopted, err := adopter.Adopt(ctx, *stray)
	if errors.Is(err, domain.ErrUniquenessRace) {
		// a concurrent writer created the key in the primary first
		return s.primary.FindByOwnerAndURL(ctx, ownerID, canonicalURL)
	}
	if shouldFallback(ctx, err) {
		logFallback(s.logger, s.counter, "adopt", err)
		return stray, nil
	}
	if err != nil {
		return nil, err
	}

	if d, ok := s.fallback.(Deleter); ok {
		if err := d.Delete(ctx, stray.ID); err != nil {
			s.logger.Warn("failed to drop adopted resource from fallback",
				logger.String("id", stray.ID), logger.Error(err))
		}
	}
	s.logger.Info("moved resource from fallback to primary",
		logger.String("id", adopted.ID),
		logger.String("owner_id", ownerID),
		logger.String("url", canonicalURL))
	return adopted, nil
}

func (s *ResourceStore) Upsert(ctx context.Context, ownerID, canonicalURL string, patch domain.ResourcePatch) (*domain.Resource, error) {
	res, err := s.primary.Upsert(ctx, ownerID, canonicalURL, patch)
	if !shouldFallback(ctx, err) {
		return res, err
	}
	logFallback(s.logger, s.counter, "upsert", err)
	return s.fallback.Upsert(ctx, ownerID, canonicalURL, patch)
}

func (s *ResourceStore) Insert(ctx context.Context, ownerID, canonicalURL string, patch domain.ResourcePatch) (*domain.Resource, error) {
	res, err := s.primary.Insert(ctx, ownerID, canonicalURL, patch)
	if !shouldFallback(ctx, err) {
		return res, err
	}
	logFallback(s.logger, s.counter, "insert", err)
	return s.fallback.Insert(ctx, ownerID, canonicalURL, patch)
}

// ReplayStore is a two-tier domain.ReplayStore.
type ReplayStore struct {
	primary  domain.ReplayStore
	fallback domain.ReplayStore
	counter  *Counter
	logger   logger.Logger
}

// NewReplayStore creates a two-tier replay store. counter may be shared.
func NewReplayStore(primary, fallback domain.ReplayStore, counter *Counter, log logger.Logger) *ReplayStore {
	return &ReplayStore{
		primary:  primary,
		fallback: fallback,
		counter:  counter,
		logger:   log.Named("tiered"),
	}
}

func (s *ReplayStore) Get(ctx context.Context, token string) (*domain.ImportResult, error) {
	res, err := s.primary.Get(ctx, token)
	if !shouldFallback(ctx, err) {
		return res, err
	}
	logFallback(s.logger, s.counter, "replay_get", err)
	return s.fallback.Get(ctx, token)
}

func (s *ReplayStore) Save(ctx context.Context, token string, result domain.ImportResult) error {
	err := s.primary.Save(ctx, token, result)
	if !shouldFallback(ctx, err) {
		return err
	}
	logFallback(s.logger, s.counter, "replay_save", err)
	return s.fallback.Save(ctx, token, result)
}

// CleanupExpired prunes both tiers. A primary failure is logged and does not
// stop the fallback cleanup.
func (s *ReplayStore) CleanupExpired(ctx context.Context) (int, error) {
	n, err := s.fallback.CleanupExpired(ctx)
	if err != nil {
		return n, err
	}

	p, err := s.primary.CleanupExpired(ctx)
	if err != nil {
		s.logger.Warn("primary replay cleanup failed", logger.Error(err))
		return n, nil
	}
	return n + p, nil
}
