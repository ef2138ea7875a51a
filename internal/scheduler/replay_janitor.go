package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// ReplayJanitor periodically prunes expired replay records
type ReplayJanitor struct {
	store    domain.ReplayStore
	logger   logger.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewReplayJanitor creates a new replay janitor
func NewReplayJanitor(store domain.ReplayStore, log logger.Logger, interval time.Duration) *ReplayJanitor {
	return &ReplayJanitor{
		store:    store,
		logger:   log.Named("janitor"),
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start runs a cleanup immediately, then on every tick
func (j *ReplayJanitor) Start(ctx context.Context) {
	if _, err := j.Cleanup(ctx); err != nil {
		j.logger.Warn("initial replay cleanup failed", logger.Error(err))
	}

	ticker := time.NewTicker(j.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := j.Cleanup(ctx); err != nil {
					j.logger.Error("replay cleanup failed", logger.Error(err))
				}
			case <-j.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the janitor. Safe to call more than once.
func (j *ReplayJanitor) Stop() {
	j.stopOnce.Do(func() { close(j.stopCh) })
}

// Cleanup removes expired replay records and returns how many were removed
func (j *ReplayJanitor) Cleanup(ctx context.Context) (int, error) {
	n, err := j.store.CleanupExpired(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		j.logger.Info("expired replay records removed", logger.Int("count", n))
	} else {
		j.logger.Debug("no expired replay records")
	}
	return n, nil
}
