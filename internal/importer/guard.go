package importer

import (
	"context"
	"fmt"
	"slices"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// saveTimeout bounds recording a result once the caller may be gone.
const saveTimeout = 5 * time.Second

// ComputeFunc produces an import result. It runs at most once per replay
// window for a given token, barring concurrent requests on different processes.
type ComputeFunc func(ctx context.Context) (domain.ImportResult, error)

// Guard replays recorded results for repeated idempotency tokens.
//
// Replay store failures never fail a call: a failed read runs compute as if
// no token was given, a failed write still returns the computed result.
// Concurrent calls sharing a token inside one process share one compute;
// across processes both may compute.
//
// A keyed compute and its recording are detached from caller cancellation.
// A caller that gives up gets its context error, while the import finishes
// and is recorded for the retry and for any caller sharing it.
type Guard struct {
	store  domain.ReplayStore
	logger logger.Logger
	flight singleflight.Group
}

// NewGuard creates a guard recording into store.
func NewGuard(store domain.ReplayStore, log logger.Logger) *Guard {
	return &Guard{
		store:  store,
		logger: log,
	}
}

// WithIdempotency runs compute, or replays the result recorded under token.
// An empty token always runs compute and records nothing. Each caller gets
// its own copy of the result lists.
func (g *Guard) WithIdempotency(ctx context.Context, token string, compute ComputeFunc) (domain.ImportResult, error) {
	if token == "" {
		return compute(ctx)
	}

	detached := context.WithoutCancel(ctx)
	ch := g.flight.DoChan(token, func() (interface{}, error) {
		return g.replayOrCompute(detached, token, compute)
	})

	select {
	case <-ctx.Done():
		g.logger.Debug("caller left before import finished", logger.String("token", token))
		return domain.ImportResult{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domain.ImportResult{}, res.Err
		}
		if res.Shared {
			g.logger.Debug("idempotent call shared in-flight result", logger.String("token", token))
		}
		return cloneResult(res.Val.(domain.ImportResult)), nil
	}
}

func cloneResult(r domain.ImportResult) domain.ImportResult {
	return domain.ImportResult{
		Created: slices.Clone(r.Created),
		Reused:  slices.Clone(r.Reused),
		Ignored: slices.Clone(r.Ignored),
	}
}

func (g *Guard) replayOrCompute(ctx context.Context, token string, compute ComputeFunc) (domain.ImportResult, error) {
	prior, err := g.store.Get(ctx, token)
	switch {
	case err != nil:
		g.logger.Warn("replay lookup failed, computing without replay",
			logger.String("token", token),
			logger.Error(fmt.Errorf("%w: %w", domain.ErrReplayStoreDegraded, err)))
	case prior != nil:
		g.logger.Debug("replaying recorded import result", logger.String("token", token))
		return *prior, nil
	}

	result, err := compute(ctx)
	if err != nil {
		return domain.ImportResult{}, err
	}

	saveCtx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := g.store.Save(saveCtx, token, result); err != nil {
		g.logger.Warn("failed to record import result, retries will recompute",
			logger.String("token", token),
			logger.Error(fmt.Errorf("%w: %w", domain.ErrReplayStoreDegraded, err)))
	}
	return result, nil
}
