package importer

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
	"github.com/MrSnakeDoc/tabstash/internal/store/memory"
)

func fixedResult(id string) domain.ImportResult {
	res := domain.NewImportResult()
	res.Created = append(res.Created, domain.Resource{
		ID:           id,
		OwnerID:      "u1",
		CanonicalURL: "https://example.com/",
		VersionTag:   "v1",
		CreatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		UpdatedAt:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	return res
}

func TestGuardWithoutTokenAlwaysComputes(t *testing.T) {
	replays := memory.NewReplayStore(time.Hour)
	g := NewGuard(replays, logger.NewNop())

	var calls atomic.Int32
	compute := func(context.Context) (domain.ImportResult, error) {
		calls.Add(1)
		return fixedResult("r1"), nil
	}

	for i := 0; i < 2; i++ {
		_, err := g.WithIdempotency(context.Background(), "", compute)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(2), calls.Load())
	assert.Zero(t, replays.Len(), "no token, nothing recorded")
}

func TestGuardReplaysRecordedResult(t *testing.T) {
	g := NewGuard(memory.NewReplayStore(time.Hour), logger.NewNop())

	var calls atomic.Int32
	compute := func(context.Context) (domain.ImportResult, error) {
		if calls.Add(1) > 1 {
			return fixedResult("r2"), nil
		}
		return fixedResult("r1"), nil
	}

	first, err := g.WithIdempotency(context.Background(), "tok", compute)
	require.NoError(t, err)
	second, err := g.WithIdempotency(context.Background(), "tok", compute)
	require.NoError(t, err)

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first, second)
}

func TestGuardExpiredRecordRecomputes(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	replays := memory.NewReplayStore(domain.DefaultReplayTTL).WithClock(func() time.Time { return now })
	g := NewGuard(replays, logger.NewNop())

	var calls atomic.Int32
	compute := func(context.Context) (domain.ImportResult, error) {
		calls.Add(1)
		return fixedResult("r1"), nil
	}

	_, err := g.WithIdempotency(context.Background(), "tok", compute)
	require.NoError(t, err)

	now = now.Add(23 * time.Hour)
	_, err = g.WithIdempotency(context.Background(), "tok", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load(), "still inside the replay window")

	now = now.Add(2 * time.Hour)
	_, err = g.WithIdempotency(context.Background(), "tok", compute)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "expired record behaves as unseen")
}

func TestGuardComputeErrorIsNotRecorded(t *testing.T) {
	replays := memory.NewReplayStore(time.Hour)
	g := NewGuard(replays, logger.NewNop())

	_, err := g.WithIdempotency(context.Background(), "tok", func(context.Context) (domain.ImportResult, error) {
		return domain.ImportResult{}, domain.ErrStoreUnavailable
	})
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Zero(t, replays.Len())
}

func TestGuardDegradedReplayStore(t *testing.T) {
	t.Run("read failure computes", func(t *testing.T) {
		replays := &flakyReplayStore{ReplayStore: memory.NewReplayStore(time.Hour), failGet: true}
		g := NewGuard(replays, logger.NewNop())

		res, err := g.WithIdempotency(context.Background(), "tok", func(context.Context) (domain.ImportResult, error) {
			return fixedResult("r1"), nil
		})
		require.NoError(t, err)
		assert.Equal(t, fixedResult("r1"), res)
	})

	t.Run("write failure still returns result", func(t *testing.T) {
		replays := &flakyReplayStore{ReplayStore: memory.NewReplayStore(time.Hour), failSave: true}
		g := NewGuard(replays, logger.NewNop())

		var calls atomic.Int32
		compute := func(context.Context) (domain.ImportResult, error) {
			calls.Add(1)
			return fixedResult("r1"), nil
		}

		res, err := g.WithIdempotency(context.Background(), "tok", compute)
		require.NoError(t, err)
		assert.Equal(t, fixedResult("r1"), res)

		_, err = g.WithIdempotency(context.Background(), "tok", compute)
		require.NoError(t, err)
		assert.Equal(t, int32(2), calls.Load(), "unsaved token stays unseen")
	})
}

func TestGuardCollapsesConcurrentCalls(t *testing.T) {
	g := NewGuard(memory.NewReplayStore(time.Hour), logger.NewNop())

	var calls atomic.Int32
	release := make(chan struct{})
	compute := func(context.Context) (domain.ImportResult, error) {
		calls.Add(1)
		<-release
		return fixedResult("r1"), nil
	}

	var wg sync.WaitGroup
	results := make([]domain.ImportResult, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.WithIdempotency(context.Background(), "tok", compute)
			assert.NoError(t, err)
			results[i] = res
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, res := range results {
		assert.Equal(t, fixedResult("r1"), res)
	}
}

func TestGuardRecordsAfterCallerLeaves(t *testing.T) {
	replays := memory.NewReplayStore(time.Hour)
	g := NewGuard(replays, logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	compute := func(ctx context.Context) (domain.ImportResult, error) {
		calls.Add(1)
		cancel() // client disconnects once the work is committed
		return fixedResult("r1"), ctx.Err()
	}

	_, _ = g.WithIdempotency(ctx, "tok", compute)

	retry, err := g.WithIdempotency(context.Background(), "tok", compute)
	require.NoError(t, err)
	assert.Equal(t, fixedResult("r1"), retry)
	assert.Equal(t, int32(1), calls.Load(), "retry must replay, not recompute")
	assert.Equal(t, 1, replays.Len())
}

func TestGuardSharedCallSurvivesCallerCancel(t *testing.T) {
	g := NewGuard(memory.NewReplayStore(time.Hour), logger.NewNop())

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	compute := func(ctx context.Context) (domain.ImportResult, error) {
		calls.Add(1)
		close(started)
		<-release
		return fixedResult("r1"), ctx.Err()
	}

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := g.WithIdempotency(ctxA, "tok", compute)
		errA <- err
	}()
	<-started

	type outcome struct {
		res domain.ImportResult
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := g.WithIdempotency(context.Background(), "tok", compute)
		doneB <- outcome{res, err}
	}()

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-doneB
	require.NoError(t, b.err, "a live caller must not inherit another caller's cancellation")
	assert.Equal(t, fixedResult("r1"), b.res)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGuardCallersGetOwnLists(t *testing.T) {
	g := NewGuard(memory.NewReplayStore(time.Hour), logger.NewNop())

	release := make(chan struct{})
	compute := func(context.Context) (domain.ImportResult, error) {
		<-release
		return fixedResult("r1"), nil
	}

	var wg sync.WaitGroup
	results := make([]domain.ImportResult, 2)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := g.WithIdempotency(context.Background(), "tok", compute)
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	results[0].Created[0].Title = "changed"
	assert.Empty(t, results[1].Created[0].Title)

	replayed, err := g.WithIdempotency(context.Background(), "tok", compute)
	require.NoError(t, err)
	assert.Empty(t, replayed.Created[0].Title)
}
