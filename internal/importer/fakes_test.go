package importer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/store/memory"
)

var errBoom = errors.New("boom")

// countingStore wraps the memory store and counts calls, optionally failing.
type countingStore struct {
	*memory.ResourceStore

	finds   atomic.Int64
	upserts atomic.Int64
	inserts atomic.Int64

	mu         sync.Mutex
	failUpsert int // fail the n-th upsert (1-based), 0 = never
	failFind   bool
	raceOnce   bool // next create reports a uniqueness race after a rival insert
}

func newCountingStore() *countingStore {
	return &countingStore{ResourceStore: memory.NewResourceStore()}
}

func (s *countingStore) FindByOwnerAndURL(ctx context.Context, ownerID, url string) (*domain.Resource, error) {
	s.finds.Add(1)
	s.mu.Lock()
	fail := s.failFind
	s.mu.Unlock()
	if fail {
		return nil, errBoom
	}
	return s.ResourceStore.FindByOwnerAndURL(ctx, ownerID, url)
}

func (s *countingStore) Upsert(ctx context.Context, ownerID, url string, patch domain.ResourcePatch) (*domain.Resource, error) {
	n := s.upserts.Add(1)

	s.mu.Lock()
	race := s.raceOnce
	s.raceOnce = false
	fail := s.failUpsert != 0 && int(n) == s.failUpsert
	s.mu.Unlock()

	if fail {
		return nil, errBoom
	}
	if race {
		// a concurrent request wins the insert
		if _, err := s.ResourceStore.Upsert(ctx, ownerID, url, domain.ResourcePatch{Title: "rival"}); err != nil {
			return nil, err
		}
		return nil, domain.ErrUniquenessRace
	}
	return s.ResourceStore.Upsert(ctx, ownerID, url, patch)
}

func (s *countingStore) Insert(ctx context.Context, ownerID, url string, patch domain.ResourcePatch) (*domain.Resource, error) {
	s.inserts.Add(1)
	return s.ResourceStore.Insert(ctx, ownerID, url, patch)
}

// flakyReplayStore fails reads and/or writes.
type flakyReplayStore struct {
	*memory.ReplayStore
	failGet  bool
	failSave bool
}

func (s *flakyReplayStore) Get(ctx context.Context, token string) (*domain.ImportResult, error) {
	if s.failGet {
		return nil, errBoom
	}
	return s.ReplayStore.Get(ctx, token)
}

func (s *flakyReplayStore) Save(ctx context.Context, token string, result domain.ImportResult) error {
	if s.failSave {
		return errBoom
	}
	return s.ReplayStore.Save(ctx, token, result)
}

func items(urls ...string) []domain.RawImportItem {
	out := make([]domain.RawImportItem, 0, len(urls))
	for _, u := range urls {
		out = append(out, domain.RawImportItem{URL: u})
	}
	return out
}

func urlsOf(resources []domain.Resource) []string {
	out := make([]string, 0, len(resources))
	for _, r := range resources {
		out = append(out, r.CanonicalURL)
	}
	return out
}
