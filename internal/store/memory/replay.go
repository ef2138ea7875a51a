package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

type replayEntry struct {
	data      []byte
	expiresAt time.Time
}

// ReplayStore keeps serialized import results keyed by token.
type ReplayStore struct {
	mu      sync.RWMutex
	entries map[string]replayEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewReplayStore creates a replay store. A non-positive ttl uses domain.DefaultReplayTTL.
func NewReplayStore(ttl time.Duration) *ReplayStore {
	if ttl <= 0 {
		ttl = domain.DefaultReplayTTL
	}
	return &ReplayStore{
		entries: make(map[string]replayEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *ReplayStore) WithClock(now func() time.Time) *ReplayStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// Get returns the decoded result, or nil when absent or expired.
func (s *ReplayStore) Get(ctx context.Context, token string) (*domain.ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	entry, ok := s.entries[token]
	now := s.now()
	s.mu.RUnlock()

	if !ok || !now.Before(entry.expiresAt) {
		return nil, nil
	}

	var result domain.ImportResult
	if err := json.Unmarshal(entry.data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal replay record: %w", err)
	}
	return &result, nil
}

// Save records result under token, replacing any previous record.
func (s *ReplayStore) Save(ctx context.Context, token string, result domain.ImportResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal replay record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[token] = replayEntry{data: data, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// CleanupExpired drops expired records.
func (s *ReplayStore) CleanupExpired(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, token)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of records, expired ones included.
func (s *ReplayStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
