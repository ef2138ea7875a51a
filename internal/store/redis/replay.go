package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

// ReplayStore records import results in Redis so that retries replay across
// processes. Entries carry a native TTL; the expiry index lets the janitor
// report and drop what Redis already evicted.
type ReplayStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewReplayStore creates a Redis-backed replay store.
// A non-positive ttl uses domain.DefaultReplayTTL.
func NewReplayStore(client redis.UniversalClient, ttl time.Duration) *ReplayStore {
	if ttl <= 0 {
		ttl = domain.DefaultReplayTTL
	}
	return &ReplayStore{
		client: client,
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source used for the expiry index
func (s *ReplayStore) WithClock(now func() time.Time) *ReplayStore {
	s.now = now
	return s
}

// Get retrieves a recorded result, nil on miss
func (s *ReplayStore) Get(ctx context.Context, token string) (*domain.ImportResult, error) {
	data, err := s.client.Get(ctx, ReplayKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get replay record: %w", err)
	}

	var result domain.ImportResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal replay record: %w", err)
	}
	return &result, nil
}

// Save records a result under token for the store TTL
func (s *ReplayStore) Save(ctx context.Context, token string, result domain.ImportResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to marshal replay record: %w", err)
	}

	expiresAt := s.now().Add(s.ttl).Unix()
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, ReplayKey(token), data, s.ttl)
		pipe.ZAdd(ctx, ReplayExpiryKey(), redis.Z{Score: float64(expiresAt), Member: token})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save replay record: %w", err)
	}
	return nil
}

// CleanupExpired drops expired tokens from the index, deleting any record
// Redis has not evicted yet. Returns the number of tokens removed.
func (s *ReplayStore) CleanupExpired(ctx context.Context) (int, error) {
	max := strconv.FormatInt(s.now().Unix(), 10)

	tokens, err := s.client.ZRangeByScore(ctx, ReplayExpiryKey(), &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list expired replay tokens: %w", err)
	}
	if len(tokens) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(tokens))
	members := make([]interface{}, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, ReplayKey(token))
		members = append(members, token)
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, keys...)
	removed := pipe.ZRem(ctx, ReplayExpiryKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("failed to clean up replay records: %w", err)
	}
	return int(removed.Val()), nil
}

// Ping reports whether Redis answers
func (s *ReplayStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
