package domain

import "context"

// ResourceStore persists one resource per (owner, canonical url).
type ResourceStore interface {
	// FindByOwnerAndURL returns the live, non-forced resource for the key,
	// or (nil, nil) when none exists.
	FindByOwnerAndURL(ctx context.Context, ownerID, canonicalURL string) (*Resource, error)

	// Upsert creates the resource when absent, else applies the patch.
	// Either way the version tag and UpdatedAt change.
	Upsert(ctx context.Context, ownerID, canonicalURL string, patch ResourcePatch) (*Resource, error)

	// Insert always creates a new forced resource.
	Insert(ctx context.Context, ownerID, canonicalURL string, patch ResourcePatch) (*Resource, error)
}

// ReplayStore persists idempotency token -> prior result with an expiry.
type ReplayStore interface {
	// Get returns the stored result, or (nil, nil) when absent or expired.
	Get(ctx context.Context, token string) (*ImportResult, error)

	// Save records the result under token with the store's TTL.
	Save(ctx context.Context, token string, result ImportResult) error

	// CleanupExpired removes expired records and returns how many were removed.
	CleanupExpired(ctx context.Context) (int, error)
}
