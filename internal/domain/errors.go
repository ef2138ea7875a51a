package domain

import "errors"

var (
	// ErrInvalidInput is a malformed request, rejected before reaching the importer.
	ErrInvalidInput = errors.New("invalid input")

	// ErrStoreUnavailable is a resource store lookup/upsert failure. Retryable by the caller.
	ErrStoreUnavailable = errors.New("resource store unavailable")

	// ErrUniquenessRace is returned by a resource store when another writer
	// created the same (owner, canonical url) first. Recovered by the importer.
	ErrUniquenessRace = errors.New("resource uniqueness race")

	// ErrReplayStoreDegraded is a replay store read/write failure. Never surfaced to callers.
	ErrReplayStoreDegraded = errors.New("replay store degraded")
)
