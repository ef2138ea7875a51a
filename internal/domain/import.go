package domain

import (
	"fmt"
	"strings"
	"time"
)

// DedupeMode controls how an import item matching an existing resource is handled.
type DedupeMode string

const (
	// DedupeAuto reuses an existing resource and overwrites title/color
	// with differing supplied values.
	DedupeAuto DedupeMode = "auto"
	// DedupeMerge reuses an existing resource but only fills blank fields.
	DedupeMerge DedupeMode = "merge"
	// DedupeForceNew always creates a new resource, skipping the lookup.
	DedupeForceNew DedupeMode = "forceNew"
)

// ParseDedupeMode maps a wire value to a DedupeMode. Empty means auto.
func ParseDedupeMode(s string) (DedupeMode, error) {
	switch DedupeMode(strings.TrimSpace(s)) {
	case "", DedupeAuto:
		return DedupeAuto, nil
	case DedupeMerge:
		return DedupeMerge, nil
	case DedupeForceNew:
		return DedupeForceNew, nil
	default:
		return "", fmt.Errorf("%w: unknown dedupeMode %q", ErrInvalidInput, s)
	}
}

// RawImportItem is one untrusted URL (plus optional fields) supplied per request.
type RawImportItem struct {
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
	Color string `json:"color,omitempty"`
}

// ImportResult is the outcome of one import. Slices are never nil so that a
// replayed (JSON decoded) result is deep-equal to the original.
type ImportResult struct {
	Created []Resource `json:"created"`
	Reused  []Resource `json:"reused"`
	Ignored []Resource `json:"ignored"`
}

// NewImportResult returns a result with empty, non-nil lists.
func NewImportResult() ImportResult {
	return ImportResult{
		Created: make([]Resource, 0),
		Reused:  make([]Resource, 0),
		Ignored: make([]Resource, 0),
	}
}

// ImportRequest is the validated request shape accepted by the import service.
type ImportRequest struct {
	OwnerID        string
	IdempotencyKey string
	Items          []RawImportItem
	DedupeMode     DedupeMode
}

// MaxBatchItems bounds a single import batch.
const MaxBatchItems = 5000

// Validate enforces the caller-side preconditions. A zero DedupeMode is
// normalized to DedupeAuto.
func (r *ImportRequest) Validate() error {
	r.OwnerID = strings.TrimSpace(r.OwnerID)
	if r.OwnerID == "" {
		return fmt.Errorf("%w: ownerId is required", ErrInvalidInput)
	}
	if len(r.Items) == 0 {
		return fmt.Errorf("%w: items must not be empty", ErrInvalidInput)
	}
	if len(r.Items) > MaxBatchItems {
		return fmt.Errorf("%w: too many items (%d > %d)", ErrInvalidInput, len(r.Items), MaxBatchItems)
	}
	for i, it := range r.Items {
		if strings.TrimSpace(it.URL) == "" {
			return fmt.Errorf("%w: items[%d].url is required", ErrInvalidInput, i)
		}
	}
	mode, err := ParseDedupeMode(string(r.DedupeMode))
	if err != nil {
		return err
	}
	r.DedupeMode = mode
	return nil
}

// DefaultReplayTTL is how long a recorded import result can be replayed.
const DefaultReplayTTL = 24 * time.Hour
