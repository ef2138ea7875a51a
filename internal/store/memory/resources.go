// Package memory provides in-process implementations of the resource and
// replay stores. They back tests and serve as the fallback tier when the
// persistent store is unreachable.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

type resourceKey struct {
	ownerID      string
	canonicalURL string
}

// ResourceStore keeps resources in maps guarded by a RWMutex.
type ResourceStore struct {
	mu        sync.RWMutex
	resources map[string]*domain.Resource // ID -> Resource
	primary   map[resourceKey]string      // (owner, url) -> ID of the live non-forced resource
	order     []string                    // IDs in creation order
	now       func() time.Time
}

// NewResourceStore creates an empty resource store.
func NewResourceStore() *ResourceStore {
	return &ResourceStore{
		resources: make(map[string]*domain.Resource),
		primary:   make(map[resourceKey]string),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *ResourceStore) WithClock(now func() time.Time) *ResourceStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	return s
}

// FindByOwnerAndURL returns a copy of the live non-forced resource, or nil.
func (s *ResourceStore) FindByOwnerAndURL(ctx context.Context, ownerID, canonicalURL string) (*domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.primary[resourceKey{ownerID, canonicalURL}]
	if !ok {
		return nil, nil
	}
	res := *s.resources[id]
	return &res, nil
}

// Upsert creates the resource or patches the existing one.
func (s *ResourceStore) Upsert(ctx context.Context, ownerID, canonicalURL string, patch domain.ResourcePatch) (*domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := resourceKey{ownerID, canonicalURL}
	if id, ok := s.primary[key]; ok {
		res := s.resources[id]
		applyPatch(res, patch)
		res.VersionTag = uuid.NewString()
		res.UpdatedAt = s.now()
		out := *res
		return &out, nil
	}

	res := s.newResourceLocked(ownerID, canonicalURL, patch, false)
	s.primary[key] = res.ID
	out := *res
	return &out, nil
}

// Insert always creates a new forced resource.
func (s *ResourceStore) Insert(ctx context.Context, ownerID, canonicalURL string, patch domain.ResourcePatch) (*domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res := s.newResourceLocked(ownerID, canonicalURL, patch, true)
	out := *res
	return &out, nil
}

// Adopt stores res under its own identity. When a live resource already
// holds its (owner, url), that one is returned instead.
func (s *ResourceStore) Adopt(ctx context.Context, res domain.Resource) (*domain.Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := resourceKey{res.OwnerID, res.CanonicalURL}
	if !res.Forced {
		if id, ok := s.primary[key]; ok {
			out := *s.resources[id]
			return &out, nil
		}
	}
	if existing, ok := s.resources[res.ID]; ok {
		out := *existing
		return &out, nil
	}

	stored := res
	s.resources[res.ID] = &stored
	s.order = append(s.order, res.ID)
	if !res.Forced {
		s.primary[key] = res.ID
	}
	out := stored
	return &out, nil
}

// Delete removes a resource. Unknown IDs are ignored.
func (s *ResourceStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, ok := s.resources[id]
	if !ok {
		return nil
	}
	delete(s.resources, id)
	key := resourceKey{res.OwnerID, res.CanonicalURL}
	if s.primary[key] == id {
		delete(s.primary, key)
	}
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return nil
}

// Get retrieves a resource by ID.
func (s *ResourceStore) Get(id string) (*domain.Resource, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	res, ok := s.resources[id]
	if !ok {
		return nil, false
	}
	out := *res
	return &out, true
}

// ListByOwner returns the owner's resources in creation order.
func (s *ResourceStore) ListByOwner(ownerID string) []domain.Resource {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Resource, 0)
	for _, id := range s.order {
		if res := s.resources[id]; res.OwnerID == ownerID {
			out = append(out, *res)
		}
	}
	return out
}

// Count returns the number of stored resources, forced ones included.
func (s *ResourceStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.resources)
}

func (s *ResourceStore) newResourceLocked(ownerID, canonicalURL string, patch domain.ResourcePatch, forced bool) *domain.Resource {
	now := s.now()
	res := &domain.Resource{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		CanonicalURL: canonicalURL,
		Domain:       domain.DomainOf(canonicalURL),
		Title:        patch.Title,
		Color:        patch.Color,
		VersionTag:   uuid.NewString(),
		CreatedAt:    now,
		UpdatedAt:    now,
		Forced:       forced,
	}
	s.resources[res.ID] = res
	s.order = append(s.order, res.ID)
	return res
}

func applyPatch(res *domain.Resource, patch domain.ResourcePatch) {
	if patch.Title != "" {
		res.Title = patch.Title
	}
	if patch.Color != "" {
		res.Color = patch.Color
	}
}
