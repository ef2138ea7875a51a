package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/unicode/norm"

	"github.com/MrSnakeDoc/tabstash/internal/canonical"
	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

const (
	// batches smaller than this are canonicalized inline
	parallelThreshold = 64
	canonChunkSize    = 256
	defaultWorkers    = 4
)

// Reconciler classifies a batch of raw URLs into created and reused resources.
// It holds no state between calls.
type Reconciler struct {
	store   domain.ResourceStore
	logger  logger.Logger
	workers int
}

// NewReconciler creates a reconciler backed by store.
func NewReconciler(store domain.ResourceStore, log logger.Logger) *Reconciler {
	return &Reconciler{
		store:   store,
		logger:  log,
		workers: defaultWorkers,
	}
}

// Reconcile imports items for ownerID in input order.
//
// Items whose canonical URL already appeared earlier in the batch are dropped
// and appear in no output list. Each store call commits on its own, so when a
// later item fails the earlier ones stay recorded and the error is returned
// without a partial result.
func (r *Reconciler) Reconcile(ctx context.Context, ownerID string, items []domain.RawImportItem, mode domain.DedupeMode) (domain.ImportResult, error) {
	keys, err := r.canonicalizeAll(ctx, items)
	if err != nil {
		return domain.ImportResult{}, err
	}

	result := domain.NewImportResult()
	seen := make(map[string]struct{}, len(items))
	collapsed := 0

	for i, item := range items {
		key := keys[i]
		if _, dup := seen[key]; dup {
			collapsed++
			continue
		}
		seen[key] = struct{}{}

		patch := domain.ResourcePatch{
			Title: normalizeTitle(item.Title),
			Color: strings.TrimSpace(item.Color),
		}

		if mode == domain.DedupeForceNew {
			res, err := r.store.Insert(ctx, ownerID, key, patch)
			if err != nil {
				return domain.ImportResult{}, storeError("insert resource", err)
			}
			result.Created = append(result.Created, *res)
			continue
		}

		res, created, err := r.resolve(ctx, ownerID, key, patch, mode)
		if err != nil {
			return domain.ImportResult{}, err
		}
		if created {
			result.Created = append(result.Created, *res)
		} else {
			result.Reused = append(result.Reused, *res)
		}
	}

	r.logger.Debug("batch reconciled",
		logger.String("owner_id", ownerID),
		logger.String("mode", string(mode)),
		logger.Int("items", len(items)),
		logger.Int("created", len(result.Created)),
		logger.Int("reused", len(result.Reused)),
		logger.Int("collapsed", collapsed))

	return result, nil
}

// resolve reuses the stored resource for key or creates it.
func (r *Reconciler) resolve(ctx context.Context, ownerID, key string, patch domain.ResourcePatch, mode domain.DedupeMode) (*domain.Resource, bool, error) {
	existing, err := r.store.FindByOwnerAndURL(ctx, ownerID, key)
	if err != nil {
		return nil, false, storeError("find resource", err)
	}
	if existing != nil {
		res, err := r.reuse(ctx, existing, patch, mode)
		return res, false, err
	}

	res, err := r.store.Upsert(ctx, ownerID, key, patch)
	if err == nil {
		return res, true, nil
	}
	if !errors.Is(err, domain.ErrUniquenessRace) {
		return nil, false, storeError("create resource", err)
	}

	// Another writer created it between lookup and insert.
	r.logger.Debug("uniqueness race on create, reusing",
		logger.String("owner_id", ownerID),
		logger.String("url", key))

	existing, err = r.store.FindByOwnerAndURL(ctx, ownerID, key)
	if err != nil {
		return nil, false, storeError("find resource after race", err)
	}
	if existing == nil {
		return nil, false, storeError("find resource after race", fmt.Errorf("resource %q vanished", key))
	}
	res, err = r.reuse(ctx, existing, patch, mode)
	return res, false, err
}

// reuse returns existing, updated through the store when the item carries
// new information.
func (r *Reconciler) reuse(ctx context.Context, existing *domain.Resource, patch domain.ResourcePatch, mode domain.DedupeMode) (*domain.Resource, error) {
	update := reusePatch(existing, patch, mode)
	if update.IsEmpty() {
		return existing, nil
	}

	res, err := r.store.Upsert(ctx, existing.OwnerID, existing.CanonicalURL, update)
	if err != nil {
		return nil, storeError("update resource", err)
	}
	return res, nil
}

// reusePatch keeps only the fields that should be written to an existing
// resource. Merge mode never overwrites a non-blank stored value.
func reusePatch(existing *domain.Resource, patch domain.ResourcePatch, mode domain.DedupeMode) domain.ResourcePatch {
	var out domain.ResourcePatch
	if mode == domain.DedupeMerge {
		if existing.Title == "" {
			out.Title = patch.Title
		}
		if existing.Color == "" {
			out.Color = patch.Color
		}
		return out
	}

	if patch.Title != "" && patch.Title != existing.Title {
		out.Title = patch.Title
	}
	out.Color = patch.Color
	return out
}

// canonicalizeAll computes canonical URLs in input order. Canonicalize is
// pure, so large batches are split across workers.
func (r *Reconciler) canonicalizeAll(ctx context.Context, items []domain.RawImportItem) ([]string, error) {
	keys := make([]string, len(items))
	if len(items) < parallelThreshold {
		for i, it := range items {
			keys[i] = canonical.Canonicalize(it.URL)
		}
		return keys, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)
	for lo := 0; lo < len(items); lo += canonChunkSize {
		hi := min(lo+canonChunkSize, len(items))
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				keys[i] = canonical.Canonicalize(items[i].URL)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return keys, nil
}

func normalizeTitle(title string) string {
	return strings.TrimSpace(norm.NFC.String(title))
}

func storeError(op string, err error) error {
	if errors.Is(err, domain.ErrStoreUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrStoreUnavailable, op, err)
}
