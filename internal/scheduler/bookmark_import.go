// Package scheduler runs the background jobs: importing the configured
// bookmark export and pruning expired replay records.
package scheduler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
	"github.com/MrSnakeDoc/tabstash/internal/sources/homepage"
)

// Importer is the slice of the import service the scheduler needs.
type Importer interface {
	Import(ctx context.Context, req domain.ImportRequest) (domain.ImportResult, error)
}

// BookmarkImporter periodically imports a Homepage export for one owner.
// The idempotency key is derived from the file content, so an unchanged
// file replays instead of touching the store.
type BookmarkImporter struct {
	loader        *homepage.Loader
	importer      Importer
	ownerID       string
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}

	mu         sync.Mutex
	lastDigest string
}

// NewBookmarkImporter creates a new bookmark importer
func NewBookmarkImporter(
	bookmarkFile string,
	ownerID string,
	importer Importer,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *BookmarkImporter {
	return &BookmarkImporter{
		loader:        homepage.NewLoader(bookmarkFile),
		importer:      importer,
		ownerID:       ownerID,
		logger:        log.Named("bookmarks"),
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start imports once, then keeps importing on the interval and on manual
// trigger. The loop runs even when the initial import fails, so a fixed file
// is picked up later; that failure is still returned.
func (bi *BookmarkImporter) Start(ctx context.Context) error {
	_, initErr := bi.Reload(ctx)

	ticker := time.NewTicker(bi.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				bi.reloadAndLog(ctx)
			case <-bi.manualTrigger:
				bi.logger.Info("manual bookmark import triggered")
				bi.reloadAndLog(ctx)
			case <-bi.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	if initErr != nil {
		return fmt.Errorf("initial bookmark import failed: %w", initErr)
	}
	return nil
}

// Stop stops the importer. Safe to call more than once.
func (bi *BookmarkImporter) Stop() {
	bi.stopOnce.Do(func() { close(bi.stopCh) })
}

func (bi *BookmarkImporter) reloadAndLog(ctx context.Context) {
	if _, err := bi.Reload(ctx); err != nil {
		bi.logger.Error("failed to import bookmarks", logger.Error(err))
	}
}

// Reload reads the file and imports it. It returns the import result, or a
// zero result when the file is unchanged since the last successful import.
func (bi *BookmarkImporter) Reload(ctx context.Context) (domain.ImportResult, error) {
	data, err := bi.loader.Read()
	if err != nil {
		return domain.ImportResult{}, err
	}

	digest := Digest(data)
	bi.mu.Lock()
	unchanged := digest == bi.lastDigest
	bi.mu.Unlock()
	if unchanged {
		bi.logger.Debug("bookmark file unchanged, skipping import", logger.String("digest", digest))
		return domain.NewImportResult(), nil
	}

	items, err := homepage.Parse(data)
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("failed to parse %s: %w", bi.loader.Path(), err)
	}

	result, err := bi.importer.Import(ctx, domain.ImportRequest{
		OwnerID:        bi.ownerID,
		IdempotencyKey: "bookmarks:" + digest,
		Items:          items,
		DedupeMode:     domain.DedupeMerge,
	})
	if err != nil {
		return domain.ImportResult{}, fmt.Errorf("failed to import bookmarks: %w", err)
	}

	bi.mu.Lock()
	bi.lastDigest = digest
	bi.mu.Unlock()

	bi.logger.Info("bookmarks imported",
		logger.String("file", bi.loader.Path()),
		logger.Int("entries", len(items)),
		logger.Int("created", len(result.Created)),
		logger.Int("reused", len(result.Reused)))
	return result, nil
}

// Digest returns the hex sha256 of data.
func Digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
