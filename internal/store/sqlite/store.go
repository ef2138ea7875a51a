// Package sqlite is the persistent ResourceStore, built on gorm over SQLite.
//
// Uniqueness of (owner_id, canonical_url) among live, non-forced rows is
// enforced by a partial unique index, so a concurrent writer that loses the
// insert sees domain.ErrUniquenessRace instead of creating a duplicate.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
	"github.com/MrSnakeDoc/tabstash/internal/logger"
)

// dsnParams configures go-sqlite3 on every new connection.
const dsnParams = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

const liveURLIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_resources_owner_url_live
	ON resources (owner_id, canonical_url)
	WHERE is_deleted = 0 AND forced = 0`

// Store implements domain.ResourceStore.
type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string, log logger.Logger) (*Store, error) {
	db, err := gorm.Open(gormsqlite.Open(path+dsnParams), &gorm.Config{
		Logger:         NewGormLogger(log.Named("gorm"), DefaultSlowThreshold),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}
	// SQLite allows a single writer at a time.
	sqlDB.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	return &Store{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&resourceRow{}); err != nil {
		return fmt.Errorf("failed to migrate resources: %w", err)
	}
	if err := db.Exec(liveURLIndex).Error; err != nil {
		return fmt.Errorf("failed to create unique index: %w", err)
	}
	return nil
}

// WithClock replaces the time source. Intended for tests.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// FindByOwnerAndURL returns the live non-forced resource, or nil.
func (s *Store) FindByOwnerAndURL(ctx context.Context, ownerID, canonicalURL string) (*domain.Resource, error) {
	row, err := findLive(s.db.WithContext(ctx), ownerID, canonicalURL)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return row.toDomain(), nil
}

// Upsert creates the resource or patches the live one inside a transaction.
func (s *Store) Upsert(ctx context.Context, ownerID, canonicalURL string, patch domain.ResourcePatch) (*domain.Resource, error) {
	var out *domain.Resource

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := findLive(tx, ownerID, canonicalURL)
		if err != nil {
			return err
		}

		if row == nil {
			row = s.newRow(ownerID, canonicalURL, patch, false)
			if err := tx.Create(row).Error; err != nil {
				return createError(err)
			}
			out = row.toDomain()
			return nil
		}

		row.applyPatch(patch)
		row.VersionTag = uuid.NewString()
		row.UpdatedAt = s.now()

		updates := map[string]interface{}{
			"title":       row.Title,
			"color":       row.Color,
			"version_tag": row.VersionTag,
			"updated_at":  row.UpdatedAt,
		}
		if err := tx.Model(&resourceRow{}).Where("id = ?", row.ID).Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update resource %s: %w", row.ID, err)
		}
		out = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Insert always creates a new forced resource.
func (s *Store) Insert(ctx context.Context, ownerID, canonicalURL string, patch domain.ResourcePatch) (*domain.Resource, error) {
	row := s.newRow(ownerID, canonicalURL, patch, true)
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return nil, createError(err)
	}
	return row.toDomain(), nil
}

// Adopt stores res under its own ID and timestamps. When a live resource
// already holds its (owner, url), that one is returned instead.
func (s *Store) Adopt(ctx context.Context, res domain.Resource) (*domain.Resource, error) {
	var out *domain.Resource

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if !res.Forced {
			existing, err := findLive(tx, res.OwnerID, res.CanonicalURL)
			if err != nil {
				return err
			}
			if existing != nil {
				out = existing.toDomain()
				return nil
			}
		}

		row := rowFromDomain(res)
		if err := tx.Create(row).Error; err != nil {
			return createError(err)
		}
		out = row.toDomain()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListByOwner returns the owner's live resources, oldest first.
func (s *Store) ListByOwner(ctx context.Context, ownerID string) ([]domain.Resource, error) {
	var rows []resourceRow
	err := s.db.WithContext(ctx).
		Where("owner_id = ? AND is_deleted = ?", ownerID, false).
		Order("created_at, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list resources: %w", err)
	}

	out := make([]domain.Resource, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) newRow(ownerID, canonicalURL string, patch domain.ResourcePatch, forced bool) *resourceRow {
	now := s.now()
	return &resourceRow{
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
}

func findLive(db *gorm.DB, ownerID, canonicalURL string) (*resourceRow, error) {
	var row resourceRow
	err := db.
		Where("owner_id = ? AND canonical_url = ? AND is_deleted = ? AND forced = ?",
			ownerID, canonicalURL, false, false).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find resource: %w", err)
	}
	return &row, nil
}

// createError maps a unique violation to domain.ErrUniquenessRace.
func createError(err error) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %w", domain.ErrUniquenessRace, err)
	}
	return fmt.Errorf("failed to create resource: %w", err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
