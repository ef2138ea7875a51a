package sqlite

import (
	"time"

	"github.com/MrSnakeDoc/tabstash/internal/domain"
)

// resourceRow is the persisted shape of domain.Resource.
type resourceRow struct {
	ID           string `gorm:"primaryKey"`
	OwnerID      string `gorm:"not null;index"`
	CanonicalURL string `gorm:"not null"`
	Domain       string
	Title        string
	Color        string
	VersionTag   string    `gorm:"not null"`
	CreatedAt    time.Time `gorm:"not null"`
	UpdatedAt    time.Time `gorm:"not null"`
	IsDeleted    bool      `gorm:"not null;default:false"`
	Forced       bool      `gorm:"not null;default:false"`
}

func (resourceRow) TableName() string {
	return "resources"
}

func (r *resourceRow) applyPatch(patch domain.ResourcePatch) {
	if patch.Title != "" {
		r.Title = patch.Title
	}
	if patch.Color != "" {
		r.Color = patch.Color
	}
}

func (r *resourceRow) toDomain() *domain.Resource {
	return &domain.Resource{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		CanonicalURL: r.CanonicalURL,
		Domain:       r.Domain,
		Title:        r.Title,
		Color:        r.Color,
		VersionTag:   r.VersionTag,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		IsDeleted:    r.IsDeleted,
		Forced:       r.Forced,
	}
}

func rowFromDomain(res domain.Resource) *resourceRow {
	return &resourceRow{
		ID:           res.ID,
		OwnerID:      res.OwnerID,
		CanonicalURL: res.CanonicalURL,
		Domain:       res.Domain,
		Title:        res.Title,
		Color:        res.Color,
		VersionTag:   res.VersionTag,
		CreatedAt:    res.CreatedAt.UTC(),
		UpdatedAt:    res.UpdatedAt.UTC(),
		IsDeleted:    res.IsDeleted,
		Forced:       res.Forced,
	}
}
