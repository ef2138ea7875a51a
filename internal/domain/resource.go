package domain

import (
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/publicsuffix"
)

// Resource is the persisted record of one imported URL for one owner.
//
// For a given OwnerID, CanonicalURL is unique among resources that are
// neither deleted nor forced.
type Resource struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// ID is an opaque unique identifier (UUID).
	ID string `json:"id"`

	// OwnerID is the collection owner. Deduplication never crosses owners.
	OwnerID string `json:"ownerId"`

	// CanonicalURL is the dedup key produced by canonical.Canonicalize.
	CanonicalURL string `json:"url"`

	// Domain is the registrable domain (eTLD+1) of CanonicalURL, if any.
	// Example: news.ycombinator.com -> ycombinator.com
	Domain string `json:"domain,omitempty"`

	// ─────────────────────────────
	// Mutable fields
	// ─────────────────────────────

	Title string `json:"title,omitempty"`
	Color string `json:"color,omitempty"`

	// VersionTag changes on every upsert, whether or not fields changed.
	VersionTag string `json:"versionTag"`

	// ─────────────────────────────
	// Metadata
	// ─────────────────────────────

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// ─────────────────────────────
	// Liveness
	// ─────────────────────────────

	// IsDeleted marks a soft-deleted resource. This core never sets it.
	IsDeleted bool `json:"isDeleted,omitempty"`

	// Forced marks a resource created with DedupeForceNew. Forced resources
	// sit outside the (owner, url) uniqueness rule and are never reused.
	Forced bool `json:"forced,omitempty"`
}

// ResourcePatch carries the optional fields an import may set.
// Empty strings mean "not supplied".
type ResourcePatch struct {
	Title string
	Color string
}

// IsEmpty reports whether the patch carries no information.
func (p ResourcePatch) IsEmpty() bool {
	return p.Title == "" && p.Color == ""
}

// RegistrableDomain returns the eTLD+1 of host, or host itself for
// localhost, IPs and other hosts without a public suffix match.
func RegistrableDomain(host string) string {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return ""
	}
	d, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return d
}

// DomainOf returns the registrable domain of an http(s) canonical URL, or ""
// for other schemes and unparseable input.
func DomainOf(canonicalURL string) string {
	u, err := url.Parse(canonicalURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return RegistrableDomain(u.Hostname())
}
