package domain

import (
	"time"

	"github.com/jmoiron/sqlx/types"
)

type Kind string

const (
	KindArticle Kind = "article"
	KindEvent   Kind = "event"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusPublished Status = "published"
)

// Placement holds the promotional flags of a record. Flags are independent.
type Placement struct {
	FeaturedHome   bool `json:"featured_home"`
	FeaturedRegion bool `json:"featured_region"`
	TrendingRegion bool `json:"trending_region"`
	BestOf         bool `json:"best_of"`
}

// Content is the canonical record used everywhere outside the postgres
// store and the projector. Snapshot copies carry an empty Body.
type Content struct {
	ID               string     `json:"id"`
	Kind             Kind       `json:"kind"`
	Status           Status     `json:"status"`
	Title            string     `json:"title"`
	Excerpt          string     `json:"excerpt"`
	Body             string     `json:"body,omitempty"`
	Category         string     `json:"category"`
	Categories       []string   `json:"categories"`
	Tags             []string   `json:"tags"`
	Region           string     `json:"region"`
	Placement        Placement  `json:"placement"`
	ImageURL         string     `json:"image_url"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	StartsAt         *time.Time `json:"starts_at,omitempty"`
	EndsAt           *time.Time `json:"ends_at,omitempty"`
	CreatedAtMissing bool       `json:"created_at_missing,omitempty"`
}

func (c *Content) IsPublished() bool {
	return c.Status == StatusPublished
}

// EffectiveDate is the event start for events and the creation time otherwise.
func (c *Content) EffectiveDate() time.Time {
	if c.Kind == KindEvent && c.StartsAt != nil {
		return *c.StartsAt
	}
	return c.CreatedAt
}

// RawContent is a row of the remote content table. Legacy rows keep some
// fields only inside Metadata under inconsistent names.
type RawContent struct {
	ID             *string        `db:"id"`
	Kind           *string        `db:"kind"`
	Status         *string        `db:"status"`
	Title          *string        `db:"title"`
	Excerpt        *string        `db:"excerpt"`
	Body           *string        `db:"body"`
	Category       *string        `db:"category"`
	Categories     []string       `db:"-"`
	Tags           []string       `db:"-"`
	Region         *string        `db:"region"`
	FeaturedHome   *bool          `db:"featured_home"`
	FeaturedRegion *bool          `db:"featured_region"`
	TrendingRegion *bool          `db:"trending_region"`
	BestOf         *bool          `db:"best_of"`
	ImageURL       *string        `db:"image_url"`
	CreatedAt      *time.Time     `db:"created_at"`
	UpdatedAt      *time.Time     `db:"updated_at"`
	StartsAt       *time.Time     `db:"starts_at"`
	EndsAt         *time.Time     `db:"ends_at"`
	Metadata       types.JSONText `db:"metadata"`
}

// ContentPatch is a partial update; nil fields are left unchanged.
type ContentPatch struct {
	Kind       *Kind      `json:"kind,omitempty"`
	Status     *Status    `json:"status,omitempty"`
	Title      *string    `json:"title,omitempty"`
	Excerpt    *string    `json:"excerpt,omitempty"`
	Body       *string    `json:"body,omitempty"`
	Category   *string    `json:"category,omitempty"`
	Categories []string   `json:"categories,omitempty"`
	Tags       []string   `json:"tags,omitempty"`
	Region     *string    `json:"region,omitempty"`
	Placement  *Placement `json:"placement,omitempty"`
	ImageURL   *string    `json:"image_url,omitempty"`
	StartsAt   *time.Time `json:"starts_at,omitempty"`
	EndsAt     *time.Time `json:"ends_at,omitempty"`
}

// Query selects records from the remote store.
type Query struct {
	Kind          Kind
	PublishedOnly bool
	Limit         int
}

// ListFilter narrows public listings. Zero values match everything.
type ListFilter struct {
	Kind      Kind
	Category  string
	Region    string
	Placement string
	Ascending bool
	Limit     int
}

type TaxonomyTerm struct {
	Name  string `db:"name" json:"name"`
	Count int    `db:"count" json:"count"`
}
