package service

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"content_sync/internal/domain"
	"content_sync/internal/projector"
)

const (
	PlacementFeaturedHome   = "featured_home"
	PlacementFeaturedRegion = "featured_region"
	PlacementTrendingRegion = "trending_region"
	PlacementBestOf         = "best_of"
)

// fold builds a fresh Caser per call; Casers are not safe for concurrent use.
func fold(s string) string {
	return cases.Fold().String(strings.TrimSpace(s))
}

// ValidPlacement reports whether name is a known placement flag or empty.
func ValidPlacement(name string) bool {
	switch name {
	case "", PlacementFeaturedHome, PlacementFeaturedRegion, PlacementTrendingRegion, PlacementBestOf:
		return true
	}
	return false
}

// applyFilter narrows records to published entries matching f, orders them
// by effective date and applies the limit. Remote and snapshot reads go
// through the same path.
func applyFilter(records []domain.Content, f domain.ListFilter, placeholder string) []domain.Content {
	out := make([]domain.Content, 0, len(records))
	for _, c := range records {
		if matches(&c, f) {
			c.ImageURL = projector.ImageOrPlaceholder(c.ImageURL, placeholder)
			out = append(out, c)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].EffectiveDate(), out[j].EffectiveDate()
		if !di.Equal(dj) {
			if f.Ascending {
				return di.Before(dj)
			}
			return di.After(dj)
		}
		return out[i].ID < out[j].ID
	})

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out
}

func matches(c *domain.Content, f domain.ListFilter) bool {
	if !c.IsPublished() {
		return false
	}
	if f.Kind != "" && c.Kind != f.Kind {
		return false
	}
	if f.Category != "" && !inCategory(c, fold(f.Category)) {
		return false
	}
	if f.Region != "" && fold(c.Region) != fold(f.Region) {
		return false
	}
	if f.Placement != "" && !hasPlacement(c.Placement, f.Placement) {
		return false
	}
	return true
}

// inCategory matches the primary category, the secondary categories and
// the tags.
func inCategory(c *domain.Content, want string) bool {
	if fold(c.Category) == want {
		return true
	}
	for _, v := range c.Categories {
		if fold(v) == want {
			return true
		}
	}
	for _, v := range c.Tags {
		if fold(v) == want {
			return true
		}
	}
	return false
}

func hasPlacement(p domain.Placement, name string) bool {
	switch name {
	case PlacementFeaturedHome:
		return p.FeaturedHome
	case PlacementFeaturedRegion:
		return p.FeaturedRegion
	case PlacementTrendingRegion:
		return p.TrendingRegion
	case PlacementBestOf:
		return p.BestOf
	}
	return false
}
