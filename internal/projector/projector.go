// Package projector maps raw remote rows onto the canonical content record.
// It is the only place that knows about legacy field names.
package projector

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"content_sync/internal/domain"
)

const (
	// MaxExcerptLength is the excerpt budget in runes, excluding the ellipsis.
	MaxExcerptLength = 200
	Ellipsis         = "…"
)

// Project normalises one raw row. Only a missing id or title rejects the
// row; every other absent field gets a default.
func Project(raw domain.RawContent, now time.Time) (domain.Content, error) {
	meta := parseMetadata(raw.Metadata)

	id := firstString(raw.ID, meta, "id", "uuid")
	if id == "" {
		return domain.Content{}, fmt.Errorf("missing id: %w", domain.ErrValidationRejected)
	}

	title := firstString(raw.Title, meta, "title", "name")
	if title == "" {
		return domain.Content{}, fmt.Errorf("record %s missing title: %w", id, domain.ErrValidationRejected)
	}

	c := domain.Content{
		ID:         id,
		Kind:       normalizeKind(firstString(raw.Kind, meta, "kind", "type", "content_type")),
		Status:     normalizeStatus(firstString(raw.Status, meta, "status"), meta),
		Title:      title,
		Body:       firstString(raw.Body, meta, "body", "content"),
		Category:   firstString(raw.Category, meta, "category"),
		Categories: firstList(raw.Categories, meta, "categories", "secondary_categories"),
		Tags:       firstList(raw.Tags, meta, "tags"),
		Region:     firstString(raw.Region, meta, "region", "location"),
		Placement: domain.Placement{
			FeaturedHome:   firstBool(raw.FeaturedHome, meta, "featured_home", "featuredHome", "featured"),
			FeaturedRegion: firstBool(raw.FeaturedRegion, meta, "featured_region", "featuredRegion"),
			TrendingRegion: firstBool(raw.TrendingRegion, meta, "trending_region", "trendingRegion", "trending"),
			BestOf:         firstBool(raw.BestOf, meta, "best_of", "bestOf"),
		},
		ImageURL: normalizeImage(firstString(raw.ImageURL, meta, "image_url", "imageUrl", "image")),
	}

	excerpt := firstString(raw.Excerpt, meta, "excerpt", "summary", "description")
	if excerpt == "" {
		excerpt = PlainText(c.Body)
	}
	c.Excerpt = Truncate(excerpt, MaxExcerptLength)

	if created := firstTime(raw.CreatedAt, meta, "created_at", "createdAt"); created != nil {
		c.CreatedAt = *created
	} else {
		c.CreatedAt = now.UTC()
		c.CreatedAtMissing = true
	}
	if updated := firstTime(raw.UpdatedAt, meta, "updated_at", "updatedAt"); updated != nil {
		c.UpdatedAt = *updated
	} else {
		c.UpdatedAt = c.CreatedAt
	}

	if c.Kind == domain.KindEvent {
		c.StartsAt = firstTime(raw.StartsAt, meta, "starts_at", "start_date", "startDate", "event_date")
		c.EndsAt = firstTime(raw.EndsAt, meta, "ends_at", "end_date", "endDate")
	}

	return c, nil
}

// ProjectAll projects a batch and returns the surviving records together
// with the number of rows that were dropped.
func ProjectAll(raws []domain.RawContent, now time.Time) ([]domain.Content, int) {
	out := make([]domain.Content, 0, len(raws))
	dropped := 0
	for _, raw := range raws {
		c, err := Project(raw, now)
		if err != nil {
			dropped++
			continue
		}
		out = append(out, Essential(c))
	}
	return out, dropped
}

// Essential reduces a canonical record to the snapshot shape.
func Essential(c domain.Content) domain.Content {
	c.Body = ""
	c.ImageURL = normalizeImage(c.ImageURL)
	if c.Categories == nil {
		c.Categories = []string{}
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	return c
}

// ImageOrPlaceholder returns url, or placeholder when url is empty or inline data.
func ImageOrPlaceholder(url, placeholder string) string {
	if normalizeImage(url) == "" {
		return placeholder
	}
	return url
}

// PlainText strips markup and collapses whitespace.
func PlainText(body string) string {
	if body == "" {
		return ""
	}
	text := body
	if strings.ContainsAny(body, "<&") {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
		if err == nil {
			text = doc.Text()
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// Truncate shortens s to at most limit runes, cutting at the last word
// boundary and appending an ellipsis. A single word longer than limit is
// cut hard.
func Truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	cut := runes[:limit]
	if runes[limit] != ' ' {
		if i := lastSpace(cut); i > 0 {
			cut = cut[:i]
		}
	}

	out := strings.TrimRightFunc(string(cut), func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	return out + Ellipsis
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

func normalizeImage(url string) string {
	url = strings.TrimSpace(url)
	if strings.HasPrefix(strings.ToLower(url), "data:") {
		return ""
	}
	return url
}

func normalizeKind(v string) domain.Kind {
	switch strings.ToLower(v) {
	case "event", "events":
		return domain.KindEvent
	default:
		return domain.KindArticle
	}
}

func normalizeStatus(v string, meta map[string]any) domain.Status {
	if strings.EqualFold(v, string(domain.StatusPublished)) {
		return domain.StatusPublished
	}
	if v == "" {
		if published, ok := meta["published"].(bool); ok && published {
			return domain.StatusPublished
		}
	}
	return domain.StatusDraft
}

func parseMetadata(data []byte) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil
	}
	return meta
}

func firstString(col *string, meta map[string]any, keys ...string) string {
	if col != nil {
		if v := strings.TrimSpace(*col); v != "" {
			return v
		}
	}
	for _, k := range keys {
		if v, ok := meta[k].(string); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func firstBool(col *bool, meta map[string]any, keys ...string) bool {
	if col != nil {
		return *col
	}
	for _, k := range keys {
		if v, ok := meta[k].(bool); ok {
			return v
		}
	}
	return false
}

func firstList(col []string, meta map[string]any, keys ...string) []string {
	if len(col) > 0 {
		return cleanList(col)
	}
	for _, k := range keys {
		switch v := meta[k].(type) {
		case []any:
			items := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok {
					items = append(items, s)
				}
			}
			return cleanList(items)
		case string:
			return cleanList(strings.Split(v, ","))
		}
	}
	return []string{}
}

func cleanList(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

func firstTime(col *time.Time, meta map[string]any, keys ...string) *time.Time {
	if col != nil && !col.IsZero() {
		t := col.UTC()
		return &t
	}
	for _, k := range keys {
		s, ok := meta[k].(string)
		if !ok || s == "" {
			continue
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}
