package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"content_sync/internal/domain"
)

const contentColumns = `id, kind, status, title, excerpt, body, category, categories, tags, region,
	featured_home, featured_region, trending_region, best_of, image_url,
	created_at, updated_at, starts_at, ends_at, metadata`

type contentRow struct {
	domain.RawContent
	Categories pq.StringArray `db:"categories"`
	Tags       pq.StringArray `db:"tags"`
}

func (r contentRow) raw() domain.RawContent {
	raw := r.RawContent
	raw.Categories = []string(r.Categories)
	raw.Tags = []string(r.Tags)
	return raw
}

// ContentStore is the remote system of record for articles and events.
type ContentStore struct {
	db *sqlx.DB
	tx *TransactionManager
}

func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db, tx: NewTransactionManager(db)}
}

// Select returns rows ordered by creation time, newest first.
func (s *ContentStore) Select(ctx context.Context, q domain.Query) ([]domain.RawContent, error) {
	var (
		where []string
		args  []interface{}
	)
	if q.Kind != "" {
		args = append(args, string(q.Kind))
		where = append(where, "kind = $"+strconv.Itoa(len(args)))
	}
	if q.PublishedOnly {
		args = append(args, string(domain.StatusPublished))
		where = append(where, "status = $"+strconv.Itoa(len(args)))
	}

	var sb strings.Builder
	sb.WriteString("SELECT " + contentColumns + " FROM content")
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY created_at DESC NULLS LAST, id")
	if q.Limit > 0 {
		args = append(args, q.Limit)
		sb.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
	}

	var rows []contentRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, sb.String(), args...); err != nil {
		return nil, sourceError("select content", err)
	}

	out := make([]domain.RawContent, len(rows))
	for i, r := range rows {
		out[i] = r.raw()
	}
	return out, nil
}

// SelectByID returns domain.ErrNotFound when no row has the id.
func (s *ContentStore) SelectByID(ctx context.Context, id string) (domain.RawContent, error) {
	return s.selectByID(ctx, GetExecutor(ctx, s.db), id, false)
}

func (s *ContentStore) selectByID(ctx context.Context, exec sqlx.QueryerContext, id string, forUpdate bool) (domain.RawContent, error) {
	query := "SELECT " + contentColumns + " FROM content WHERE id = $1"
	if forUpdate {
		query += " FOR UPDATE"
	}

	var row contentRow
	err := sqlx.GetContext(ctx, exec, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RawContent{}, fmt.Errorf("content %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.RawContent{}, sourceError("select content by id", err)
	}
	return row.raw(), nil
}

// Insert stores a new record. An empty ID gets a fresh UUID.
func (s *ContentStore) Insert(ctx context.Context, c domain.Content) (domain.RawContent, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	if c.Status == "" {
		c.Status = domain.StatusDraft
	}
	if c.Kind == "" {
		c.Kind = domain.KindArticle
	}

	query := `
		INSERT INTO content (
			id, kind, status, title, excerpt, body, category, categories, tags, region,
			featured_home, featured_region, trending_region, best_of, image_url,
			created_at, updated_at, starts_at, ends_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19
		)
		RETURNING ` + contentColumns

	var row contentRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query,
		c.ID,
		string(c.Kind),
		string(c.Status),
		c.Title,
		nullString(c.Excerpt),
		nullString(c.Body),
		nullString(c.Category),
		pq.Array(nonNil(c.Categories)),
		pq.Array(nonNil(c.Tags)),
		nullString(c.Region),
		c.Placement.FeaturedHome,
		c.Placement.FeaturedRegion,
		c.Placement.TrendingRegion,
		c.Placement.BestOf,
		nullString(c.ImageURL),
		c.CreatedAt,
		c.UpdatedAt,
		c.StartsAt,
		c.EndsAt,
	)
	if err != nil {
		return domain.RawContent{}, sourceError("insert content", err)
	}
	return row.raw(), nil
}

// Update applies the non-nil fields of patch. created_at is never touched.
func (s *ContentStore) Update(ctx context.Context, id string, patch domain.ContentPatch) (domain.RawContent, error) {
	var updated domain.RawContent

	err := s.tx.WithTransaction(ctx, func(txCtx context.Context) error {
		exec := GetExecutor(txCtx, s.db)

		if _, err := s.selectByID(txCtx, exec, id, true); err != nil {
			return err
		}

		sets, args := patchAssignments(patch)
		args = append(args, time.Now().UTC())
		sets = append(sets, "updated_at = $"+strconv.Itoa(len(args)))
		args = append(args, id)

		query := "UPDATE content SET " + strings.Join(sets, ", ") +
			" WHERE id = $" + strconv.Itoa(len(args)) +
			" RETURNING " + contentColumns

		var row contentRow
		if err := sqlx.GetContext(txCtx, exec, &row, query, args...); err != nil {
			return sourceError("update content", err)
		}
		updated = row.raw()
		return nil
	})
	if err != nil {
		return domain.RawContent{}, err
	}
	return updated, nil
}

func (s *ContentStore) Delete(ctx context.Context, id string) error {
	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, "DELETE FROM content WHERE id = $1", id)
	if err != nil {
		return sourceError("delete content", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return sourceError("delete content", err)
	}
	if n == 0 {
		return fmt.Errorf("content %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func patchAssignments(p domain.ContentPatch) ([]string, []interface{}) {
	var (
		sets []string
		args []interface{}
	)
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(args)))
	}

	if p.Kind != nil {
		add("kind", string(*p.Kind))
	}
	if p.Status != nil {
		add("status", string(*p.Status))
	}
	if p.Title != nil {
		add("title", *p.Title)
	}
	if p.Excerpt != nil {
		add("excerpt", nullString(*p.Excerpt))
	}
	if p.Body != nil {
		add("body", nullString(*p.Body))
	}
	if p.Category != nil {
		add("category", nullString(*p.Category))
	}
	if p.Categories != nil {
		add("categories", pq.Array(p.Categories))
	}
	if p.Tags != nil {
		add("tags", pq.Array(p.Tags))
	}
	if p.Region != nil {
		add("region", nullString(*p.Region))
	}
	if p.Placement != nil {
		add("featured_home", p.Placement.FeaturedHome)
		add("featured_region", p.Placement.FeaturedRegion)
		add("trending_region", p.Placement.TrendingRegion)
		add("best_of", p.Placement.BestOf)
	}
	if p.ImageURL != nil {
		add("image_url", nullString(*p.ImageURL))
	}
	if p.StartsAt != nil {
		add("starts_at", *p.StartsAt)
	}
	if p.EndsAt != nil {
		add("ends_at", *p.EndsAt)
	}
	return sets, args
}

func sourceError(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, domain.ErrSourceUnavailable, err)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
