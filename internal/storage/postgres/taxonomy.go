package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"

	"content_sync/internal/domain"
)

// TaxonomyStore lists the categories and tags in use.
type TaxonomyStore struct {
	db *sqlx.DB
}

func NewTaxonomyStore(db *sqlx.DB) *TaxonomyStore {
	return &TaxonomyStore{db: db}
}

func (s *TaxonomyStore) Categories(ctx context.Context) ([]domain.TaxonomyTerm, error) {
	query := `
		SELECT name, COUNT(DISTINCT id) AS count
		FROM (
			SELECT id, category AS name FROM content WHERE category IS NOT NULL AND category <> ''
			UNION ALL
			SELECT id, unnest(categories) AS name FROM content
		) terms
		GROUP BY name
		ORDER BY count DESC, name`

	var terms []domain.TaxonomyTerm
	if err := s.db.SelectContext(ctx, &terms, query); err != nil {
		return nil, sourceError("select categories", err)
	}
	return terms, nil
}

func (s *TaxonomyStore) Tags(ctx context.Context) ([]domain.TaxonomyTerm, error) {
	query := `
		SELECT t.name, COUNT(*) AS count
		FROM content c, unnest(c.tags) AS t(name)
		GROUP BY t.name
		ORDER BY count DESC, t.name`

	var terms []domain.TaxonomyTerm
	if err := s.db.SelectContext(ctx, &terms, query); err != nil {
		return nil, sourceError("select tags", err)
	}
	return terms, nil
}
