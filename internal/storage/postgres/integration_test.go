//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"content_sync/internal/domain"
	"content_sync/internal/testutil"
	"content_sync/migrations"
)

type PostgresIntegrationSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	db        *sqlx.DB
}

func (s *PostgresIntegrationSuite) SetupSuite() {
	s.ctx = context.Background()

	container, err := postgres.Run(s.ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("test_db"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	connStr, err := container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := Open(s.ctx, connStr, PoolConfig{MaxOpenConns: 5})
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(migrations.Up(s.ctx, db.DB))
}

func (s *PostgresIntegrationSuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *PostgresIntegrationSuite) SetupTest() {
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM content")
	_, _ = s.db.ExecContext(s.ctx, "DELETE FROM sync_state")
}

func TestPostgresIntegrationSuite(t *testing.T) {
	suite.Run(t, new(PostgresIntegrationSuite))
}

func (s *PostgresIntegrationSuite) insert(id string, kind domain.Kind, status domain.Status, created time.Time) {
	store := NewContentStore(s.db)
	_, err := store.Insert(s.ctx, domain.Content{
		ID:        id,
		Kind:      kind,
		Status:    status,
		Title:     "Title " + id,
		CreatedAt: created,
	})
	s.Require().NoError(err)
}

func (s *PostgresIntegrationSuite) TestContentStore_InsertAssignsIDAndTimestamps() {
	store := NewContentStore(s.db)

	raw, err := store.Insert(s.ctx, domain.Content{
		Title:      "Fresh",
		Categories: []string{"food", "drink"},
		Tags:       []string{"new"},
		Placement:  domain.Placement{BestOf: true},
	})
	s.NoError(err)
	s.Require().NotNil(raw.ID)
	s.NotEmpty(*raw.ID)
	s.NotNil(raw.CreatedAt)
	s.Equal([]string{"food", "drink"}, raw.Categories)
	s.Equal("draft", *raw.Status)
	s.True(*raw.BestOf)
}

func (s *PostgresIntegrationSuite) TestContentStore_SelectOrderAndFilters() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.insert("a1", domain.KindArticle, domain.StatusPublished, base)
	s.insert("a2", domain.KindArticle, domain.StatusDraft, base.Add(time.Hour))
	s.insert("a3", domain.KindArticle, domain.StatusPublished, base.Add(2*time.Hour))
	s.insert("e1", domain.KindEvent, domain.StatusPublished, base.Add(3*time.Hour))

	store := NewContentStore(s.db)

	rows, err := store.Select(s.ctx, domain.Query{Kind: domain.KindArticle, Limit: 2})
	s.NoError(err)
	s.Require().Len(rows, 2)
	s.Equal("a3", *rows[0].ID)
	s.Equal("a2", *rows[1].ID)

	rows, err = store.Select(s.ctx, domain.Query{Kind: domain.KindArticle, PublishedOnly: true})
	s.NoError(err)
	s.Len(rows, 2)

	rows, err = store.Select(s.ctx, domain.Query{})
	s.NoError(err)
	s.Len(rows, 4)
	s.Equal("e1", *rows[0].ID)
}

func (s *PostgresIntegrationSuite) TestContentStore_SelectByIDNotFound() {
	_, err := NewContentStore(s.db).SelectByID(s.ctx, "missing")
	s.Error(err)
	s.True(errors.Is(err, domain.ErrNotFound))
	s.False(errors.Is(err, domain.ErrSourceUnavailable))
}

func (s *PostgresIntegrationSuite) TestContentStore_LegacyMetadataRow() {
	_, err := s.db.ExecContext(s.ctx, `
		INSERT INTO content (id, kind, status, title, metadata)
		VALUES ($1, 'article', 'published', 'Legacy', $2)
	`, "legacy-1", `{"imageUrl":"https://cdn.example.com/l.jpg","featured":true}`)
	s.Require().NoError(err)

	raw, err := NewContentStore(s.db).SelectByID(s.ctx, "legacy-1")
	s.NoError(err)
	s.Nil(raw.CreatedAt)
	s.Nil(raw.FeaturedHome)
	s.Contains(string(raw.Metadata), "imageUrl")
}

func (s *PostgresIntegrationSuite) TestContentStore_UpdatePatch() {
	created := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	s.insert("u1", domain.KindArticle, domain.StatusDraft, created)
	store := NewContentStore(s.db)

	published := domain.StatusPublished
	raw, err := store.Update(s.ctx, "u1", domain.ContentPatch{
		Status: &published,
		Title:  testutil.Ptr("Renamed"),
		Tags:   []string{"x", "y"},
	})
	s.NoError(err)
	s.Equal("Renamed", *raw.Title)
	s.Equal("published", *raw.Status)
	s.Equal([]string{"x", "y"}, raw.Tags)
	s.True(created.Equal(*raw.CreatedAt))
	s.True(raw.UpdatedAt.After(created))
}

func (s *PostgresIntegrationSuite) TestContentStore_UpdateMissing() {
	_, err := NewContentStore(s.db).Update(s.ctx, "nope", domain.ContentPatch{Title: testutil.Ptr("x")})
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *PostgresIntegrationSuite) TestContentStore_Delete() {
	s.insert("d1", domain.KindArticle, domain.StatusPublished, time.Now())
	store := NewContentStore(s.db)

	s.NoError(store.Delete(s.ctx, "d1"))
	err := store.Delete(s.ctx, "d1")
	s.True(errors.Is(err, domain.ErrNotFound))
}

func (s *PostgresIntegrationSuite) TestTaxonomyStore() {
	store := NewContentStore(s.db)
	_, err := store.Insert(s.ctx, domain.Content{ID: "t1", Title: "One", Category: "food", Categories: []string{"drink"}, Tags: []string{"cheap", "late"}})
	s.Require().NoError(err)
	_, err = store.Insert(s.ctx, domain.Content{ID: "t2", Title: "Two", Category: "food", Tags: []string{"cheap"}})
	s.Require().NoError(err)

	taxonomy := NewTaxonomyStore(s.db)

	categories, err := taxonomy.Categories(s.ctx)
	s.NoError(err)
	s.Equal([]domain.TaxonomyTerm{{Name: "food", Count: 2}, {Name: "drink", Count: 1}}, categories)

	tags, err := taxonomy.Tags(s.ctx)
	s.NoError(err)
	s.Equal([]domain.TaxonomyTerm{{Name: "cheap", Count: 2}, {Name: "late", Count: 1}}, tags)
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_GetNew() {
	state, err := NewSyncStateStore(s.db).Get(s.ctx, "snapshot")
	s.NoError(err)
	s.Equal("snapshot", state.Scope)
	s.True(state.LastSyncedAt.IsZero())
}

func (s *PostgresIntegrationSuite) TestSyncStateStore_UpdateAndGet() {
	store := NewSyncStateStore(s.db)
	now := time.Now().Truncate(time.Microsecond)

	s.NoError(store.Update(s.ctx, &domain.SyncState{Scope: "snapshot", LastSyncedAt: now, LastCount: 40, LastDuration: 120, TotalSyncs: 1}))
	s.NoError(store.Update(s.ctx, &domain.SyncState{Scope: "snapshot", LastSyncedAt: now, LastCount: 42, LastDuration: 90, TotalSyncs: 2}))

	state, err := store.Get(s.ctx, "snapshot")
	s.NoError(err)
	s.Equal(int64(42), state.LastCount)
	s.Equal(int64(2), state.TotalSyncs)
	s.WithinDuration(now, state.LastSyncedAt, time.Second)
}

func (s *PostgresIntegrationSuite) TestTransaction_Rollback() {
	tm := NewTransactionManager(s.db)

	err := tm.WithTransaction(s.ctx, func(ctx context.Context) error {
		_, err := GetExecutor(ctx, s.db).ExecContext(ctx,
			`INSERT INTO content (id, title) VALUES ($1, $2)`, "rollback-1", "Should Rollback")
		if err != nil {
			return err
		}
		return context.Canceled
	})
	s.Error(err)

	var count int
	s.NoError(s.db.GetContext(s.ctx, &count, "SELECT COUNT(*) FROM content WHERE id = $1", "rollback-1"))
	s.Equal(0, count)
}
