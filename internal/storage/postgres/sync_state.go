package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"content_sync/internal/domain"
)

type SyncStateStore struct {
	db *sqlx.DB
}

func NewSyncStateStore(db *sqlx.DB) *SyncStateStore {
	return &SyncStateStore{db: db}
}

func (s *SyncStateStore) Get(ctx context.Context, scope string) (*domain.SyncState, error) {
	var state domain.SyncState
	query := `
		SELECT id, scope, last_synced_at, last_count, last_duration_ms, total_syncs
		FROM sync_state
		WHERE scope = $1`

	err := s.db.GetContext(ctx, &state, query, scope)
	if errors.Is(err, sql.ErrNoRows) {
		// Return empty state for a scope that never synced
		return &domain.SyncState{Scope: scope}, nil
	}
	if err != nil {
		return nil, err
	}
	return &state, nil
}

func (s *SyncStateStore) Update(ctx context.Context, state *domain.SyncState) error {
	query := `
		INSERT INTO sync_state (scope, last_synced_at, last_count, last_duration_ms, total_syncs)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (scope) DO UPDATE SET
			last_synced_at = EXCLUDED.last_synced_at,
			last_count = EXCLUDED.last_count,
			last_duration_ms = EXCLUDED.last_duration_ms,
			total_syncs = EXCLUDED.total_syncs`

	_, err := s.db.ExecContext(ctx, query,
		state.Scope,
		state.LastSyncedAt,
		state.LastCount,
		state.LastDuration,
		state.TotalSyncs,
	)
	return err
}
