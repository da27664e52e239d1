package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"content_sync/internal/domain"
)

// ContentSource is the remote system of record.
type ContentSource interface {
	Select(ctx context.Context, q domain.Query) ([]domain.RawContent, error)
	SelectByID(ctx context.Context, id string) (domain.RawContent, error)
	Insert(ctx context.Context, c domain.Content) (domain.RawContent, error)
	Update(ctx context.Context, id string, patch domain.ContentPatch) (domain.RawContent, error)
	Delete(ctx context.Context, id string) error
}

// SnapshotStore persists the projected collection as a single unit.
type SnapshotStore interface {
	Read(ctx context.Context) ([]domain.Content, error)
	Write(ctx context.Context, records []domain.Content) error
}

type SyncStateStore interface {
	Get(ctx context.Context, scope string) (*domain.SyncState, error)
	Update(ctx context.Context, state *domain.SyncState) error
}

type TaxonomyStore interface {
	Categories(ctx context.Context) ([]domain.TaxonomyTerm, error)
	Tags(ctx context.Context) ([]domain.TaxonomyTerm, error)
}

type Publisher interface {
	Publish(ctx context.Context, event domain.ContentEvent) error
	Close() error
}
