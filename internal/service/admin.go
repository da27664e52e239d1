package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"content_sync/internal/domain"
	"content_sync/internal/projector"
)

type Taxonomy struct {
	Categories []domain.TaxonomyTerm `json:"categories"`
	Tags       []domain.TaxonomyTerm `json:"tags"`
}

// AdminSyncer is the Syncer the admin surface drives. SyncService
// implements it.
type AdminSyncer interface {
	Syncer
	ForceFullSync(ctx context.Context) (*domain.SyncResult, error)
}

// AdminService passes editorial writes through to the remote store and
// keeps the snapshot in step after each one.
type AdminService struct {
	source    ContentSource
	taxonomy  TaxonomyStore
	syncer    AdminSyncer
	signal    Signal
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewAdminService builds the admin facade. taxonomy and publisher may be nil.
func NewAdminService(
	source ContentSource,
	taxonomy TaxonomyStore,
	syncer AdminSyncer,
	signal Signal,
	publisher Publisher,
	logger *slog.Logger,
) *AdminService {
	return &AdminService{
		source:    source,
		taxonomy:  taxonomy,
		syncer:    syncer,
		signal:    signal,
		publisher: publisher,
		logger:    logger.With("component", "admin"),
		now:       time.Now,
	}
}

func (a *AdminService) Create(ctx context.Context, c domain.Content) (domain.Content, error) {
	if strings.TrimSpace(c.Title) == "" {
		return domain.Content{}, fmt.Errorf("create content: title is required: %w", domain.ErrValidationRejected)
	}
	if err := validateKind(c.Kind); err != nil {
		return domain.Content{}, fmt.Errorf("create content: %w", err)
	}

	raw, err := a.source.Insert(ctx, c)
	if err != nil {
		return domain.Content{}, fmt.Errorf("create content: %w", err)
	}

	created, err := projector.Project(raw, a.now())
	if err != nil {
		return domain.Content{}, fmt.Errorf("project created content: %w", err)
	}

	a.afterWrite(ctx, domain.ActionCreated, created.ID, created.Kind)
	return created, nil
}

func (a *AdminService) Update(ctx context.Context, id string, patch domain.ContentPatch) (domain.Content, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return domain.Content{}, fmt.Errorf("update content %s: title must not be empty: %w", id, domain.ErrValidationRejected)
	}
	if patch.Kind != nil {
		if err := validateKind(*patch.Kind); err != nil {
			return domain.Content{}, fmt.Errorf("update content %s: %w", id, err)
		}
	}

	raw, err := a.source.Update(ctx, id, patch)
	if err != nil {
		return domain.Content{}, fmt.Errorf("update content %s: %w", id, err)
	}

	updated, err := projector.Project(raw, a.now())
	if err != nil {
		return domain.Content{}, fmt.Errorf("project updated content: %w", err)
	}

	a.afterWrite(ctx, domain.ActionUpdated, id, updated.Kind)
	return updated, nil
}

func (a *AdminService) Delete(ctx context.Context, id string) error {
	if err := a.source.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete content %s: %w", id, err)
	}

	a.afterWrite(ctx, domain.ActionDeleted, id, "")
	return nil
}

// Get reads one record straight from the remote store, drafts included.
func (a *AdminService) Get(ctx context.Context, id string) (domain.Content, error) {
	raw, err := a.source.SelectByID(ctx, id)
	if err != nil {
		return domain.Content{}, fmt.Errorf("get content %s: %w", id, err)
	}

	c, err := projector.Project(raw, a.now())
	if err != nil {
		return domain.Content{}, fmt.Errorf("project content %s: %w", id, err)
	}
	return c, nil
}

// List reads straight from the remote store, drafts included.
func (a *AdminService) List(ctx context.Context, q domain.Query) ([]domain.Content, error) {
	raws, err := a.source.Select(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list content: %w", err)
	}

	records, dropped := projector.ProjectAll(raws, a.now())
	if dropped > 0 {
		a.logger.Warn("dropped records failing projection", "count", dropped)
	}
	return records, nil
}

func (a *AdminService) Taxonomy(ctx context.Context) (*Taxonomy, error) {
	if a.taxonomy == nil {
		return &Taxonomy{Categories: []domain.TaxonomyTerm{}, Tags: []domain.TaxonomyTerm{}}, nil
	}

	categories, err := a.taxonomy.Categories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	tags, err := a.taxonomy.Tags(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	return &Taxonomy{Categories: categories, Tags: tags}, nil
}

// TriggerFullSync runs a full sync now. force lets an empty remote empty
// the snapshot.
func (a *AdminService) TriggerFullSync(ctx context.Context, force bool) (*domain.SyncResult, error) {
	if force {
		a.logger.Warn("forced full sync requested")
		return a.syncer.ForceFullSync(ctx)
	}
	return a.syncer.FullSync(ctx)
}

func (a *AdminService) TriggerQuickSync(ctx context.Context, id string) error {
	return a.syncer.QuickSync(ctx, id)
}

func (a *AdminService) Invalidate(id string) {
	a.signal.Invalidate(id)
}

// afterWrite brings the snapshot entry for id up to date. A failed
// quick-sync leaves the entry marked stale for the background refresh.
func (a *AdminService) afterWrite(ctx context.Context, action domain.EventAction, id string, kind domain.Kind) {
	if err := a.syncer.QuickSync(ctx, id); err != nil {
		a.logger.Warn("quick sync after write failed", "action", action, "id", id, "error", err)
		a.signal.Invalidate(id)
	}

	if a.publisher == nil {
		return
	}
	event := domain.ContentEvent{
		Action:    action,
		ID:        id,
		Kind:      kind,
		Timestamp: a.now().UTC(),
	}
	if err := a.publisher.Publish(ctx, event); err != nil {
		a.logger.Warn("failed to publish content event", "action", action, "id", id, "error", err)
	}
}

func validateKind(k domain.Kind) error {
	switch k {
	case "", domain.KindArticle, domain.KindEvent:
		return nil
	}
	return fmt.Errorf("unknown kind %q: %w", k, domain.ErrValidationRejected)
}
