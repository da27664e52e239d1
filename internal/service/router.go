package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"content_sync/internal/config"
	"content_sync/internal/domain"
	"content_sync/internal/projector"
)

// Signal receives staleness notices. Invalidator implements it.
type Signal interface {
	Invalidate(id string)
}

// Router answers public reads from the remote store and falls back to the
// snapshot when the remote is slow, failing or empty. Reads never fail.
type Router struct {
	source   ContentSource
	snapshot SnapshotStore
	cache    *ResponseCache
	signal   Signal
	logger   *slog.Logger
	config   config.RouterConfig
}

// NewRouter builds a read router. cache and signal may be nil.
func NewRouter(
	source ContentSource,
	snapshot SnapshotStore,
	cache *ResponseCache,
	signal Signal,
	logger *slog.Logger,
	cfg config.RouterConfig,
) *Router {
	return &Router{
		source:   source,
		snapshot: snapshot,
		cache:    cache,
		signal:   signal,
		logger:   logger.With("component", "router"),
		config:   cfg,
	}
}

// ListPublished returns published records matching f. The result is empty,
// never an error, when neither source can answer.
func (r *Router) ListPublished(ctx context.Context, f domain.ListFilter) []domain.Content {
	if f.Limit <= 0 || f.Limit > r.config.ListLimit {
		f.Limit = r.config.ListLimit
	}

	if r.cache != nil {
		if records, ok := r.cache.Get(f); ok {
			return records
		}
	}

	remote, err := r.listRemote(ctx, f)
	switch {
	case err != nil:
		r.logger.Warn("remote list failed, serving snapshot", "error", err)
	case len(remote) == 0:
		r.logger.Debug("remote list empty, serving snapshot")
	default:
		records := applyFilter(remote, f, r.config.ImagePlaceholder)
		if r.cache != nil {
			r.cache.Set(f, records)
		}
		return records
	}

	return applyFilter(r.readSnapshot(ctx), f, r.config.ImagePlaceholder)
}

func (r *Router) listRemote(ctx context.Context, f domain.ListFilter) ([]domain.Content, error) {
	remoteCtx, cancel := context.WithTimeout(ctx, r.config.RemoteTimeout)
	defer cancel()

	raws, err := r.source.Select(remoteCtx, domain.Query{
		Kind:          f.Kind,
		PublishedOnly: true,
		Limit:         r.config.ListLimit,
	})
	if err != nil {
		return nil, err
	}

	records, dropped := projector.ProjectAll(raws, time.Now())
	if dropped > 0 {
		r.logger.Warn("dropped remote records failing projection", "count", dropped)
	}
	return records, nil
}

// GetPublishedByID returns the published record with id. A "not found" from
// the remote is final even when the snapshot still holds the record.
func (r *Router) GetPublishedByID(ctx context.Context, id string) (domain.Content, bool) {
	if r.cache != nil {
		if c, ok := r.cache.GetItem(id); ok {
			return c, true
		}
	}

	remoteCtx, cancel := context.WithTimeout(ctx, r.config.RemoteTimeout)
	defer cancel()

	raw, err := r.source.SelectByID(remoteCtx, id)
	switch {
	case err == nil:
		c, perr := projector.Project(raw, time.Now())
		if perr != nil {
			r.logger.Warn("remote record rejected by projection", "id", id, "error", perr)
			return domain.Content{}, false
		}
		return r.resolveDetail(ctx, id, &c)
	case errors.Is(err, domain.ErrNotFound):
		return r.resolveDetail(ctx, id, nil)
	default:
		r.logger.Warn("remote detail failed, serving snapshot", "id", id, "error", err)
	}

	for _, c := range r.readSnapshot(ctx) {
		if c.ID == id && c.IsPublished() {
			c.ImageURL = projector.ImageOrPlaceholder(c.ImageURL, r.config.ImagePlaceholder)
			return c, true
		}
	}
	return domain.Content{}, false
}

// resolveDetail settles a detail read the remote answered. remote is nil
// when the remote has no such record.
func (r *Router) resolveDetail(ctx context.Context, id string, remote *domain.Content) (domain.Content, bool) {
	var cached *domain.Content
	for _, c := range r.readSnapshot(ctx) {
		if c.ID == id {
			cached = &c
			break
		}
	}

	c, ok, stale := mergePreferRemote(remote, cached)
	if stale && r.signal != nil {
		r.logger.Info("snapshot disagrees with remote, invalidating", "id", id)
		r.signal.Invalidate(id)
	}
	if !ok {
		return domain.Content{}, false
	}

	c.ImageURL = projector.ImageOrPlaceholder(c.ImageURL, r.config.ImagePlaceholder)
	if r.cache != nil {
		r.cache.SetItem(c)
	}
	return c, true
}

// mergePreferRemote picks the remote answer over the snapshot copy. stale
// is set when the snapshot still holds a record the remote no longer
// publishes, or holds an older revision of it.
func mergePreferRemote(remote, snapshot *domain.Content) (c domain.Content, ok bool, stale bool) {
	published := remote != nil && remote.IsPublished()
	if snapshot != nil {
		stale = !published || remote.UpdatedAt.After(snapshot.UpdatedAt)
	}
	if !published {
		return domain.Content{}, false, stale
	}
	return *remote, true, stale
}

func (r *Router) readSnapshot(ctx context.Context) []domain.Content {
	records, err := r.snapshot.Read(ctx)
	switch {
	case errors.Is(err, domain.ErrSnapshotCorrupt):
		r.logger.Error("snapshot is corrupt, requesting resync", "error", err)
		if r.signal != nil {
			r.signal.Invalidate(GlobalScope)
		}
		return nil
	case err != nil:
		r.logger.Warn("failed to read snapshot", "error", err)
		return nil
	}
	return records
}
