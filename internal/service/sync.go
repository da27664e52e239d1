package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"content_sync/internal/config"
	"content_sync/internal/domain"
	"content_sync/internal/projector"
)

const syncScope = "snapshot"

// SyncObserver is told about successful snapshot refreshes.
type SyncObserver interface {
	FullSyncCompleted(result domain.SyncResult)
	QuickSyncCompleted(id string)
}

// SyncService keeps the snapshot in line with the remote store. It is the
// only writer of the snapshot.
type SyncService struct {
	source    ContentSource
	snapshot  SnapshotStore
	syncState SyncStateStore
	publisher Publisher
	logger    *slog.Logger
	config    config.SyncConfig
	now       func() time.Time

	group   singleflight.Group
	running atomic.Int32

	// writeMu serializes snapshot writes and guards inflight.
	writeMu  sync.Mutex
	inflight []*quickUpdates

	mu        sync.RWMutex
	last      *domain.SyncResult
	observers []SyncObserver
}

// NewSyncService builds the orchestrator. syncState and publisher may be nil.
func NewSyncService(
	source ContentSource,
	snapshot SnapshotStore,
	syncState SyncStateStore,
	publisher Publisher,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		source:    source,
		snapshot:  snapshot,
		syncState: syncState,
		publisher: publisher,
		logger:    logger.With("component", "sync"),
		config:    cfg,
		now:       time.Now,
	}
}

func (s *SyncService) AddObserver(o SyncObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// LastResult returns the last successful full sync, or nil.
func (s *SyncService) LastResult() *domain.SyncResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return nil
	}
	res := *s.last
	return &res
}

// LastSyncedAt returns the persisted time of the last full sync.
func (s *SyncService) LastSyncedAt(ctx context.Context) (time.Time, error) {
	if last := s.LastResult(); last != nil {
		return last.SyncedAt, nil
	}
	if s.syncState == nil {
		return time.Time{}, nil
	}
	state, err := s.syncState.Get(ctx, syncScope)
	if err != nil {
		return time.Time{}, fmt.Errorf("get sync state: %w", err)
	}
	return state.LastSyncedAt, nil
}

// quickUpdates collects the quick-sync results that land while a full
// sync is reading the remote. A nil entry means the record was removed.
type quickUpdates struct {
	byID map[string]*domain.Content
}

// FullSync regenerates the snapshot. Concurrent callers share one run.
func (s *SyncService) FullSync(ctx context.Context) (*domain.SyncResult, error) {
	return s.doFullSync(ctx, "full", false)
}

// ForceFullSync is FullSync without the empty-source guard: an empty
// remote empties the snapshot.
func (s *SyncService) ForceFullSync(ctx context.Context) (*domain.SyncResult, error) {
	return s.doFullSync(ctx, "force", true)
}

func (s *SyncService) doFullSync(ctx context.Context, key string, force bool) (*domain.SyncResult, error) {
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.fullSync(ctx, force)
	})
	if shared {
		s.logger.Debug("joined in-flight full sync", "force", force)
	}
	if err != nil {
		return nil, err
	}
	res := *v.(*domain.SyncResult)
	return &res, nil
}

// TryFullSync is FullSync that refuses to start while another run is active.
func (s *SyncService) TryFullSync(ctx context.Context) (*domain.SyncResult, error) {
	if s.running.Load() > 0 {
		return nil, domain.ErrSyncInProgress
	}
	return s.FullSync(ctx)
}

func (s *SyncService) fullSync(ctx context.Context, force bool) (*domain.SyncResult, error) {
	s.running.Add(1)
	defer s.running.Add(-1)

	updates := s.trackQuickUpdates()
	defer s.untrackQuickUpdates(updates)

	// Callers sharing this run must not be cut off by the first caller leaving.
	syncCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.config.Timeout)
	defer cancel()

	start := s.now()
	s.logger.Info("starting full sync",
		"max_articles", s.config.MaxArticles,
		"max_events", s.config.MaxEvents,
		"force", force,
	)

	articles, err := s.source.Select(syncCtx, domain.Query{
		Kind:          domain.KindArticle,
		PublishedOnly: true,
		Limit:         s.config.MaxArticles,
	})
	if err != nil {
		return nil, fmt.Errorf("select articles: %w", unavailable(err))
	}

	events, err := s.source.Select(syncCtx, domain.Query{
		Kind:          domain.KindEvent,
		PublishedOnly: true,
		Limit:         s.config.MaxEvents,
	})
	if err != nil {
		return nil, fmt.Errorf("select events: %w", unavailable(err))
	}

	projectedArticles, droppedArticles := projector.ProjectAll(articles, start)
	projectedEvents, droppedEvents := projector.ProjectAll(events, start)

	records := make([]domain.Content, 0, len(projectedArticles)+len(projectedEvents))
	records = append(records, published(projectedArticles)...)
	records = append(records, published(projectedEvents)...)
	s.warnMissingDates(records)

	dropped := droppedArticles + droppedEvents
	if dropped > 0 {
		s.logger.Warn("dropped records failing projection", "count", dropped)
	}

	s.writeMu.Lock()
	records = updates.apply(records)
	err = s.replaceSnapshot(syncCtx, records, force)
	s.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	result := &domain.SyncResult{
		Articles:  len(projectedArticles),
		Events:    len(projectedEvents),
		Dropped:   dropped,
		Count:     len(records),
		StartedAt: start,
		SyncedAt:  s.now(),
	}
	result.Duration = result.SyncedAt.Sub(start)

	s.mu.Lock()
	s.last = result
	observers := append([]SyncObserver(nil), s.observers...)
	s.mu.Unlock()

	s.updateSyncState(syncCtx, result)
	s.publish(syncCtx, domain.ContentEvent{
		Action:    domain.ActionResynced,
		Count:     result.Count,
		Timestamp: result.SyncedAt.UTC(),
	})

	for _, o := range observers {
		o.FullSyncCompleted(*result)
	}

	s.logger.Info("full sync completed",
		"articles", result.Articles,
		"events", result.Events,
		"dropped", result.Dropped,
		"duration", result.Duration,
	)

	return result, nil
}

func (s *SyncService) trackQuickUpdates() *quickUpdates {
	u := &quickUpdates{byID: make(map[string]*domain.Content)}
	s.writeMu.Lock()
	s.inflight = append(s.inflight, u)
	s.writeMu.Unlock()
	return u
}

func (s *SyncService) untrackQuickUpdates(u *quickUpdates) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	for i, cur := range s.inflight {
		if cur == u {
			s.inflight = append(s.inflight[:i], s.inflight[i+1:]...)
			return
		}
	}
}

// apply lays the collected quick-sync results over records read from the
// remote before they happened.
func (u *quickUpdates) apply(records []domain.Content) []domain.Content {
	for id, c := range u.byID {
		records, _ = replaceOrPrepend(records, id, c)
	}
	return records
}

// replaceSnapshot writes records unless the remote came back empty while
// the current snapshot still holds content. force skips that check.
func (s *SyncService) replaceSnapshot(ctx context.Context, records []domain.Content, force bool) error {
	if len(records) == 0 && !force {
		existing, err := s.snapshot.Read(ctx)
		if err == nil && len(existing) > 0 {
			s.logger.Warn("remote returned no content, keeping snapshot", "snapshot_records", len(existing))
			return fmt.Errorf("keep %d snapshot records: %w", len(existing), domain.ErrSourceEmpty)
		}
	}

	if err := s.snapshot.Write(ctx, records); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// QuickSync refreshes the snapshot entry of one record. Every other entry
// is left as it is.
func (s *SyncService) QuickSync(ctx context.Context, id string) error {
	syncCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	var replacement *domain.Content

	raw, err := s.source.SelectByID(syncCtx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.logger.Debug("record gone from source, removing from snapshot", "id", id)
	case err != nil:
		return fmt.Errorf("quick sync %s: %w", id, unavailable(err))
	default:
		c, perr := projector.Project(raw, s.now())
		if perr != nil {
			s.logger.Warn("record rejected by projection, removing from snapshot", "id", id, "error", perr)
		} else if c.IsPublished() {
			essential := projector.Essential(c)
			replacement = &essential
			s.warnMissingDates([]domain.Content{essential})
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	for _, u := range s.inflight {
		u.byID[id] = replacement
	}

	current, err := s.snapshot.Read(syncCtx)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	updated, changed := replaceOrPrepend(current, id, replacement)
	if changed {
		if err := s.snapshot.Write(syncCtx, updated); err != nil {
			return fmt.Errorf("write snapshot: %w", err)
		}
	}

	s.mu.RLock()
	observers := append([]SyncObserver(nil), s.observers...)
	s.mu.RUnlock()
	for _, o := range observers {
		o.QuickSyncCompleted(id)
	}

	s.logger.Info("quick sync completed", "id", id, "changed", changed, "removed", replacement == nil)
	return nil
}

// replaceOrPrepend swaps the entry for id with c in place, prepends c when
// there is no entry, or removes the entry when c is nil.
func replaceOrPrepend(records []domain.Content, id string, c *domain.Content) ([]domain.Content, bool) {
	idx := -1
	for i := range records {
		if records[i].ID == id {
			idx = i
			break
		}
	}

	switch {
	case c == nil && idx < 0:
		return records, false
	case c == nil:
		out := make([]domain.Content, 0, len(records)-1)
		out = append(out, records[:idx]...)
		return append(out, records[idx+1:]...), true
	case idx < 0:
		out := make([]domain.Content, 0, len(records)+1)
		out = append(out, *c)
		return append(out, records...), true
	default:
		out := make([]domain.Content, len(records))
		copy(out, records)
		out[idx] = *c
		return out, true
	}
}

func (s *SyncService) updateSyncState(ctx context.Context, result *domain.SyncResult) {
	if s.syncState == nil {
		return
	}

	state, err := s.syncState.Get(ctx, syncScope)
	if err != nil {
		s.logger.Warn("failed to load sync state", "error", err)
		return
	}

	state.Scope = syncScope
	state.LastSyncedAt = result.SyncedAt
	state.LastCount = int64(result.Count)
	state.LastDuration = result.Duration.Milliseconds()
	state.TotalSyncs++

	if err := s.syncState.Update(ctx, state); err != nil {
		s.logger.Warn("failed to store sync state", "error", err)
	}
}

func (s *SyncService) publish(ctx context.Context, event domain.ContentEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish content event", "action", event.Action, "id", event.ID, "error", err)
	}
}

func (s *SyncService) warnMissingDates(records []domain.Content) {
	for _, c := range records {
		if c.CreatedAtMissing {
			s.logger.Warn("record has no creation time, using sync time", "id", c.ID)
		}
	}
}

func published(records []domain.Content) []domain.Content {
	out := records[:0:0]
	for _, c := range records {
		if c.IsPublished() {
			out = append(out, c)
		}
	}
	return out
}

// unavailable tags transport failures so callers can match them with errors.Is.
func unavailable(err error) error {
	if errors.Is(err, domain.ErrSourceUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", domain.ErrSourceUnavailable, err)
}
