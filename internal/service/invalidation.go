package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"content_sync/internal/config"
	"content_sync/internal/domain"
)

// GlobalScope invalidates the whole snapshot.
const GlobalScope = "*"

const (
	StateFresh = "fresh"
	StateStale = "stale"
)

// Syncer refreshes the snapshot. SyncService implements it.
type Syncer interface {
	FullSync(ctx context.Context) (*domain.SyncResult, error)
	QuickSync(ctx context.Context, id string) error
}

// Invalidator tracks whether the snapshot and response cache are stale and
// schedules the matching refresh. Refreshes run in the background; callers
// never wait for them.
type Invalidator struct {
	syncer     Syncer
	cache      *ResponseCache
	logger     *slog.Logger
	staleAfter time.Duration
	retryAfter time.Duration
	now        func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	closed      bool
	globalStale bool
	staleIDs    map[string]time.Time // id -> time it was marked
	lastFresh   time.Time
	lastFailure time.Time
	fullRunning bool
	fullRerun   bool
}

func NewInvalidator(
	ctx context.Context,
	syncer Syncer,
	cache *ResponseCache,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *Invalidator {
	ctx, cancel := context.WithCancel(ctx)
	return &Invalidator{
		syncer:     syncer,
		cache:      cache,
		logger:     logger.With("component", "invalidator"),
		staleAfter: cfg.StaleAfter,
		retryAfter: cfg.RetryAfter,
		now:        time.Now,
		ctx:        ctx,
		cancel:     cancel,
		staleIDs:   make(map[string]time.Time),
	}
}

// Seed records the time of a sync that happened before this process started.
func (i *Invalidator) Seed(lastSyncedAt time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if lastSyncedAt.After(i.lastFresh) {
		i.lastFresh = lastSyncedAt
	}
}

// Invalidate marks id stale, or everything when id is GlobalScope, purges
// the response cache and starts a refresh. A global refresh is held back
// for retryAfter after a failed one; the stale mark stays until then.
func (i *Invalidator) Invalidate(id string) {
	if id == "" {
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if id == GlobalScope {
		i.globalStale = true
		if i.cache != nil {
			i.cache.Purge()
		}
		i.startFullSyncLocked()
		return
	}

	i.staleIDs[id] = i.now()
	if i.cache != nil {
		i.cache.PurgeID(id)
	}
	if i.closed {
		i.logger.Debug("invalidator closed, refresh skipped", "id", id)
		return
	}
	i.wg.Add(1)
	go i.runQuickSync(id)
}

// CheckExpiry starts a full sync when the snapshot is older than the
// staleness window or still marked stale. It never purges the response
// cache and never queues behind a running sync.
func (i *Invalidator) CheckExpiry() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.globalStale && !i.expiredLocked() {
		return
	}
	if i.closed || i.fullRunning || i.coolingDownLocked() {
		return
	}
	i.logger.Info("snapshot stale, requesting resync")
	i.fullRunning = true
	i.wg.Add(1)
	go i.runFullSync()
}

func (i *Invalidator) startFullSyncLocked() {
	switch {
	case i.closed:
		i.logger.Debug("invalidator closed, refresh skipped", "id", GlobalScope)
	case i.fullRunning:
		i.fullRerun = true
	case i.coolingDownLocked():
		i.logger.Debug("full sync failed recently, refresh deferred",
			"retry_at", i.lastFailure.Add(i.retryAfter))
	default:
		i.fullRunning = true
		i.wg.Add(1)
		go i.runFullSync()
	}
}

func (i *Invalidator) runFullSync() {
	defer i.wg.Done()

	for {
		_, err := i.syncer.FullSync(i.ctx)

		i.mu.Lock()
		if err != nil {
			i.lastFailure = i.now()
			i.fullRunning = false
			i.fullRerun = false
			i.mu.Unlock()
			i.logger.Warn("background full sync failed", "retry_after", i.retryAfter, "error", err)
			return
		}
		i.lastFailure = time.Time{}
		if i.fullRerun && !i.closed {
			i.fullRerun = false
			i.mu.Unlock()
			continue
		}
		i.fullRunning = false
		i.fullRerun = false
		i.mu.Unlock()
		return
	}
}

func (i *Invalidator) runQuickSync(id string) {
	defer i.wg.Done()

	if err := i.syncer.QuickSync(i.ctx, id); err != nil {
		i.logger.Warn("background quick sync failed", "id", id, "error", err)
	}
}

func (i *Invalidator) expiredLocked() bool {
	if i.staleAfter <= 0 {
		return false
	}
	return i.lastFresh.IsZero() || i.now().Sub(i.lastFresh) > i.staleAfter
}

func (i *Invalidator) coolingDownLocked() bool {
	return i.retryAfter > 0 && !i.lastFailure.IsZero() && i.now().Sub(i.lastFailure) < i.retryAfter
}

func (i *Invalidator) Stale() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.expiredLocked() || i.globalStale || len(i.staleIDs) > 0
}

func (i *Invalidator) State() string {
	if i.Stale() {
		return StateStale
	}
	return StateFresh
}

// FullSyncCompleted clears the stale marks the run covers: the global mark
// unless another global invalidation arrived meanwhile, and the per-id
// marks set before the remote was read.
func (i *Invalidator) FullSyncCompleted(result domain.SyncResult) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if !i.fullRerun {
		i.globalStale = false
	}
	for id, marked := range i.staleIDs {
		if marked.Before(result.StartedAt) {
			delete(i.staleIDs, id)
		}
	}
	if result.SyncedAt.After(i.lastFresh) {
		i.lastFresh = result.SyncedAt
	}
	i.lastFailure = time.Time{}
	if i.cache != nil {
		i.cache.Purge()
	}
}

func (i *Invalidator) QuickSyncCompleted(id string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	delete(i.staleIDs, id)
	if i.cache != nil {
		i.cache.PurgeID(id)
	}
}

// Wait blocks until every started refresh has returned.
func (i *Invalidator) Wait() {
	i.wg.Wait()
}

// Close stops new refreshes and waits for running ones.
func (i *Invalidator) Close() {
	i.mu.Lock()
	i.closed = true
	i.mu.Unlock()

	i.cancel()
	i.wg.Wait()
}
