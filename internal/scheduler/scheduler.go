package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"content_sync/internal/domain"
)

// Syncer runs a full resync unless one is already running.
type Syncer interface {
	TryFullSync(ctx context.Context) (*domain.SyncResult, error)
}

type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger
}

func NewScheduler(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger.With("component", "scheduler"),
	}
}

// Start syncs once, then on every tick until ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler started", "interval", s.interval)

	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one scheduled resync and reports whether it succeeded.
func (s *Scheduler) RunOnce(ctx context.Context) bool {
	result, err := s.syncer.TryFullSync(ctx)
	switch {
	case errors.Is(err, domain.ErrSyncInProgress):
		s.logger.Debug("sync already running, tick skipped")
		return false
	case errors.Is(err, domain.ErrSourceEmpty):
		s.logger.Warn("sync skipped, source returned nothing", "error", err)
		return false
	case err != nil:
		s.logger.Error("sync failed", "error", err)
		return false
	}

	s.logger.Debug("scheduled sync done", "count", result.Count, "duration", result.Duration)
	return true
}
