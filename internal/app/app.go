// Package app wires the stores and services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"content_sync/internal/config"
	"content_sync/internal/publisher"
	"content_sync/internal/service"
	"content_sync/internal/snapshot"
	"content_sync/internal/storage/postgres"
	"content_sync/migrations"
)

type App struct {
	DB          *sqlx.DB
	Content     *postgres.ContentStore
	Snapshot    service.SnapshotStore
	Publisher   service.Publisher
	Sync        *service.SyncService
	Cache       *service.ResponseCache
	Invalidator *service.Invalidator
	Router      *service.Router
	Admin       *service.AdminService

	closers []func() error
	logger  *slog.Logger
}

// Migrate applies the embedded schema migrations.
func (a *App) Migrate(ctx context.Context) error {
	if err := migrations.Up(ctx, a.DB.DB); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	a.logger.Info("migrations applied")
	return nil
}

// New connects to every backing service named in cfg and builds the
// service graph. The returned App must be closed.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{logger: logger}

	db, err := postgres.Open(ctx, cfg.Database.DSN(), postgres.PoolConfig{
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxLifetime:  cfg.Database.MaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	a.DB = db
	a.closers = append(a.closers, db.Close)
	logger.Info("connected to database", "host", cfg.Database.Host, "dbname", cfg.Database.DBName)

	if err := a.openSnapshot(ctx, cfg.Snapshot); err != nil {
		a.Close()
		return nil, err
	}

	a.openPublisher(cfg.RabbitMQ)

	a.Content = postgres.NewContentStore(db)
	syncState := postgres.NewSyncStateStore(db)
	taxonomy := postgres.NewTaxonomyStore(db)

	a.Sync = service.NewSyncService(a.Content, a.Snapshot, syncState, a.Publisher, logger, cfg.Sync)
	a.Cache = service.NewResponseCache(cfg.Router.CacheTTL)
	a.Invalidator = service.NewInvalidator(ctx, a.Sync, a.Cache, logger, cfg.Sync)
	a.Sync.AddObserver(a.Invalidator)

	if last, err := a.Sync.LastSyncedAt(ctx); err != nil {
		logger.Warn("could not read last sync time", "error", err)
	} else {
		a.Invalidator.Seed(last)
	}

	a.Router = service.NewRouter(a.Content, a.Snapshot, a.Cache, a.Invalidator, logger, cfg.Router)
	a.Admin = service.NewAdminService(a.Content, taxonomy, a.Sync, a.Invalidator, a.Publisher, logger)

	return a, nil
}

func (a *App) openSnapshot(ctx context.Context, cfg config.SnapshotConfig) error {
	switch cfg.Backend {
	case config.SnapshotBackendRedis:
		store, err := snapshot.NewRedisStore(ctx, cfg.RedisURL, cfg.RedisKey)
		if err != nil {
			return err
		}
		a.Snapshot = store
		a.closers = append(a.closers, store.Close)
		a.logger.Info("using redis snapshot", "key", cfg.RedisKey)
	default:
		store := snapshot.NewFileStore(cfg.Path)
		a.Snapshot = store
		a.logger.Info("using file snapshot", "path", store.Path())
	}
	return nil
}

// openPublisher connects the indexing notifier. Notifications are
// best-effort, so a broker that cannot be reached only disables them.
func (a *App) openPublisher(cfg config.RabbitMQConfig) {
	if !cfg.Enabled() {
		a.logger.Info("indexing notifications disabled")
		return
	}

	pub, err := publisher.NewRabbitMQ(cfg, a.logger)
	if err != nil {
		a.logger.Warn("indexing notifications unavailable", "error", err)
		return
	}
	a.Publisher = pub
	a.closers = append(a.closers, pub.Close)
}

// Close waits for background refreshes and releases connections in
// reverse order of opening.
func (a *App) Close() error {
	if a.Invalidator != nil {
		a.Invalidator.Close()
	}

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
