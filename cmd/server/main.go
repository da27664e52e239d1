package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/jessevdk/go-flags"

	"content_sync/internal/api"
	"content_sync/internal/app"
	"content_sync/internal/config"
	"content_sync/internal/logging"
	"content_sync/internal/scheduler"
)

type options struct {
	Config      string `long:"config" env:"CONFIG_PATH" default:"config.yaml" description:"Path to the YAML config file"`
	Migrate     bool   `long:"migrate" env:"MIGRATE" description:"Apply database migrations before serving"`
	MigrateOnly bool   `long:"migrate-only" description:"Apply database migrations and exit"`
	NoScheduler bool   `long:"no-scheduler" env:"NO_SCHEDULER" description:"Do not run the periodic resync in this process"`
}

func main() {
	var opts options
	if _, err := flags.NewParser(&opts, flags.Default).Parse(); err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(2)
	}

	logger := logging.New("info", "json")

	cfg, err := config.Load(opts.Config)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger = logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if opts.Migrate || opts.MigrateOnly {
		if err := a.Migrate(ctx); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
		if opts.MigrateOnly {
			return
		}
	}

	if cfg.Sync.Interval > 0 && !opts.NoScheduler {
		sched := scheduler.NewScheduler(a.Sync, cfg.Sync.Interval, logger)
		go func() {
			if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler error", "error", err)
			}
		}()
	}

	gin.SetMode(gin.ReleaseMode)
	handler := api.NewHandler(a.Router, a.Admin, a.Invalidator, a.Sync, logger)
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      api.NewServer(handler, api.Options{AdminAPIKey: cfg.Server.AdminAPIKey, Logger: logger}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("received shutdown signal")
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}

	logger.Info("server stopped")
}
