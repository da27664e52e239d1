package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"

	"content_sync/internal/app"
	"content_sync/internal/config"
	"content_sync/internal/logging"
	"content_sync/internal/scheduler"
)

type options struct {
	Config  string `long:"config" env:"CONFIG_PATH" default:"config.yaml" description:"Path to the YAML config file"`
	Once    bool   `long:"once" description:"Run a single full resync and exit"`
	Migrate bool   `long:"migrate" env:"MIGRATE" description:"Apply database migrations first"`
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

	if opts.Migrate {
		if err := a.Migrate(ctx); err != nil {
			logger.Error("migration failed", "error", err)
			os.Exit(1)
		}
	}

	sched := scheduler.NewScheduler(a.Sync, cfg.Sync.Interval, logger)

	if opts.Once || cfg.Sync.Interval <= 0 {
		if !sched.RunOnce(ctx) {
			a.Close()
			os.Exit(1)
		}
		return
	}

	logger.Info("starting content syncer",
		"interval", cfg.Sync.Interval,
		"max_articles", cfg.Sync.MaxArticles,
		"max_events", cfg.Sync.MaxEvents,
	)

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler error", "error", err)
		os.Exit(1)
	}
}
