package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/stagecrew/rentline-backend/internal/partners"
	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "partner-sync-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "partner-sync-worker"

	logg = logger.New(logger.Options{
		ServiceName: "partner-sync-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	repo := partners.NewRepository(dbClient.DB())
	client := partners.NewHTTPClient(cfg.Partner, logg)

	syncWorker, err := partners.NewSyncWorker(repo, client, cfg.Partner, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create partner sync worker", err)
		os.Exit(1)
	}

	importer, err := partners.NewCapacityImporter(repo, client, clock.System{}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create capacity importer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting partner sync worker")

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return syncWorker.Run(gctx, cfg.Partner.SyncInterval)
	})
	if len(cfg.Partner.ImportKinds) > 0 {
		group.Go(func() error {
			return runImportLoop(gctx, importer, cfg.Partner, logg)
		})
	} else {
		logg.Warn(ctx, "no partner import kinds configured, capacity import disabled")
	}

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "partner sync worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "partner sync worker shutting down gracefully")
}

// runImportLoop refreshes partner capacity on a fixed interval. Import
// failures are logged and retried on the next tick rather than taking
// the commitment sync loop down with them.
func runImportLoop(ctx context.Context, importer *partners.CapacityImporter, cfg config.PartnerConfig, logg *logger.Logger) error {
	ticker := time.NewTicker(cfg.ImportInterval)
	defer ticker.Stop()

	if err := importer.Refresh(ctx, cfg.ImportKinds, cfg.ImportHorizon); err != nil {
		logg.Error(ctx, "partner capacity refresh failed", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := importer.Refresh(ctx, cfg.ImportKinds, cfg.ImportHorizon); err != nil {
				logg.Error(ctx, "partner capacity refresh failed", err)
			}
		}
	}
}
