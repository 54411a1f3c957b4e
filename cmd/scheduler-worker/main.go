package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/stagecrew/rentline-backend/internal/availability"
	"github.com/stagecrew/rentline-backend/internal/catalog"
	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/internal/partners"
	"github.com/stagecrew/rentline-backend/internal/scheduler"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/metrics"
	"github.com/stagecrew/rentline-backend/pkg/migrate"
	"github.com/stagecrew/rentline-backend/pkg/outbox"
	"github.com/stagecrew/rentline-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "scheduler-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "scheduler-worker"

	logg = logger.New(logger.Options{
		ServiceName: "scheduler-worker",
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

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	conn := dbClient.DB()
	clk := clock.System{}
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	engineSvc, err := buildEngine(context.Background(), dbClient, cfg, outboxSvc, clk, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation engine", err)
		os.Exit(1)
	}

	schedRepo := scheduler.NewRepository(conn)
	recurring, err := scheduler.NewRecurringProjectHandler(schedRepo, engineSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create recurring project handler", err)
		os.Exit(1)
	}
	rollover, err := scheduler.NewLeaseRolloverHandler(schedRepo, engineSvc)
	if err != nil {
		logg.Error(context.Background(), "failed to create lease rollover handler", err)
		os.Exit(1)
	}

	worker, err := scheduler.NewWorker(workerID(), scheduler.Params{
		DB:       dbClient,
		Repo:     schedRepo,
		Handlers: []scheduler.Handler{recurring, rollover},
		Locker:   redisClient,
		Outbox:   outboxSvc,
		Metrics:  metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer),
		Clock:    clk,
		Config:   cfg.Scheduler,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting scheduler worker")

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "scheduler worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "scheduler worker shutting down gracefully")
}

// buildEngine wires the same reservation engine the api serves, minus
// the http surface. Scheduler handlers reserve and move through it so
// recurring obligations hit the same guards as interactive requests.
func buildEngine(ctx context.Context, dbClient *db.Client, cfg *config.Config, outboxSvc *outbox.Service, clk clock.Clock, logg *logger.Logger) (engine.Service, error) {
	conn := dbClient.DB()

	catalogRepo := catalog.NewRepository(conn)
	catalogCache := catalog.NewCache(catalogRepo, cfg.Catalog.CacheTTL, clk)
	expander, err := catalog.NewExpander(catalogRepo, cfg.Engine.MaxBundleDepth)
	if err != nil {
		return nil, err
	}

	loader := availability.NewLoader(conn)
	index, err := loader.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	calculator, err := availability.NewCalculator(catalogCache, index)
	if err != nil {
		return nil, err
	}

	fallback, err := partners.NewFallback(partners.NewRepository(conn), logg)
	if err != nil {
		return nil, err
	}

	return engine.NewService(engine.Params{
		DB:         dbClient,
		Repo:       engine.NewRepository(conn),
		Catalog:    catalogCache,
		Expander:   expander,
		Calculator: calculator,
		Index:      index,
		Loader:     loader,
		Outbox:     outboxSvc,
		Authz:      authz.AllowAll{},
		Fallback:   fallback,
		Clock:      clk,
		Config:     cfg.Engine,
		Logger:     logg,
	})
}

func workerID() string {
	if dyno := os.Getenv("DYNO"); dyno != "" {
		return dyno
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
