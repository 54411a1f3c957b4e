package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/stagecrew/rentline-backend/api"
	"github.com/stagecrew/rentline-backend/api/routes"
	"github.com/stagecrew/rentline-backend/internal/availability"
	"github.com/stagecrew/rentline-backend/internal/catalog"
	"github.com/stagecrew/rentline-backend/internal/engine"
	"github.com/stagecrew/rentline-backend/internal/partners"
	"github.com/stagecrew/rentline-backend/internal/scans"
	"github.com/stagecrew/rentline-backend/pkg/authz"
	"github.com/stagecrew/rentline-backend/pkg/clock"
	"github.com/stagecrew/rentline-backend/pkg/config"
	"github.com/stagecrew/rentline-backend/pkg/db"
	"github.com/stagecrew/rentline-backend/pkg/logger"
	"github.com/stagecrew/rentline-backend/pkg/migrate"
	"github.com/stagecrew/rentline-backend/pkg/outbox"
	"github.com/stagecrew/rentline-backend/pkg/redis"

	"github.com/stagecrew/rentline-backend/api/controllers"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
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
	oracle := authz.AllowAll{}
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)

	catalogRepo := catalog.NewRepository(conn)
	catalogCache := catalog.NewCache(catalogRepo, cfg.Catalog.CacheTTL, clk)
	expander, err := catalog.NewExpander(catalogRepo, cfg.Engine.MaxBundleDepth)
	if err != nil {
		logg.Error(context.Background(), "failed to create bundle expander", err)
		os.Exit(1)
	}
	catalogSvc, err := catalog.NewService(catalogRepo, catalogCache, expander)
	if err != nil {
		logg.Error(context.Background(), "failed to create catalog service", err)
		os.Exit(1)
	}

	loader := availability.NewLoader(conn)
	index, err := loader.LoadAll(context.Background())
	if err != nil {
		logg.Error(context.Background(), "failed to rebuild interval index", err)
		os.Exit(1)
	}
	calculator, err := availability.NewCalculator(catalogCache, index)
	if err != nil {
		logg.Error(context.Background(), "failed to create availability calculator", err)
		os.Exit(1)
	}

	fallback, err := partners.NewFallback(partners.NewRepository(conn), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create partner fallback", err)
		os.Exit(1)
	}

	engineRepo := engine.NewRepository(conn)
	engineSvc, err := engine.NewService(engine.Params{
		DB:         dbClient,
		Repo:       engineRepo,
		Catalog:    catalogCache,
		Expander:   expander,
		Calculator: calculator,
		Index:      index,
		Loader:     loader,
		Outbox:     outboxSvc,
		Authz:      oracle,
		Fallback:   fallback,
		Clock:      clk,
		Config:     cfg.Engine,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reservation engine", err)
		os.Exit(1)
	}

	homeBase := scans.Coordinates{Lat: cfg.Scan.HomeLat, Lng: cfg.Scan.HomeLng}
	gate := scans.NewRadiusGate(func(context.Context, authz.Actor) (scans.Coordinates, error) {
		return homeBase, nil
	}, cfg.Scan.MaxDistance)

	scanSvc, err := scans.NewService(scans.Params{
		DB:       dbClient,
		Repo:     scans.NewRepository(conn),
		Catalog:  catalogCache,
		Expander: expander,
		Dedup:    redisClient,
		Gate:     gate,
		Outbox:   outboxSvc,
		Authz:    oracle,
		Clock:    clk,
		Config:   cfg.Scan,
		Logger:   logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scan service", err)
		os.Exit(1)
	}

	handler := routes.NewRouter(cfg, logg, routes.Services{
		Engine:   engineSvc,
		Catalog:  catalogSvc,
		Scans:    scanSvc,
		Projects: engineRepo,
		Pingers: map[string]controllers.Pinger{
			"postgres": dbClient,
			"redis":    redisClient,
		},
	})

	server := api.NewServer(cfg, handler)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"addr":        server.Addr,
	})

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "error during server shutdown", err)
		}
	}

	logg.Info(ctx, "api server shutting down gracefully")
}
