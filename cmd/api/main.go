package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/traverseglobe/quotation-backend/api/controllers"
	"github.com/traverseglobe/quotation-backend/api/routes"
	"github.com/traverseglobe/quotation-backend/internal/catalog"
	"github.com/traverseglobe/quotation-backend/internal/quotation"
	"github.com/traverseglobe/quotation-backend/pkg/config"
	"github.com/traverseglobe/quotation-backend/pkg/db"
	"github.com/traverseglobe/quotation-backend/pkg/logger"
	"github.com/traverseglobe/quotation-backend/pkg/metrics"
	"github.com/traverseglobe/quotation-backend/pkg/migrate"
	"github.com/traverseglobe/quotation-backend/pkg/redis"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
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

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	checks := map[string]controllers.Pinger{}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		checks["redis"] = redisClient
	}

	var storage quotation.Storage
	switch cfg.Storage.Driver {
	case config.StorageDriverRedis:
		storage, err = quotation.NewRedisStorage(redisClient)
	case config.StorageDriverSQL:
		dbClient, dbErr := db.New(ctx, cfg.DB, logg)
		if dbErr != nil {
			logg.Error(ctx, "failed to bootstrap database", dbErr)
			os.Exit(1)
		}
		defer func() {
			if err := dbClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing database", err)
			}
		}()
		checks["database"] = dbClient

		if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
			logg.Error(ctx, "failed to run dev migrations", err)
			os.Exit(1)
		}
		storage, err = quotation.NewSQLStorage(dbClient.DB())
	default:
		storage = quotation.NewMemoryStorage()
	}
	if err != nil {
		logg.Error(ctx, "failed to create quotation storage", err)
		os.Exit(1)
	}

	// A nil *redis.Client must not reach the interface.
	var catalogCache catalog.Cache
	if redisClient != nil {
		catalogCache = redisClient
	}
	catalogService, err := catalog.NewProvider(ctx, cfg.Catalog, cfg.Sheets, catalog.Deps{
		Cache:   catalogCache,
		Logger:  logg,
		Metrics: metrics.NewCatalogMetrics(reg),
	})
	if err != nil {
		logg.Error(ctx, "failed to create catalog provider", err)
		os.Exit(1)
	}

	sessions, err := quotation.NewManager(quotation.Params{
		Storage: storage,
		Logger:  logg,
		Metrics: metrics.NewAutosaveMetrics(reg),
		Config: quotation.Config{
			StorageKey:    cfg.Quotation.StorageKey,
			AutosaveDelay: cfg.Quotation.AutosaveDelay,
			SavedFlash:    cfg.Quotation.SavedFlash,
			GSTRate:       cfg.Quotation.GSTRate,
			IdleTimeout:   cfg.Quotation.IdleTimeout,
		},
	})
	if err != nil {
		logg.Error(ctx, "failed to create quotation sessions", err)
		os.Exit(1)
	}
	sessions.StartEviction(cfg.Quotation.EvictInterval)

	server := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           routes.NewRouter(cfg, logg, sessions, catalogService, redisClient, checks, reg),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"addr":    server.Addr,
		"storage": cfg.Storage.Driver,
		"catalog": cfg.Catalog.Source,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(logCtx, "server failed", err)
		}
	case <-ctx.Done():
		logg.Info(logCtx, "shutting down api server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "server shutdown failed", err)
	}
	// Flush pending autosaves before the stores close.
	if err := sessions.Close(shutdownCtx); err != nil {
		logg.Error(shutdownCtx, "failed to flush quotation sessions", err)
	}
}
