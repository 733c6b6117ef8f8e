package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/casafindr/casafindr-sync/api/routes"
	"github.com/casafindr/casafindr-sync/internal/backend"
	"github.com/casafindr/casafindr-sync/internal/bus"
	"github.com/casafindr/casafindr-sync/internal/identity"
	"github.com/casafindr/casafindr-sync/internal/ingest"
	"github.com/casafindr/casafindr-sync/internal/store"
	"github.com/casafindr/casafindr-sync/internal/token"
	"github.com/casafindr/casafindr-sync/pkg/config"
	"github.com/casafindr/casafindr-sync/pkg/db"
	"github.com/casafindr/casafindr-sync/pkg/env"
	"github.com/casafindr/casafindr-sync/pkg/instance"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/metrics"
	"github.com/casafindr/casafindr-sync/pkg/migrate"
	"github.com/casafindr/casafindr-sync/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "agent"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "agent",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}

	if err := migrate.MaybeRun(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
	}
	defer func() {
		closeErr := dbClient.Close()
		if redisClient != nil {
			closeErr = multierr.Append(closeErr, redisClient.Close())
		}
		if closeErr != nil {
			logg.Error(context.Background(), "error closing resources", closeErr)
		}
	}()

	deviceID, err := instance.GetID(cfg.App.DataDir)
	if err != nil {
		logg.Error(context.Background(), "failed to resolve device id", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	ingestMetrics := metrics.NewIngestMetrics(registry)

	storeService, err := store.NewService(store.ServiceParams{
		Client:     dbClient,
		Repo:       store.NewRepository(dbClient.DB()),
		MaxRecords: cfg.Store.MaxRecords,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification store", err)
		os.Exit(1)
	}

	events := bus.New()

	foreground, err := ingest.NewForegroundHandler(ingest.ForegroundParams{
		Store:   storeService,
		Events:  events,
		Logger:  logg,
		Metrics: ingestMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create foreground handler", err)
		os.Exit(1)
	}

	identityProvider := identity.NewClaimsProvider(cfg.JWT)
	if accessToken := env.Get("CASASYNC_ACCESS_TOKEN", ""); accessToken != "" {
		identityProvider.SetAccessToken(accessToken)
	}

	var upstream token.UpstreamSyncer
	if cfg.Backend.BaseURL != "" {
		backendClient, err := backend.NewClient(cfg.Backend.BaseURL, backend.WithTimeout(cfg.Backend.SyncTimeout))
		if err != nil {
			logg.Error(context.Background(), "failed to create backend client", err)
			os.Exit(1)
		}
		upstream, err = backend.NewTokenSyncer(backendClient, identityProvider, deviceID)
		if err != nil {
			logg.Error(context.Background(), "failed to create token syncer", err)
			os.Exit(1)
		}
	}

	tokenManager, err := token.NewManager(token.Params{
		Source:   platformTokenSource(),
		Repo:     token.NewRepository(dbClient.DB()),
		Upstream: upstream,
		Logger:   logg,
		Metrics:  ingestMetrics,
		Config:   cfg.Push,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create token manager", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":       cfg.App.Env,
		"device_id": deviceID,
	})

	// Registration failures leave the manager failed and retryable; the
	// agent keeps serving local reads regardless.
	if err := tokenManager.Initialize(ctx); err != nil {
		logg.Error(ctx, "push token initialization failed", err)
	}

	var redisPinger redis.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	addr := ":" + env.Get("PORT", cfg.App.Port)
	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.RouterParams{
			Config:       cfg,
			Logger:       logg,
			DB:           dbClient,
			Redis:        redisPinger,
			Store:        storeService,
			Foreground:   foreground,
			TokenManager: tokenManager,
			Metrics:      registry,
		}),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "agent server shutdown failed", err)
		}
	}()

	ctx = logg.WithField(ctx, "addr", addr)
	logg.Info(ctx, "starting agent server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "agent server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "agent shutting down gracefully")
}

// platformTokenSource reads the platform-issued push token handed to the
// process by the mobile shim. Rotations arrive later through the rotation
// endpoint.
func platformTokenSource() token.Source {
	return token.SourceFunc(func(context.Context) (string, error) {
		if tok := env.Get("CASASYNC_PUSH_PLATFORM_TOKEN", ""); tok != "" {
			return tok, nil
		}
		return "", errors.New("no platform push token provided")
	})
}
