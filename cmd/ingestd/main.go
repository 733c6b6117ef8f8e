package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/casafindr/casafindr-sync/internal/ingest"
	"github.com/casafindr/casafindr-sync/internal/store"
	"github.com/casafindr/casafindr-sync/pkg/config"
	"github.com/casafindr/casafindr-sync/pkg/db"
	"github.com/casafindr/casafindr-sync/pkg/idempotency"
	"github.com/casafindr/casafindr-sync/pkg/logger"
	"github.com/casafindr/casafindr-sync/pkg/metrics"
	"github.com/casafindr/casafindr-sync/pkg/migrate"
	"github.com/casafindr/casafindr-sync/pkg/pubsub"
	"github.com/casafindr/casafindr-sync/pkg/redis"
)

// ingestd is the minimal background process: no API, no event bus, no token
// manager. It appends deliveries to the durable store and exits on signal.
func main() {
	logg := logger.New(logger.Options{ServiceName: "ingestd"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "ingestd",
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

	storeService, err := store.NewService(store.ServiceParams{
		Client:     dbClient,
		Repo:       store.NewRepository(dbClient.DB()),
		MaxRecords: cfg.Store.MaxRecords,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create notification store", err)
		os.Exit(1)
	}

	handler, err := ingest.NewBackgroundHandler(storeService, logg, metrics.NewIngestMetrics(nil))
	if err != nil {
		logg.Error(context.Background(), "failed to create background handler", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	var guard *idempotency.Manager
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		guard, err = idempotency.NewManager(redisClient, cfg.Eventing.DeliveryIdempotencyTTL)
		if err != nil {
			logg.Error(context.Background(), "failed to create delivery guard", err)
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

	pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap pubsub", err)
		os.Exit(1)
	}
	defer func() {
		if err := pubsubClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing pubsub client", err)
		}
	}()

	consumer, err := ingest.NewConsumer(handler, pubsubClient.PushSubscription(), guard, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create push consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env})
	logg.Info(ctx, "starting background ingest")

	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "background ingest stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "background ingest shutting down gracefully")
}
