package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ghuser/itemflow/pkg/app"
	"github.com/ghuser/itemflow/pkg/cache"
	"github.com/ghuser/itemflow/pkg/config"
	"github.com/ghuser/itemflow/pkg/database"
	"github.com/ghuser/itemflow/pkg/events"
	"github.com/ghuser/itemflow/pkg/logger"
	"github.com/ghuser/itemflow/pkg/telemetry"
	"github.com/ghuser/itemflow/services/item/application/consumer"
	itemEvents "github.com/ghuser/itemflow/services/item/domain/events"
	"github.com/ghuser/itemflow/services/item/infrastructure/persistence/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := config.ValidateForProduction(cfg); err != nil {
		slog.Error("production config validation failed", "error", err)
		os.Exit(1)
	}

	log := logger.New(cfg)

	ctx := context.Background()

	otelShutdown, _, err := telemetry.Setup(ctx, cfg)
	if err != nil {
		log.Error("failed to setup otel", "error", err)
		os.Exit(1)
	}
	defer otelShutdown(ctx) //nolint:errcheck

	if err := telemetry.SetupSentry(cfg); err != nil {
		log.Warn("failed to setup sentry, continuing without crash reporting", "error", err)
	}
	defer telemetry.SentryFlush()

	pool, err := database.NewPool(ctx, cfg.DatabaseURL, log)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer pool.Close()
	log.Info("database pool connected")

	redisClient, err := cache.NewRedisClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer redisClient.Close() //nolint:errcheck
	log.Info("redis connected")

	// Receive counts live in Redis so the retry budget survives worker
	// restarts and is shared across instances. Exhausted messages land in
	// the dead_letters table.
	eventBus, err := events.NewEventBus(cfg, log,
		events.WithReceiveCounter(cache.NewReceiveCounter(redisClient)),
		events.WithDeadLetterer(postgres.NewDeadLetterStore(pool)),
	)
	if err != nil {
		log.Error("failed to setup event bus", "error", err)
		os.Exit(1) //nolint:gocritic
	}
	defer eventBus.Close() //nolint:errcheck

	appConfig := &app.Application{
		Config:   cfg,
		Logger:   log,
		Db:       pool,
		Redis:    redisClient,
		EventBus: eventBus,
	}

	if err := registerSubscribers(ctx, appConfig); err != nil {
		log.Error("failed to register subscribers", "error", err)
		os.Exit(1) //nolint:gocritic
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	// EventBus.Close() (via defer) waits up to 30s for in-flight batches.
	log.Info("worker stopped")
}

// registerSubscribers wires all domain event handlers.
// Add new topics here as more services publish events.
func registerSubscribers(ctx context.Context, a *app.Application) error {
	processor := consumer.NewProcessor(cache.NewItemProjection(a.Redis), a.Logger)

	errCh, err := a.EventBus.Subscribe(ctx, itemEvents.TopicItemEvents, processor.Handler())
	if err != nil {
		return err
	}

	// Drain diversion reports in background so the channel never blocks.
	go func() {
		for err := range errCh {
			a.Logger.ErrorContext(ctx, "message diverted to dead letters",
				"topic", itemEvents.TopicItemEvents,
				"error", err,
			)
		}
	}()

	a.Logger.Info("event subscribers registered", "topics", []string{itemEvents.TopicItemEvents})
	return nil
}
