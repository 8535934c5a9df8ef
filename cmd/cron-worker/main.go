package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/electronicjova/storefront-backend/internal/cron"
	"github.com/electronicjova/storefront-backend/internal/notifications"
	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/internal/stock"
	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/electronicjova/storefront-backend/pkg/db"
	"github.com/electronicjova/storefront-backend/pkg/email"
	"github.com/electronicjova/storefront-backend/pkg/instance"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/metrics"
	"github.com/electronicjova/storefront-backend/pkg/migrate"
	"github.com/electronicjova/storefront-backend/pkg/outbox"
	"github.com/electronicjova/storefront-backend/pkg/redis"
	"github.com/electronicjova/storefront-backend/pkg/stripe"
)

const lockKeyFormat = "jova:cron-worker:lock:%s"

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	if err := run(ctx, cfg, logg); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return fmt.Errorf("bootstrap stripe: %w", err)
	}

	storefrontMetrics := metrics.NewStorefront(prometheus.DefaultRegisterer)
	workerMetrics := metrics.NewWorkerMetrics(prometheus.DefaultRegisterer)

	conn := dbClient.DB()
	outboxRepo := outbox.NewRepository(conn)
	ordersRepo := orders.NewRepository(conn)
	dispatcher := notifications.NewDispatcher(logg, storefrontMetrics,
		notifications.NewRealtimeHook(redisClient),
		notifications.NewEmailHook(email.New(cfg.Sendgrid, logg), cfg.Storefront.BaseURL),
	)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Outbox:   outbox.NewService(outboxRepo, logg),
		Stock:    stock.NewLedger(conn, logg, storefrontMetrics),
		Refunder: stripeClient,
		Notifier: dispatcher,
		Metrics:  storefrontMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	pendingJob, err := cron.NewPendingOrderJob(cron.PendingOrderJobParams{
		Logger: logg,
		Reader: ordersRepo,
		Orders: orderService,
		TTL:    cfg.Cron.PendingOrderTTL,
	})
	if err != nil {
		return err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		DB:         dbClient,
		Repository: outboxRepo,
		Retention:  cfg.Cron.OutboxRetention,
	})
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return fmt.Errorf("create cron lock: %w", err)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Jobs:     []cron.Job{pendingJob, retentionJob},
		Lock:     lock,
		Metrics:  workerMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	go func() {
		if err := metrics.Serve(ctx, cfg.Service.MetricsPort, prometheus.DefaultGatherer, logg); err != nil {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")
	return service.Run(ctx)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
