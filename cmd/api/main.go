package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/electronicjova/storefront-backend/api/controllers"
	"github.com/electronicjova/storefront-backend/api/routes"
	"github.com/electronicjova/storefront-backend/internal/cart"
	checkoutsvc "github.com/electronicjova/storefront-backend/internal/checkout"
	"github.com/electronicjova/storefront-backend/internal/notifications"
	"github.com/electronicjova/storefront-backend/internal/orders"
	"github.com/electronicjova/storefront-backend/internal/products"
	"github.com/electronicjova/storefront-backend/internal/stock"
	stripewebhook "github.com/electronicjova/storefront-backend/internal/webhooks/stripe"
	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/electronicjova/storefront-backend/pkg/db"
	"github.com/electronicjova/storefront-backend/pkg/email"
	"github.com/electronicjova/storefront-backend/pkg/logger"
	"github.com/electronicjova/storefront-backend/pkg/metrics"
	"github.com/electronicjova/storefront-backend/pkg/migrate"
	"github.com/electronicjova/storefront-backend/pkg/outbox"
	"github.com/electronicjova/storefront-backend/pkg/redis"
	"github.com/electronicjova/storefront-backend/pkg/stripe"
)

const shutdownTimeout = 15 * time.Second

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
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	storefrontMetrics := metrics.NewStorefront(registry)

	conn := dbClient.DB()
	outboxSvc := outbox.NewService(outbox.NewRepository(conn), logg)
	ledger := stock.NewLedger(conn, logg, storefrontMetrics)
	ordersRepo := orders.NewRepository(conn)
	productsRepo := products.NewRepository(conn)

	dispatcher := notifications.NewDispatcher(logg, storefrontMetrics,
		notifications.NewRealtimeHook(redisClient),
		notifications.NewEmailHook(email.New(cfg.Sendgrid, logg), cfg.Storefront.BaseURL),
	)

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     ordersRepo,
		Tx:       dbClient,
		Outbox:   outboxSvc,
		Stock:    ledger,
		Refunder: stripeClient,
		Notifier: dispatcher,
		Metrics:  storefrontMetrics,
		Logger:   logg,
	})
	if err != nil {
		return err
	}

	cartRepo := cart.NewRepository(conn)
	cartService, err := cart.NewService(cartRepo, dbClient, productsRepo, redisClient, cfg.Redis.CartCountTTL, logg)
	if err != nil {
		return err
	}

	checkoutService, err := checkoutsvc.NewService(checkoutsvc.ServiceParams{
		Tx:         dbClient,
		Cart:       cartRepo,
		CartClear:  cartService,
		Stock:      ledger,
		OrdersRepo: ordersRepo,
		Orders:     orderService,
		Outbox:     outboxSvc,
		Sessions:   stripeClient,
		BaseURL:    cfg.Storefront.BaseURL,
		Logger:     logg,
	})
	if err != nil {
		return err
	}

	productService, err := products.NewService(productsRepo, dbClient)
	if err != nil {
		return err
	}

	guard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Eventing.WebhookIdempotencyTTL, "stripe_webhook")
	if err != nil {
		return err
	}
	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		OrdersRepo:        ordersRepo,
		Stock:             ledger,
		Outbox:            outboxSvc,
		Notifier:          dispatcher,
		Metrics:           storefrontMetrics,
		Guard:             guard,
		TransactionRunner: dbClient,
		Logger:            logg,
	})
	if err != nil {
		return err
	}

	router := routes.NewRouter(cfg, logg, routes.Dependencies{
		Ready: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Idempotency:   redisClient,
		OrderEvents:   redisClient,
		Gatherer:      registry,
		Metrics:       storefrontMetrics,
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        orderService,
		Products:      productService,
		StripeWebhook: webhookService,
		Stripe:        stripeClient,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	srvCtx := logg.WithFields(ctx, map[string]any{
		"env":        cfg.App.Env,
		"addr":       addr,
		"stripe_env": stripeClient.Environment(),
	})
	logg.Info(srvCtx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logg.Info(srvCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
