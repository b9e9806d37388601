package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	cartsvc "github.com/lucasrivero/storefront-backend/internal/cart"
	"github.com/lucasrivero/storefront-backend/internal/coupons"
	"github.com/lucasrivero/storefront-backend/internal/expiry"
	"github.com/lucasrivero/storefront-backend/internal/inventory"
	ordersvc "github.com/lucasrivero/storefront-backend/internal/orders"
	"github.com/lucasrivero/storefront-backend/internal/products"
	"github.com/lucasrivero/storefront-backend/pkg/config"
	"github.com/lucasrivero/storefront-backend/pkg/db"
	"github.com/lucasrivero/storefront-backend/pkg/logger"
	"github.com/lucasrivero/storefront-backend/pkg/metrics"
	"github.com/lucasrivero/storefront-backend/pkg/redis"
)

const lockName = "expiry-worker"

func main() {
	logg := logger.New(logger.Options{ServiceName: "expiry-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "expiry-worker",
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

	productRepo := products.NewRepository(dbClient.DB())
	cartRepo := cartsvc.NewRepository(dbClient.DB())

	cartService, err := cartsvc.NewService(cartRepo, productRepo)
	if err != nil {
		logg.Error(context.Background(), "failed to create cart service", err)
		os.Exit(1)
	}

	ledger, err := inventory.NewLedger(inventory.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create inventory ledger", err)
		os.Exit(1)
	}

	tracker, err := coupons.NewTracker(coupons.NewRepository(dbClient.DB()))
	if err != nil {
		logg.Error(context.Background(), "failed to create coupon tracker", err)
		os.Exit(1)
	}

	orderRepo := ordersvc.NewRepository(dbClient.DB())
	orderService, err := ordersvc.NewService(
		orderRepo,
		dbClient,
		cartRepo,
		cartService,
		ledger,
		tracker,
		ordersvc.Options{
			Pricing: ordersvc.Pricing{
				TaxRateBasisPoints: cfg.Checkout.TaxRateBasisPoints,
				ShippingFlatCents:  cfg.Checkout.ShippingFlatCents,
			},
			ClawbackOnReturn: cfg.Checkout.CouponClawback,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create order service", err)
		os.Exit(1)
	}

	pendingJob, err := expiry.NewPendingOrderJob(expiry.PendingOrderJobParams{
		Logger:     logg,
		Reader:     orderRepo,
		Canceller:  orderService,
		PendingTTL: cfg.Expiry.PendingPaymentTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create pending order job", err)
		os.Exit(1)
	}

	lock, err := expiry.NewRedisLock(redisClient, redisClient.LockKey(lockName), cfg.Expiry.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create sweep lock", err)
		os.Exit(1)
	}

	service, err := expiry.NewService(expiry.ServiceParams{
		Logger:   logg,
		Registry: expiry.NewRegistry(pendingJob),
		Lock:     lock,
		Metrics:  metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Expiry.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create expiry service", err)
		os.Exit(1)
	}

	go serveMetrics(cfg.Expiry.MetricsPort, logg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Expiry.Interval.String(),
	})
	logg.Info(ctx, "starting expiry worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "expiry worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "expiry worker shutting down gracefully")
}

func serveMetrics(port string, logg *logger.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(":"+port, mux); err != nil && err != http.ErrServerClosed {
		logg.Error(context.Background(), "metrics server stopped", err)
	}
}
