package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bukari-app/bukari-backend/api/routes"
	"github.com/bukari-app/bukari-backend/internal/payments"
	"github.com/bukari-app/bukari-backend/internal/payments/providers"
	"github.com/bukari-app/bukari-backend/internal/scanner"
	"github.com/bukari-app/bukari-backend/internal/tickets"
	"github.com/bukari-app/bukari-backend/internal/users"
	"github.com/bukari-app/bukari-backend/pkg/config"
	"github.com/bukari-app/bukari-backend/pkg/db"
	"github.com/bukari-app/bukari-backend/pkg/logger"
	"github.com/bukari-app/bukari-backend/pkg/metrics"
	"github.com/bukari-app/bukari-backend/pkg/migrate"
	"github.com/bukari-app/bukari-backend/pkg/redis"
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

	providerHTTP := &http.Client{Timeout: cfg.Payments.ProviderTimeout}

	paystack, err := providers.NewPaystack(
		cfg.Payments.PaystackSecret,
		cfg.App.IsProd(),
		logg,
		providers.WithPaystackBaseURL(cfg.Payments.PaystackBaseURL),
		providers.WithPaystackHTTPClient(providerHTTP),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create paystack client", err)
		os.Exit(1)
	}

	stripe, err := providers.NewStripe(
		cfg.Payments.StripeSecret,
		cfg.App.IsProd(),
		logg,
		providers.WithStripeBaseURL(cfg.Payments.StripeBaseURL),
		providers.WithStripeHTTPClient(providerHTTP),
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create stripe client", err)
		os.Exit(1)
	}

	registry := providers.NewRegistry(paystack, stripe)

	paymentsRepo := payments.NewRepository(dbClient.DB())

	paymentsService, err := payments.NewService(dbClient, paymentsRepo, redisClient, payments.Config{
		PaystackWebhookSecret: cfg.Payments.PaystackWebhookSecret,
		StripeWebhookSecret:   cfg.Payments.StripeWebhookSecret,
		IsProd:                cfg.App.IsProd(),
		GuardTTL:              cfg.Payments.WebhookGuardTTL,
	}, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create payments service", err)
		os.Exit(1)
	}

	ticketsService, err := tickets.NewService(
		dbClient,
		tickets.NewRepository(dbClient.DB()),
		users.NewRepository(dbClient.DB()),
		paymentsRepo,
		registry,
		cfg.Payments.CallbackURL,
		logg,
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create tickets service", err)
		os.Exit(1)
	}

	scannerService, err := scanner.NewService(scanner.NewRepository(dbClient.DB()), users.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create scanner service", err)
		os.Exit(1)
	}

	promRegistry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(promRegistry)

	router := routes.NewRouter(routes.Deps{
		Config:   cfg,
		Logger:   logg,
		DB:       dbClient,
		Redis:    redisClient,
		Tickets:  ticketsService,
		Payments: paymentsService,
		Scanner:  scannerService,
		Metrics:  httpMetrics,
		Registry: promRegistry,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
