package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Modelos-Microservices/Orders-Microservice/handlers"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/auth"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/catalog"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/consul"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/orders"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/payments"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/stores/kafka"
	"github.com/Modelos-Microservices/Orders-Microservice/internal/stores/postgres"
	"github.com/Modelos-Microservices/Orders-Microservice/pkg/logkey"
	"github.com/joho/godotenv"
)

const serviceName = "orders"

func main() {
	if err := run(); err != nil {
		slog.Error("service stopped", slog.String(logkey.ERROR, err.Error()))
		os.Exit(1)
	}
}

func run() error {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on environment")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// database
	pool, err := postgres.NewPool(ctx, postgres.Config{
		Host:     mustEnv("POSTGRES_HOST"),
		Port:     envOr("POSTGRES_PORT", "5432"),
		User:     mustEnv("POSTGRES_USER"),
		Password: mustEnv("POSTGRES_PASSWORD"),
		DBName:   mustEnv("POSTGRES_DB"),
		SSLMode:  envOr("POSTGRES_SSLMODE", "disable"),
	})
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(pool); err != nil {
		return err
	}
	slog.Info("database connected, migrations applied")

	// auth keys
	publicPEM, err := os.ReadFile(envOr("AUTH_PUBLIC_KEY_FILE", "pubkey.pem"))
	if err != nil {
		return fmt.Errorf("reading auth public key: %w", err)
	}
	keys, err := auth.NewKeys(publicPEM)
	if err != nil {
		return err
	}

	// consul
	consulClient, err := consul.NewClient()
	if err != nil {
		return err
	}
	serviceAddress := envOr("SERVICE_ADDRESS", "localhost")
	servicePort, err := strconv.Atoi(envOr("SERVICE_PORT", "8083"))
	if err != nil {
		return fmt.Errorf("invalid SERVICE_PORT: %w", err)
	}
	if err := consul.RegisterService(consulClient, serviceName, serviceAddress, servicePort); err != nil {
		return err
	}
	slog.Info("registered with consul", slog.String("Service", serviceName))

	// kafka
	kafkaConf, err := kafka.NewConf(mustEnv("KAFKA_BROKERS"))
	if err != nil {
		return err
	}
	defer kafkaConf.Close()

	// stripe
	gateway, err := payments.NewStripeGateway(
		mustEnv("STRIPE_TEST_KEY"),
		envOr("STRIPE_SUCCESS_URL", "https://example.com/success"),
		envOr("STRIPE_CANCEL_URL", "https://example.com/cancel"),
	)
	if err != nil {
		return err
	}

	// wiring
	store, err := orders.NewPostgresStore(pool)
	if err != nil {
		return err
	}
	resolver := catalog.NewResolver(catalog.NewHTTPClient(consulClient))
	engine := orders.NewEngine(store, resolver)
	coordinator := orders.NewCoordinator(store, resolver, gateway, kafkaConf,
		envOr("SETTLEMENT_CURRENCY", "inr"))
	queries := orders.NewQueries(store, resolver)

	// payment events arrive at-least-once; reconciliation absorbs redelivery
	go func() {
		err := kafkaConf.ConsumePaymentEvents(ctx, func(ctx context.Context, event kafka.PaymentCompletedEvent) error {
			err := coordinator.ReconcilePayment(ctx, event.OrderId, event.PaymentId, event.ReceiptUrl)
			if errors.Is(err, orders.ErrOrderNotFound) {
				// an event for an order this service never created cannot
				// succeed on retry either
				slog.Error("payment event for unknown order", slog.String(logkey.OrderID, event.OrderId))
				return nil
			}
			return err
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("payment consumer stopped", slog.String(logkey.ERROR, err.Error()))
		}
	}()

	prefix := mustEnv("SERVICE_ENDPOINT_PREFIX")
	api := http.Server{
		Addr:         fmt.Sprintf(":%d", servicePort),
		Handler:      handlers.API(prefix, keys, engine, coordinator, queries),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("starting server", slog.String("Addr", api.Addr))
		serverErrors <- api.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := api.Shutdown(shutdownCtx); err != nil {
			api.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}
	return nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(key + " is not set")
	}
	return v
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
