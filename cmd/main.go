/**
 * @description
 * This is the main entry point for the payment-relay-service. It wires the
 * relay together: the Xsolla gateway for outbound token requests, the
 * PostgreSQL-backed idempotency ledger and order store, the RabbitMQ producer
 * for internal payment events, and the Redis session address bus, then serves
 * the HTTP surface with graceful shutdown.
 *
 * The realtime-session runtime that owns live connections imports
 * pkg/sessionbus and runs a sessionbus.Relay with its own registry; this
 * binary only publishes onto the bus.
 *
 * @dependencies
 * - github.com/go-chi/chi/v5 (via internal/api): HTTP routing.
 * - github.com/joho/godotenv: For loading .env files during local development.
 * - github.com/jackc/pgx/v5, github.com/redis/go-redis/v9: Storage and bus clients.
 * - The service's internal packages for config, API handling, and messaging.
 */
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/questforge/payment-relay-service/internal/api"
	"github.com/questforge/payment-relay-service/internal/app"
	"github.com/questforge/payment-relay-service/internal/config"
	"github.com/questforge/payment-relay-service/internal/store"
	"github.com/questforge/payment-relay-service/pkg/rabbitmq"
	"github.com/questforge/payment-relay-service/pkg/sessionbus"
	"github.com/questforge/payment-relay-service/pkg/xsollaclient"
)

func main() {
	// Load .env file for local development.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("cannot load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Database pool for the idempotency ledger and order records.
	dbpool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create database pool: %v", err)
	}
	defer dbpool.Close()
	if err := dbpool.Ping(ctx); err != nil {
		log.Fatalf("Failed to reach database: %v", err)
	}
	repo := store.NewPostgresRepository(dbpool)

	// RabbitMQ producer for internal payment events.
	producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer producer.Close()
	log.Println("RabbitMQ producer connected")

	// Redis-backed session address bus.
	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	redisClient := redis.NewClient(redisOpts)
	defer redisClient.Close()
	bus := sessionbus.NewBus(redisClient, cfg.SessionBusChannel)

	// Outbound provider gateway.
	gateway := xsollaclient.NewClient(
		cfg.XsollaMerchantID,
		cfg.XsollaAPIKey,
		cfg.XsollaProjectID,
		xsollaclient.WithBaseURLs(cfg.XsollaStoreBaseURL, cfg.XsollaAPIBaseURL),
	)

	// Relay core: verifier -> classifier -> dispatcher -> fulfillment.
	fulfillment := app.NewFulfillment(repo, producer, bus, cfg.PaymentEventsExchange)
	dispatcher := app.NewDispatcher(
		app.NewSignatureVerifier(cfg.XsollaWebhookSecretKey),
		app.NewClassifier(),
		repo,
		fulfillment,
	)

	handlers := api.NewRelayHandlers(gateway, repo, cfg.Sandbox())
	webhookHandler := api.NewWebhookHandler(dispatcher)
	router := api.RelayRoutes(handlers, webhookHandler, cfg.AuthJWTSecret)

	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server starting on port %s (sandbox=%t)", cfg.ServerPort, cfg.Sandbox())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not start server: %s\n", err)
		}
	}()

	// Graceful shutdown logic.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server shutdown failed: %v", err)
	}

	log.Println("Server gracefully stopped")
}
