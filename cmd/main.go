package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/edupay/payment-core/internal/api"
	"github.com/edupay/payment-core/internal/config"
	"github.com/edupay/payment-core/internal/events"
	"github.com/edupay/payment-core/internal/gateway"
	"github.com/edupay/payment-core/internal/handlers"
	"github.com/edupay/payment-core/internal/idempotency"
	"github.com/edupay/payment-core/internal/metrics"
	"github.com/edupay/payment-core/internal/repository"
	"github.com/edupay/payment-core/internal/retry"
	"github.com/edupay/payment-core/internal/service"
	"github.com/edupay/payment-core/internal/telemetry"
)

func main() {
	cfg := config.Load()

	if err := telemetry.Init("payment-core", cfg.JaegerEndpoint); err != nil {
		panic(fmt.Sprintf("Failed to initialize telemetry: %v", err))
	}
	defer telemetry.Shutdown(context.Background())

	logger := telemetry.Logger
	logger.Info("Starting Payment Core")

	// Connect to PostgreSQL
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	repo := repository.NewPaymentRepository(db)
	if err := repo.InitDB(); err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}

	// Connect to Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr: cfg.RedisURL,
	})

	// Kafka writer for payment state-change events
	kafkaWriter := &kafka.Writer{
		Addr:     kafka.TCP(cfg.KafkaBrokers),
		Topic:    "payment.state.changed",
		Balancer: &kafka.LeastBytes{},
	}
	defer kafkaWriter.Close()
	publisher := events.NewKafkaPublisher(kafkaWriter, logger)

	// Collaborators and services
	gw := gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayAPIKey, logger)
	cache := idempotency.NewRedisCache(redisClient)
	locker := idempotency.NewRedisLocker(redisClient)
	idemStore := idempotency.NewStore(repo, cache, cfg.IdempotencySalt, logger)
	executor := retry.NewExecutor(logger)
	retryCfg := retry.DefaultConfig()

	paymentService := service.NewPaymentService(
		repo, gw, idemStore, locker, publisher, executor, retryCfg,
		cfg.MaxPaymentAmount, logger,
	)
	refundService := service.NewRefundService(
		repo, gw, publisher, executor, retryCfg, cfg.RefundWindow, logger,
	)
	webhookService := service.NewWebhookService(
		repo, gw, publisher, cfg.WebhookSecret, logger,
	)

	// Periodic sweep of expired idempotency records
	cleanupCtx, cancelCleanup := context.WithCancel(context.Background())
	defer cancelCleanup()
	go runCleanupSweep(cleanupCtx, idemStore, cfg.CleanupInterval, logger)

	paymentHandler := handlers.NewPaymentHandler(paymentService, refundService, logger)
	webhookHandler := handlers.NewWebhookHandler(webhookService, logger)

	r := api.NewRouter(paymentHandler, webhookHandler)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info("Payment Core starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func runCleanupSweep(ctx context.Context, store *idempotency.Store, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := store.CleanupExpired(ctx)
			if err != nil {
				logger.Error("idempotency cleanup sweep failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				metrics.IdempotencyKeysRemoved.Add(float64(removed))
				logger.Info("removed expired idempotency records", zap.Int64("count", removed))
			}
		}
	}
}
