package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port            string
	DatabaseURL     string
	RedisURL        string
	KafkaBrokers    string
	GatewayBaseURL  string
	GatewayAPIKey   string
	WebhookSecret   string
	IdempotencySalt string
	JaegerEndpoint  string

	// MaxPaymentAmount is the absolute ceiling for a single charge, in
	// minor currency units.
	MaxPaymentAmount int64
	RefundWindow     time.Duration
	CleanupInterval  time.Duration
}

func Load() *Config {
	// Local development convenience; missing .env is fine.
	_ = godotenv.Load()

	return &Config{
		Port:             getEnv("PORT", "8082"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         getEnv("REDIS_URL", "localhost:6379"),
		KafkaBrokers:     getEnv("KAFKA_BROKERS", "localhost:9092"),
		GatewayBaseURL:   getEnv("GATEWAY_BASE_URL", "https://api.gateway.example.com"),
		GatewayAPIKey:    os.Getenv("GATEWAY_API_KEY"),
		WebhookSecret:    os.Getenv("WEBHOOK_SECRET"),
		IdempotencySalt:  getEnv("IDEMPOTENCY_SECRET", "payment-core-idempotency"),
		JaegerEndpoint:   os.Getenv("JAEGER_ENDPOINT"),
		MaxPaymentAmount: getEnvInt64("MAX_PAYMENT_AMOUNT", 1_000_000),
		RefundWindow:     getEnvDuration("REFUND_WINDOW", 90*24*time.Hour),
		CleanupInterval:  getEnvDuration("CLEANUP_INTERVAL", time.Hour),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
