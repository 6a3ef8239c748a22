package config

import (
	"os"
	"strconv"
	"time"
)

type AppConfig struct {
	HTTPAddr  string
	RedisAddr string
	RedisPass string

	FlutterwaveBaseURL   string
	FlutterwaveSecretKey string
	// WebhookSecretHash is compared against the verif-hash header on
	// incoming gateway webhooks.
	WebhookSecretHash string
	// InternalAPIKey gates the service-to-service payment relay.
	InternalAPIKey string

	NotificationURL     string
	NotificationAPIKey  string
	NotificationTimeout time.Duration

	WorkerCount  int
	PollInterval time.Duration
}

func Load() AppConfig {
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8030"),
		RedisAddr: getEnv("REDIS_ADDR", "redis:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		FlutterwaveBaseURL:   getEnv("FLW_BASE_URL", "https://api.flutterwave.com/v3"),
		FlutterwaveSecretKey: getEnv("FLW_SECRET_KEY", ""),
		WebhookSecretHash:    getEnv("FLW_WEBHOOK_HASH", ""),
		InternalAPIKey:       getEnv("INTERNAL_API_KEY", ""),

		NotificationURL:     getEnv("NOTIFY_URL", ""),
		NotificationAPIKey:  getEnv("NOTIFY_API_KEY", ""),
		NotificationTimeout: getEnvDuration("NOTIFY_TIMEOUT", 5*time.Second),

		WorkerCount:  getEnvInt("PAYMENT_WORKERS", 4),
		PollInterval: getEnvDuration("PAYMENT_POLL_INTERVAL", 5*time.Second),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
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
