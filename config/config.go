package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string // default: 8080

	// Database
	PostgresDSN string

	// Cache / rate-limit counters
	RedisAddr string

	// Inference backend
	BedrockEndpoint string
	BedrockAPIKey   string

	// Models
	DefaultModel string // alias resolved when a request omits "model"

	// Rate limiting
	RateLimitRPM int // per-team fallback, requests per minute

	// Auth
	AuthCacheTTLSeconds int    // read-through credential cache, seconds
	AdminToken          string // guards /admin/keys; empty disables the routes

	// Usage retention
	UsageRetentionDays int

	// Observability
	OTELExporterType     string // "stdout" or "otlp"
	OTELExporterEndpoint string // default: "localhost:4317"
}

func Load() (*Config, error) {
	// Load .env file if present (non-fatal if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", "8080"),
		PostgresDSN:          os.Getenv("POSTGRES_DSN"),
		RedisAddr:            os.Getenv("REDIS_ADDR"),
		BedrockEndpoint:      os.Getenv("BEDROCK_ENDPOINT"),
		BedrockAPIKey:        os.Getenv("BEDROCK_API_KEY"),
		DefaultModel:         getEnv("DEFAULT_MODEL", "claude-3-haiku"),
		AdminToken:           os.Getenv("ADMIN_TOKEN"),
		OTELExporterType:     getEnv("OTEL_EXPORTER_TYPE", "stdout"),
		OTELExporterEndpoint: getEnv("OTEL_EXPORTER_ENDPOINT", "localhost:4317"),
	}

	var err error
	if cfg.RateLimitRPM, err = getEnvInt("RATE_LIMIT_RPM", 60); err != nil {
		return nil, err
	}
	if cfg.AuthCacheTTLSeconds, err = getEnvInt("AUTH_CACHE_TTL_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.UsageRetentionDays, err = getEnvInt("USAGE_RETENTION_DAYS", 90); err != nil {
		return nil, err
	}

	// Validation
	if cfg.PostgresDSN == "" {
		return nil, fmt.Errorf("POSTGRES_DSN is required")
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("REDIS_ADDR is required")
	}
	if cfg.BedrockEndpoint == "" {
		return nil, fmt.Errorf("BEDROCK_ENDPOINT is required")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}
