package config

import (
	"strings"
	"testing"
)

func setRequired(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "postgres://localhost/gateway")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("BEDROCK_ENDPOINT", "http://localhost:9000")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DefaultModel != "claude-3-haiku" {
		t.Errorf("Expected default model claude-3-haiku, got %s", cfg.DefaultModel)
	}
	if cfg.RateLimitRPM != 60 {
		t.Errorf("Expected default rate limit 60, got %d", cfg.RateLimitRPM)
	}
	if cfg.AuthCacheTTLSeconds != 30 {
		t.Errorf("Expected default auth cache TTL 30s, got %d", cfg.AuthCacheTTLSeconds)
	}
	if cfg.UsageRetentionDays != 90 {
		t.Errorf("Expected default retention 90 days, got %d", cfg.UsageRetentionDays)
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("RATE_LIMIT_RPM", "120")
	t.Setenv("ADMIN_TOKEN", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != "9090" || cfg.RateLimitRPM != 120 || cfg.AdminToken != "secret" {
		t.Errorf("Overrides not applied: %+v", cfg)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("POSTGRES_DSN", "")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "POSTGRES_DSN") {
		t.Errorf("Expected POSTGRES_DSN error, got %v", err)
	}
}

func TestLoadInvalidInt(t *testing.T) {
	setRequired(t)
	t.Setenv("RATE_LIMIT_RPM", "abc")

	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "RATE_LIMIT_RPM") {
		t.Errorf("Expected RATE_LIMIT_RPM error, got %v", err)
	}
}
