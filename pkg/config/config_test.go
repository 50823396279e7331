package config

import (
	"strings"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTPAddr == "" {
		t.Fatal("HTTPAddr must have a default")
	}
	if cfg.Environment != EnvDevelopment {
		t.Fatalf("default environment = %q, want development", cfg.Environment)
	}
	if cfg.EventMaxReceiveCount < 1 {
		t.Fatalf("EventMaxReceiveCount = %d", cfg.EventMaxReceiveCount)
	}
	if cfg.EventBatchSize < 1 {
		t.Fatalf("EventBatchSize = %d", cfg.EventBatchSize)
	}
}

func TestLoad_RejectsInvalidBounds(t *testing.T) {
	t.Setenv("EVENT_MAX_RECEIVE_COUNT", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero max receive count")
	}
}

func TestLoad_RejectsInvalidBatchSize(t *testing.T) {
	t.Setenv("EVENT_BATCH_SIZE", "-1")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for negative batch size")
	}
}

func TestValidateForProduction(t *testing.T) {
	t.Run("non-production is a no-op", func(t *testing.T) {
		cfg := &Config{Environment: EnvDevelopment, LogLevel: "debug", CORSAllowedOrigins: "*"}
		if err := ValidateForProduction(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("production rejects debug logging", func(t *testing.T) {
		cfg := &Config{Environment: EnvProduction, LogLevel: "debug", CORSAllowedOrigins: "https://example.com"}
		err := ValidateForProduction(cfg)
		if err == nil || !strings.Contains(err.Error(), "LOG_LEVEL") {
			t.Fatalf("expected LOG_LEVEL error, got %v", err)
		}
	})

	t.Run("production rejects wildcard CORS", func(t *testing.T) {
		cfg := &Config{Environment: EnvProduction, LogLevel: "info", CORSAllowedOrigins: "*"}
		err := ValidateForProduction(cfg)
		if err == nil || !strings.Contains(err.Error(), "CORS") {
			t.Fatalf("expected CORS error, got %v", err)
		}
	})

	t.Run("sane production config passes", func(t *testing.T) {
		cfg := &Config{Environment: EnvProduction, LogLevel: "info", CORSAllowedOrigins: "https://example.com"}
		if err := ValidateForProduction(cfg); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
