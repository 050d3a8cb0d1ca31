package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"STORE_MODE", "AWAIT_PERSIST", "API_RATE_LIMIT_RPS", "STORE_TIMEOUT", "PUBLIC_FILE_BASE_URL", "NATS_SUBJECT"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.StoreMode != StoreModeHTTP {
		t.Fatalf("expected default store mode http, got %q", cfg.StoreMode)
	}
	if cfg.AwaitPersist {
		t.Fatalf("expected AwaitPersist to default to false")
	}
	if cfg.APIRateLimitRPS != 50 {
		t.Fatalf("expected default rps 50, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.StoreTimeout != 15*time.Second {
		t.Fatalf("expected default store timeout 15s, got %s", cfg.StoreTimeout)
	}
	if cfg.NATSSubject != "bills.events" {
		t.Fatalf("expected default subject bills.events, got %q", cfg.NATSSubject)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_MODE", "Mock")
	t.Setenv("AWAIT_PERSIST", "true")
	t.Setenv("STORE_TIMEOUT", "3s")
	t.Setenv("PUBLIC_FILE_BASE_URL", "https://bills.example.test/")
	t.Setenv("BREAKER_FAILURE_RATIO", "0.25")

	cfg := Load()
	if cfg.StoreMode != StoreModeMock {
		t.Fatalf("expected mock store mode, got %q", cfg.StoreMode)
	}
	if !cfg.AwaitPersist {
		t.Fatalf("expected AwaitPersist override")
	}
	if cfg.StoreTimeout != 3*time.Second {
		t.Fatalf("expected 3s timeout, got %s", cfg.StoreTimeout)
	}
	if cfg.PublicFileBaseURL != "https://bills.example.test" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.PublicFileBaseURL)
	}
	if cfg.BreakerFailureRatio != 0.25 {
		t.Fatalf("expected ratio 0.25, got %v", cfg.BreakerFailureRatio)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("STORE_MODE", "carrier-pigeon")
	t.Setenv("API_RATE_LIMIT_BURST", "many")
	t.Setenv("RETRY_MAX_BACKOFF", "-1s")

	cfg := Load()
	if cfg.StoreMode != StoreModeHTTP {
		t.Fatalf("expected fallback store mode, got %q", cfg.StoreMode)
	}
	if cfg.APIRateLimitBurst != 100 {
		t.Fatalf("expected fallback burst 100, got %d", cfg.APIRateLimitBurst)
	}
	if cfg.RetryMaxBackoff != time.Second {
		t.Fatalf("expected fallback backoff 1s, got %s", cfg.RetryMaxBackoff)
	}
}
