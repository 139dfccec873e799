package session

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("VANISH_SESSION_TTL", "")
	t.Setenv("VANISH_SESSION_ID_BYTES", "")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTL != 7*24*time.Hour || cfg.IDBytes != 32 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadConfigFromEnv_InvalidTTL(t *testing.T) {
	t.Setenv("VANISH_SESSION_TTL", "-5m")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for negative duration, got %v", err)
	}
}

func TestLoadConfigFromEnv_InvalidIDBytes(t *testing.T) {
	t.Setenv("VANISH_SESSION_ID_BYTES", "16")
	if _, err := LoadConfigFromEnv(); err != ErrConfig {
		t.Fatalf("expected ErrConfig for small id bytes, got %v", err)
	}
}

func TestLoadConfigFromEnv_Valid(t *testing.T) {
	t.Setenv("VANISH_SESSION_TTL", "48h")
	t.Setenv("VANISH_SESSION_ID_BYTES", "48")

	cfg, err := LoadConfigFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TTL != 48*time.Hour {
		t.Fatalf("ttl mismatch: %v", cfg.TTL)
	}
	if cfg.IDBytes != 48 {
		t.Fatalf("id bytes mismatch: %d", cfg.IDBytes)
	}
}
