package api

import (
	"net/http"
	"testing"
)

func TestLoadConfigFromEnv_Defaults(t *testing.T) {
	cfg := LoadConfigFromEnv()
	if cfg != DefaultConfig() {
		t.Fatalf("defaults = %+v, want %+v", cfg, DefaultConfig())
	}
}

func TestLoadConfigFromEnv_Overrides(t *testing.T) {
	t.Setenv("VANISH_API_TRUST_PROXY", "true")
	t.Setenv("VANISH_COOKIE_NAME", "vanish_sid")
	t.Setenv("VANISH_COOKIE_DOMAIN", "example.com")
	t.Setenv("VANISH_COOKIE_SECURE", "false")
	t.Setenv("VANISH_COOKIE_SAMESITE", "Strict")

	cfg := LoadConfigFromEnv()
	if !cfg.TrustProxy || cfg.CookieName != "vanish_sid" || cfg.CookieDomain != "example.com" {
		t.Fatalf("unexpected cfg: %+v", cfg)
	}
	if cfg.CookieSecure || cfg.CookieSameSite != http.SameSiteStrictMode {
		t.Fatalf("cookie attrs: secure=%v samesite=%v", cfg.CookieSecure, cfg.CookieSameSite)
	}
}

func TestLoadConfigFromEnv_SameSiteNoneForcesSecure(t *testing.T) {
	t.Setenv("VANISH_COOKIE_SECURE", "false")
	t.Setenv("VANISH_COOKIE_SAMESITE", "none")
	t.Setenv("VANISH_API_MAX_BODY_BYTES", "10")

	cfg := LoadConfigFromEnv()
	if !cfg.CookieSecure {
		t.Fatalf("SameSite=None must force Secure")
	}
	if cfg.MaxBodyBytes != DefaultConfig().MaxBodyBytes {
		t.Fatalf("MaxBodyBytes = %d, want default", cfg.MaxBodyBytes)
	}
}
