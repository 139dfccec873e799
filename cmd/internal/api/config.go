package api

import (
	"net/http"
	"os"
	"strconv"
	"strings"
)

// Config controls HTTP transport behavior and cookie attributes.
type Config struct {
	TrustProxy   bool
	MaxBodyBytes int64

	CookieName     string
	CookiePath     string
	CookieDomain   string
	CookieSecure   bool
	CookieSameSite http.SameSite
}

// DefaultConfig returns the values LoadConfigFromEnv starts from.
func DefaultConfig() Config {
	return Config{
		MaxBodyBytes:   256 << 10,
		CookieName:     "sid",
		CookiePath:     "/",
		CookieSecure:   true,
		CookieSameSite: http.SameSiteLaxMode,
	}
}

// LoadConfigFromEnv loads API config from environment variables with safe defaults.
func LoadConfigFromEnv() Config {
	def := DefaultConfig()
	cfg := Config{
		TrustProxy:     envBool("VANISH_API_TRUST_PROXY", false),
		MaxBodyBytes:   envInt64("VANISH_API_MAX_BODY_BYTES", def.MaxBodyBytes),
		CookieName:     envString("VANISH_COOKIE_NAME", def.CookieName),
		CookiePath:     envString("VANISH_COOKIE_PATH", def.CookiePath),
		CookieDomain:   envString("VANISH_COOKIE_DOMAIN", ""),
		CookieSecure:   envBool("VANISH_COOKIE_SECURE", def.CookieSecure),
		CookieSameSite: parseSameSite(os.Getenv("VANISH_COOKIE_SAMESITE"), def.CookieSameSite),
	}

	// A body must at least fit a maximal drop.
	if cfg.MaxBodyBytes < 64<<10 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	// Browsers drop SameSite=None cookies without Secure.
	if cfg.CookieSameSite == http.SameSiteNoneMode {
		cfg.CookieSecure = true
	}
	return cfg
}

func parseSameSite(v string, def http.SameSite) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "lax":
		return http.SameSiteLaxMode
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return def
	}
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func envInt64(key string, def int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return def
	}
	return n
}
