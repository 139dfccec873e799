package drop

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RevokeScope selects who may revoke a drop.
type RevokeScope string

const (
	// RevokeAny lets any authenticated caller revoke any drop.
	RevokeAny RevokeScope = "any"
	// RevokeOwner limits revocation to owners/admins and the drop's creator.
	RevokeOwner RevokeScope = "owner"
)

// Config bounds drop creation.
type Config struct {
	MaxViewsLimit int
	MaxTTL        time.Duration
	MaxTitleRunes int
	MaxBodyBytes  int

	// LinkPrefix is prepended to tokens to build public links.
	LinkPrefix  string
	RevokeScope RevokeScope

	// TokenAttempts bounds regeneration after a token collision.
	TokenAttempts int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxViewsLimit: 100,
		MaxTTL:        30 * 24 * time.Hour,
		MaxTitleRunes: 200,
		MaxBodyBytes:  64 << 10,
		LinkPrefix:    "/d/",
		RevokeScope:   RevokeAny,
		TokenAttempts: 3,
	}
}

// LoadConfigFromEnv overlays environment variables on DefaultConfig.
//
// Optional:
//   - VANISH_DROP_MAX_VIEWS
//   - VANISH_DROP_MAX_TTL (Go duration)
//   - VANISH_DROP_MAX_TITLE_RUNES
//   - VANISH_DROP_MAX_BODY_BYTES
//   - VANISH_DROP_LINK_PREFIX
//   - VANISH_DROP_REVOKE_SCOPE (any|owner)
//
// Returns ErrConfig if a value is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	ints := []struct {
		key string
		dst *int
	}{
		{"VANISH_DROP_MAX_VIEWS", &cfg.MaxViewsLimit},
		{"VANISH_DROP_MAX_TITLE_RUNES", &cfg.MaxTitleRunes},
		{"VANISH_DROP_MAX_BODY_BYTES", &cfg.MaxBodyBytes},
	}
	for _, it := range ints {
		v := strings.TrimSpace(os.Getenv(it.key))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return Config{}, ErrConfig
		}
		*it.dst = n
	}

	if v := strings.TrimSpace(os.Getenv("VANISH_DROP_MAX_TTL")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.MaxTTL = d
	}

	if v := strings.TrimSpace(os.Getenv("VANISH_DROP_LINK_PREFIX")); v != "" {
		cfg.LinkPrefix = v
	}

	if v := strings.TrimSpace(os.Getenv("VANISH_DROP_REVOKE_SCOPE")); v != "" {
		cfg.RevokeScope = RevokeScope(strings.ToLower(v))
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the bounds.
func (c Config) Validate() error {
	if c.MaxViewsLimit < 1 || c.MaxTTL <= 0 || c.MaxTitleRunes < 1 || c.MaxBodyBytes < 1 {
		return ErrConfig
	}
	if c.RevokeScope != RevokeAny && c.RevokeScope != RevokeOwner {
		return ErrConfig
	}
	if c.TokenAttempts < 1 {
		return ErrConfig
	}
	return nil
}
