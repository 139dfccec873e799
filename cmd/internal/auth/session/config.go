package session

import (
	"os"
	"strconv"
	"time"

	"vanish/cmd/security/token"
)

// Config defines the session lifetime and id entropy.
type Config struct {
	// TTL is how long a freshly minted session stays valid.
	TTL time.Duration

	// IDBytes is the number of random bytes in a session id.
	IDBytes int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		TTL:     7 * 24 * time.Hour,
		IDBytes: token.SessionBytes,
	}
}

// LoadConfigFromEnv loads session configuration from environment variables.
//
// Optional:
//   - VANISH_SESSION_TTL (Go duration)
//   - VANISH_SESSION_ID_BYTES (32..64)
//
// Returns ErrConfig if configuration is invalid.
func LoadConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("VANISH_SESSION_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, ErrConfig
		}
		cfg.TTL = d
	}

	if v := os.Getenv("VANISH_SESSION_ID_BYTES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 32 || n > 64 {
			return Config{}, ErrConfig
		}
		cfg.IDBytes = n
	}

	return cfg, nil
}
