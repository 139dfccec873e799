package app

import (
	"errors"

	"vanish/cmd/security/token"
)

// ValidateSecurityConfig enforces the digest policy at startup. It validates through the same
// package that computes session and invite digests.
func ValidateSecurityConfig(cfg Config) error {
	if !cfg.RequireTokenHMAC {
		return nil
	}

	if _, err := token.HMACKeyFromEnv(32); err != nil {
		switch {
		case errors.Is(err, token.ErrHMACKeyMissing):
			return errors.New("security policy: VANISH_REQUIRE_TOKEN_HMAC=true but VANISH_TOKEN_HMAC_KEY is missing")
		case errors.Is(err, token.ErrHMACKeyTooShort):
			return errors.New("security policy: VANISH_REQUIRE_TOKEN_HMAC=true but VANISH_TOKEN_HMAC_KEY is too short (min 32 bytes)")
		default:
			return err
		}
	}

	if !token.HMACEnabled() {
		return errors.New("security policy: VANISH_REQUIRE_TOKEN_HMAC=true but token digests are not in HMAC mode")
	}
	return nil
}
