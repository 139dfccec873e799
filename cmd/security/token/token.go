package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"os"
	"strings"
)

const (
	// HMACEnvKey is the env var name for the digest HMAC secret.
	// #nosec G101 -- not a credential; it's an environment variable name.
	HMACEnvKey = "VANISH_TOKEN_HMAC_KEY"

	// DropBytes is the entropy of public drop tokens (24 base64url chars).
	DropBytes = 18
	// InviteBytes is the entropy of invite secrets (32 base64url chars).
	InviteBytes = 24
	// SessionBytes is the entropy of session ids (43 base64url chars).
	SessionBytes = 32

	// DigestLen is the length of every hex digest produced here.
	DigestLen = 64
)

// New returns nBytes of crypto/rand entropy encoded as unpadded base64url.
func New(nBytes int) (string, error) {
	if nBytes <= 0 {
		nBytes = SessionBytes
	}
	b := make([]byte, nBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashSHA256Hex returns a SHA-256 hex digest of s.
func HashSHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// HashHMACSHA256Hex returns an HMAC-SHA256 hex digest of s using key.
func HashHMACSHA256Hex(s string, key []byte) string {
	m := hmac.New(sha256.New, key)
	_, _ = m.Write([]byte(s))
	return hex.EncodeToString(m.Sum(nil))
}

// HMACKeyFromEnv returns the configured HMAC key bytes (trimmed), enforcing a minimum byte length.
// If the env var is missing/blank -> ErrHMACKeyMissing.
// If too short -> ErrHMACKeyTooShort.
func HMACKeyFromEnv(minBytes int) ([]byte, error) {
	raw := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if raw == "" {
		return nil, ErrHMACKeyMissing
	}
	b := []byte(raw)
	if minBytes > 0 && len(b) < minBytes {
		return nil, ErrHMACKeyTooShort
	}
	return b, nil
}

// HMACEnabled reports whether the env key is present (non-empty after trim).
func HMACEnabled() bool {
	return strings.TrimSpace(os.Getenv(HMACEnvKey)) != ""
}

// Digest is the server-side lookup key for invite secrets and session ids.
// HMAC-SHA256 when VANISH_TOKEN_HMAC_KEY is set, SHA-256 otherwise.
func Digest(secret string) string {
	key := strings.TrimSpace(os.Getenv(HMACEnvKey))
	if key == "" {
		return HashSHA256Hex(secret)
	}
	return HashHMACSHA256Hex(secret, []byte(key))
}
