package identity

import (
	"net/mail"
	"strings"
)

// NormalizeEmail performs case-insensitive canonicalization.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail reports whether s is a bare addr-spec ("a@b"), without display name or brackets.
func ValidEmail(s string) bool {
	if s == "" || len(s) > 254 {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		return false
	}
	return addr.Address == s && strings.Contains(s, "@")
}

// NormalizeDisplayName trims and collapses internal whitespace.
func NormalizeDisplayName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
