package drop

import (
	"fmt"
	"strings"
)

// Status is derived on read and never stored.
// Precedence: revoked, then expired, then exhausted, then active.
type Status string

const (
	StatusActive    Status = "active"
	StatusExhausted Status = "exhausted"
	StatusExpired   Status = "expired"
	StatusRevoked   Status = "revoked"
)

// ParseStatus parses a status filter value.
func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusExhausted, StatusExpired, StatusRevoked:
		return st, nil
	}
	return "", fmt.Errorf("drop: unknown status %q", s)
}
