package drop

import "errors"

var (
	// ErrLinkInvalidOrExpired is the single outcome of a failed consume, whatever the reason.
	ErrLinkInvalidOrExpired = errors.New("link invalid or expired")

	// ErrConfig is returned for invalid drop configuration.
	ErrConfig = errors.New("drop: invalid config")
)
