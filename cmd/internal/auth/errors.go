package auth

import "errors"

// Business outcomes. Messages are shown to callers verbatim and never reveal which check failed.
var (
	ErrAlreadyBootstrapped = errors.New("already bootstrapped")
	ErrInvalidOrUsedInvite = errors.New("invalid or used invite")
	ErrInvalidCredentials  = errors.New("invalid credentials")
)
