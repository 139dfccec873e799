package invite

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotActive    = errors.New("invite not active")
)
