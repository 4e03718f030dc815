package domain

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrInvalidProfile = errors.New("invalid business profile")
	ErrQuotaExceeded  = errors.New("quota exceeded")
	ErrJobTerminal    = errors.New("job already in terminal state")
)
