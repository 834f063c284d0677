package apperr

import "errors"

var (
	ErrNotFound    = errors.New("not found")
	ErrCancelled   = errors.New("cancelled by user")
	ErrUnavailable = errors.New("service unavailable")
)
