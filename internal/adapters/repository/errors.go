package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound    = errors.New("assessment not found")
	ErrInvalidID   = errors.New("invalid assessment id")
	ErrUnavailable = errors.New("grading backend unavailable")
	ErrClosed      = errors.New("store closed")
	ErrDriver      = errors.New("unsupported cache driver")
)
