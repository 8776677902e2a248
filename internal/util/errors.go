package util

import "errors"

// Sentinel errors for common failure modes
var (
	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidInput indicates user supplied input that cannot be parsed
	ErrInvalidInput = errors.New("invalid input")

	// ErrCancelled indicates the operation was stopped by its context
	ErrCancelled = errors.New("cancelled")
)
