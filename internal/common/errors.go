// Package common provides shared utilities and types used across the application.
package common

import (
	"context"
	"errors"
)

// Common application errors.
var (
	// Catalog errors are fatal at load time.
	ErrInvalidCatalog  = errors.New("invalid catalog")
	ErrCatalogNotFound = errors.New("catalog not found")

	// Decision errors are fatal for the document's pipeline run.
	ErrSchemaValidation  = errors.New("schema validation failed")
	ErrUnknownDepartment = errors.New("unknown department")

	// Reasoning-service errors degrade to the heuristic decision.
	ErrLLMUnavailable = errors.New("reasoning service unavailable")
	ErrMaxRetries     = errors.New("max retries exceeded")

	// Configuration errors.
	ErrMissingConfig = errors.New("missing configuration")
	ErrInvalidConfig = errors.New("invalid configuration")
)

// RetryableError wraps an error with retry-specific metadata.
type RetryableError struct {
	Err       error
	Retryable bool
}

func (e *RetryableError) Error() string {
	return e.Err.Error()
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable determines if an error should trigger a retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrLLMUnavailable) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var retryableErr *RetryableError
	if errors.As(err, &retryableErr) {
		return retryableErr.Retryable
	}

	return false
}
