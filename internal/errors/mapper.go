package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MapModelError maps a raw provider/transport failure to the kabu error taxonomy.
// Anything that smells like an unreachable or overloaded backend becomes
// ErrModelUnavailable so the loop can apply its bounded retry.
func MapModelError(err error) error {
	if err == nil {
		return nil
	}

	// Propagate cancellation as-is
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timeout: %w", ErrModelUnavailable)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "rate limit"), strings.Contains(errStr, "quota"), strings.Contains(errStr, "too many requests"):
		return fmt.Errorf("rate limited: %w", ErrModelUnavailable)

	case strings.Contains(errStr, "timeout"), strings.Contains(errStr, "deadline exceeded"):
		return fmt.Errorf("request timeout: %w", ErrModelUnavailable)

	case strings.Contains(errStr, "network"), strings.Contains(errStr, "connection"), strings.Contains(errStr, "unreachable"),
		strings.Contains(errStr, "service unavailable"), strings.Contains(errStr, "bad gateway"), strings.Contains(errStr, "overloaded"):
		return fmt.Errorf("backend unreachable: %w", ErrModelUnavailable)

	case strings.Contains(errStr, "invalid request"), strings.Contains(errStr, "bad request"):
		return fmt.Errorf("invalid request: %w", ErrInvalidInput)

	case strings.Contains(errStr, "malformed json"), strings.Contains(errStr, "invalid json"):
		return fmt.Errorf("invalid model output: %w", ErrInvalidModelOutput)

	default:
		return fmt.Errorf("%v: %w", err, ErrModelUnavailable)
	}
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("%s: %w", message, err)
}

// IsCategory checks if error belongs to specific category
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// NotFound wraps error as not found
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidInput wraps error as invalid input
func InvalidInput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidInput)
}

// DuplicateTool wraps error as a catalog name collision
func DuplicateTool(message string) error {
	return fmt.Errorf("%s: %w", message, ErrDuplicateTool)
}

// Transient wraps error as transient
func Transient(message string) error {
	return fmt.Errorf("%s: %w", message, ErrTransient)
}

// Internal wraps error as internal
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}

// InvalidModelOutput wraps error as malformed model output
func InvalidModelOutput(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidModelOutput)
}

// IsRetryable checks if an error indicates a retry is worthwhile.
// Cancellation never retries.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrModelUnavailable) || errors.Is(err, ErrTransient)
}
