package errors

import (
	"errors"
)

// Sentinel errors for different categories
var (
	// ErrInvalidInput - invalid input (tool arguments failing schema validation, malformed queries)
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound - resource not found (unknown tool name, missing registry entry)
	ErrNotFound = errors.New("not found")

	// ErrDuplicateTool - tool name already present in the catalog
	ErrDuplicateTool = errors.New("duplicate tool name")

	// ErrModelUnavailable - model backend unreachable or timed out; the caller decides retry policy
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrTransient - transient error (rate limits, network hiccups) worth retrying with backoff
	ErrTransient = errors.New("transient error")

	// ErrInvalidModelOutput - model returned malformed structured output
	ErrInvalidModelOutput = errors.New("invalid model output")

	// ErrInternal - internal error (generic message shown interactively)
	ErrInternal = errors.New("internal error")
)
