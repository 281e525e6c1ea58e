package errors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapModelError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"cancellation passes through", context.Canceled, context.Canceled},
		{"deadline is unavailable", context.DeadlineExceeded, ErrModelUnavailable},
		{"rate limit is unavailable", errors.New("429: rate limit exceeded"), ErrModelUnavailable},
		{"connection refused is unavailable", errors.New("dial tcp: connection refused"), ErrModelUnavailable},
		{"bad request is invalid input", errors.New("400 bad request"), ErrInvalidInput},
		{"garbage defaults to unavailable", errors.New("mystery failure"), ErrModelUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapModelError(tt.err)
			if tt.want == nil {
				if got != nil {
					t.Fatalf("MapModelError() = %v, want nil", got)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("MapModelError() = %v, want category %v", got, tt.want)
			}
		})
	}
}

func TestIsRetryable(t *testing.T) {
	if IsRetryable(nil) {
		t.Error("nil should not be retryable")
	}
	if IsRetryable(context.Canceled) {
		t.Error("cancellation should not be retryable")
	}
	if !IsRetryable(fmt.Errorf("wrapped: %w", ErrModelUnavailable)) {
		t.Error("model unavailable should be retryable")
	}
	if !IsRetryable(Transient("flaky")) {
		t.Error("transient should be retryable")
	}
	if IsRetryable(InvalidInput("bad args")) {
		t.Error("invalid input should not be retryable")
	}
}
