package config

import (
	"fmt"
	"strings"
	"time"
)

// DurationOrDefault parses a duration config value (timeouts, retry backoff),
// falling back to defaultValue when the value is empty. An unparseable value
// is an error, not a silent fallback.
func DurationOrDefault(value string, defaultValue string) (time.Duration, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		candidate = strings.TrimSpace(defaultValue)
	}
	if candidate == "" {
		return 0, fmt.Errorf("no duration value configured")
	}

	d, err := time.ParseDuration(candidate)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", candidate, err)
	}
	return d, nil
}
