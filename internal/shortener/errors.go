package shortener

import (
	"errors"
	"fmt"
)

// ErrNegative is wrapped by a ConfigurationError for fields that must be >= 0.
var ErrNegative = errors.New("must be greater than or equal to 0")

// ConfigurationError is returned before any network work when the settings
// in effect for a call are unusable.
type ConfigurationError struct {
	Field string // Settings field name, e.g. "max_retries"
	Value any    // Offending value
	Err   error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s (%v): %v", e.Field, e.Value, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
