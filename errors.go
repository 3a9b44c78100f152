package latsieve

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig is wrapped by every ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrClosed is returned when operating on a closed sieve.
	ErrClosed = errors.New("sieve closed")

	// ErrRunning is returned when Run, Export or Restore is called while a run
	// is in progress.
	ErrRunning = errors.New("sieve is running")

	// ErrFinished is returned by Run after the sieve reached a termination
	// condition.
	ErrFinished = errors.New("sieve already finished")
)

// ConfigError reports an invalid option value.
type ConfigError struct {
	Field  string
	Reason string
	cause  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Unwrap returns ErrInvalidConfig together with the underlying cause, if any.
func (e *ConfigError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrInvalidConfig, e.cause}
	}
	return []error{ErrInvalidConfig}
}

func configErrorf(field string, cause error, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Reason: fmt.Sprintf(format, args...), cause: cause}
}

// TransitionError reports an operation that is not allowed in the current state.
type TransitionError struct {
	Op    string
	State State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: not allowed in state %s", e.Op, e.State)
}
