package domain

import (
	"errors"
	"fmt"
)

// Pipeline errors.
var (
	// ErrTransientIO is returned when a capture, scroll or click fails.
	// The detector retries on the next cycle.
	ErrTransientIO = errors.New("transient i/o failure")

	// ErrParseRejected is returned when message text does not yield a signal.
	ErrParseRejected = errors.New("parse rejected")

	// ErrDuplicateSignal is returned when a source message was already ingested.
	ErrDuplicateSignal = errors.New("duplicate signal")

	// ErrAlreadyTerminal is returned when a signal is no longer pending.
	ErrAlreadyTerminal = errors.New("signal already terminal")

	// ErrAlreadyClosed is returned when a trade is no longer open.
	ErrAlreadyClosed = errors.New("trade already closed")

	// ErrNotFound is returned when a lifecycle operation references an unknown id.
	ErrNotFound = errors.New("not found")
)

// ExecutionError wraps a broker-side rejection.
// The signal stays pending so it can be retried.
type ExecutionError struct {
	Ticker string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execute %s: %v", e.Ticker, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// IsExecutionError reports whether err is or wraps an ExecutionError.
func IsExecutionError(err error) bool {
	var execErr *ExecutionError
	return errors.As(err, &execErr)
}
