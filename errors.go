package revali

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure scenarios
var (
	// ErrCancelled is returned when a fetch is aborted by its cancellation token
	// or an external signal.
	ErrCancelled = errors.New("revali: fetch cancelled")

	// ErrTimeout is returned when a fetch exceeds its configured timeout.
	ErrTimeout = errors.New("revali: fetch timed out")

	// ErrNoEntry is returned when an operation requires a cache entry that
	// does not exist.
	ErrNoEntry = errors.New("revali: no cache entry")

	// ErrClosed is returned when an operation is attempted on a closed engine.
	ErrClosed = errors.New("revali: engine closed")
)

// Error type constants used in EngineError.Type.
const (
	ErrorTypeProducer  = "Producer"
	ErrorTypeCancelled = "Cancelled"
	ErrorTypeTimeout   = "Timeout"
	ErrorTypeMutate    = "Mutate"
	ErrorTypeInternal  = "Internal"
)

// EngineError represents an error from the engine, carrying the key and
// attempt context of the operation that produced it.
type EngineError struct {
	Type       string
	Message    string
	Key        string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
	Cause      error
}

// Error implements error interface.
func (e *EngineError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Key != "" {
		msg = fmt.Sprintf("[%s] %s", e.Key, msg)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EngineError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *EngineError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*EngineError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// IsCancellation reports whether err represents a cancellation outcome:
// aborted by a cancellation token, a timeout, or an external signal.
// Cancellation outcomes are never retried, never cached and never broadcast
// to subscribers; they surface only to the originating caller.
func IsCancellation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCancelled) || errors.Is(err, ErrTimeout) {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var engErr *EngineError
	if errors.As(err, &engErr) {
		return engErr.Type == ErrorTypeCancelled || engErr.Type == ErrorTypeTimeout
	}
	return false
}

// normalizeError coerces an arbitrary recovered value into an error.
// Producers that panic with a non-error value yield an EngineError carrying
// the string form of the panic, stamped with the caller's clock reading.
func normalizeError(key string, v any, now time.Time) error {
	switch err := v.(type) {
	case nil:
		return nil
	case error:
		return err
	default:
		return &EngineError{
			Type:      ErrorTypeProducer,
			Message:   fmt.Sprint(v),
			Key:       key,
			Timestamp: now,
		}
	}
}
