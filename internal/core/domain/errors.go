package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidStateTransition means a status update was attempted on a row
	// that is not in the expected state (e.g. completing a non-processing
	// event). Under correct claim discipline this should never fire.
	ErrInvalidStateTransition = errors.New("invalid event state transition")

	// ErrStoreUnavailable wraps persistence failures. The orchestrator treats
	// it as fatal for the current pass.
	ErrStoreUnavailable = errors.New("event store unavailable")

	// ErrNoRoute means the event type has no backend route. Routing is a
	// property of the type, so this failure is permanent.
	ErrNoRoute = errors.New("no route for event type")
)

// ValidationError rejects a malformed intake payload before it enters the queue.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// VerificationError is a transient verifier failure. It counts against the
// event's attempt ceiling and is retried on a later pass.
type VerificationError struct {
	Reason string
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verification failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("verification failed: %s", e.Reason)
}

func (e *VerificationError) Unwrap() error { return e.Err }

// BackendSubmissionError is a transient backend reporting failure. The update
// is an idempotent PUT, so the event stays retryable.
type BackendSubmissionError struct {
	Endpoint string
	Err      error
}

func (e *BackendSubmissionError) Error() string {
	return fmt.Sprintf("backend submission to %s failed: %v", e.Endpoint, e.Err)
}

func (e *BackendSubmissionError) Unwrap() error { return e.Err }
