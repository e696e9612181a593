package domain

import (
	"errors"
	"fmt"
)

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrNoBackend is returned by the dispatcher when no adapter is registered
// for the committed route.
var ErrNoBackend = errors.New("no backend registered for route")

// ErrAwaitingReply is returned when a new turn is started on a session that
// has a suspended turn waiting for the user's clarification reply.
var ErrAwaitingReply = errors.New("session is awaiting a clarification reply")

// ErrNotAwaitingReply is returned when a reply arrives for a session that
// has no suspended turn.
var ErrNotAwaitingReply = errors.New("session is not awaiting a reply")

// ErrorKind classifies a turn failure for the propagation policy.
type ErrorKind string

const (
	// KindClassifierUnavailable marks a classifier that could not be reached.
	KindClassifierUnavailable ErrorKind = "classifier_unavailable"
	// KindClassifierMalformed marks a structured-output parse failure. Retryable.
	KindClassifierMalformed ErrorKind = "classifier_malformed"
	// KindBackendRetryable marks a transient or validation failure of a backend.
	KindBackendRetryable ErrorKind = "backend_retryable"
	// KindBackendFatal marks an unrecoverable backend failure.
	KindBackendFatal ErrorKind = "backend_fatal"
	// KindRateLimited marks a backend refusal due to rate limiting. Retryable.
	KindRateLimited ErrorKind = "rate_limited"
	// KindSynthesisFailure marks a synthesis failure. Terminal, never retried.
	KindSynthesisFailure ErrorKind = "synthesis_failure"
	// KindTurnTimeout marks the turn-level deadline expiring.
	KindTurnTimeout ErrorKind = "turn_timeout"
	// KindLoopBoundExceeded marks a clarification or retry counter exceeding
	// its bound. Forces fallback, never a crash.
	KindLoopBoundExceeded ErrorKind = "loop_bound_exceeded"
)

// TurnError is the error shape every adapter reports through. The Retryable
// flag drives the dispatcher's retry policy without the dispatcher knowing
// anything adapter-specific.
type TurnError struct {
	Kind      ErrorKind
	Reason    string
	Retryable bool
	Cause     error
}

func (e *TurnError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Reason, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
}

func (e *TurnError) Unwrap() error { return e.Cause }

// Retryable reports whether err is a TurnError marked retryable.
// Non-TurnError values are treated as fatal.
func Retryable(err error) bool {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Retryable
	}
	return false
}

// KindOf extracts the error kind, defaulting to backend-fatal for untyped errors.
func KindOf(err error) ErrorKind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindBackendFatal
}

// NewRetryable builds a retryable backend error.
func NewRetryable(reason string, cause error) *TurnError {
	return &TurnError{Kind: KindBackendRetryable, Reason: reason, Retryable: true, Cause: cause}
}

// NewFatal builds a fatal backend error.
func NewFatal(reason string, cause error) *TurnError {
	return &TurnError{Kind: KindBackendFatal, Reason: reason, Cause: cause}
}

// NewRateLimited builds a rate-limit error, reported distinctly from network
// failures so hosts can back off instead of failing over.
func NewRateLimited(reason string, cause error) *TurnError {
	return &TurnError{Kind: KindRateLimited, Reason: reason, Retryable: true, Cause: cause}
}
