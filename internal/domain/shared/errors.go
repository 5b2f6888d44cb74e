// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors - rejected before persistence
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrFutureTimestamp = errors.New("timestamp cannot be in the future")
	ErrInvalidFormat   = errors.New("invalid format")

	// State errors - illegal lifecycle moves, state unchanged
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")
	ErrTerminalState   = errors.New("session is in a terminal state")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")
	ErrOptimisticLock         = errors.New("optimistic lock failure")

	// Consistency - a downstream rollup failed; the primary operation
	// still commits and the aggregator is the recovery path
	ErrConsistency = errors.New("consistency warning")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "session", "user", "topic", "progress"
	Op      string // Operation that failed, e.g., "Start", "Complete"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// ConsistencyWarning records a non-fatal rollup failure. The saga collects
// these instead of failing: a completed session is always durably recorded
// even when a statistics rollup partially fails.
type ConsistencyWarning struct {
	Step    string // which rollup step failed, e.g. "topic_stats"
	Message string
	Err     error
}

// Error implements the error interface.
func (w *ConsistencyWarning) Error() string {
	if w.Err != nil {
		return fmt.Sprintf("consistency warning at %s: %s: %v", w.Step, w.Message, w.Err)
	}
	return fmt.Sprintf("consistency warning at %s: %s", w.Step, w.Message)
}

// Unwrap returns the underlying error.
func (w *ConsistencyWarning) Unwrap() error {
	if w.Err != nil {
		return w.Err
	}
	return ErrConsistency
}

// Is implements errors.Is() matching.
func (w *ConsistencyWarning) Is(target error) bool {
	return errors.Is(ErrConsistency, target) || (w.Err != nil && errors.Is(w.Err, target))
}

// NewConsistencyWarning creates a ConsistencyWarning for a failed rollup step.
func NewConsistencyWarning(step, message string, err error) *ConsistencyWarning {
	return &ConsistencyWarning{Step: step, Message: message, Err: err}
}

// User domain errors
var (
	ErrUserNotFound      = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUserAlreadyExists = NewDomainError("user", "Create", ErrAlreadyExists, "user already exists")
	ErrInvalidEmail      = NewDomainError("user", "Validate", ErrInvalidFormat, "invalid email address")
	ErrWeakPassword      = NewDomainError("user", "Validate", ErrInvalidInput, "password must be at least 8 characters")
	ErrInvalidTimezone   = NewDomainError("user", "Validate", ErrInvalidInput, "invalid IANA timezone")
)

// Topic domain errors
var (
	ErrTopicNotFound   = NewDomainError("topic", "Find", ErrNotFound, "topic not found")
	ErrInvalidRating   = NewDomainError("topic", "Validate", ErrValueOutOfRange, "rating must be between 1 and 5")
	ErrInvalidCategory = NewDomainError("topic", "Validate", ErrInvalidInput, "invalid topic category")
)

// Progress domain errors
var (
	ErrProgressNotFound   = NewDomainError("progress", "Find", ErrNotFound, "user progress not found")
	ErrInvalidProgress    = NewDomainError("progress", "Validate", ErrValueOutOfRange, "progress must be between 0 and 100")
	ErrMilestoneNotFound  = NewDomainError("progress", "CompleteMilestone", ErrNotFound, "milestone not found")
	ErrProgressNotesLimit = NewDomainError("progress", "Validate", ErrValueOutOfRange, "notes must be at most 2000 characters")
)

// Session domain errors
var (
	ErrSessionNotFound       = NewDomainError("session", "Find", ErrNotFound, "study session not found")
	ErrSessionNotPlanned     = NewDomainError("session", "Start", ErrStateTransition, "only a planned session can be started")
	ErrSessionNotActive      = NewDomainError("session", "Pause", ErrStateTransition, "only an active session can be paused")
	ErrSessionNotPaused      = NewDomainError("session", "Resume", ErrStateTransition, "only a paused session can be resumed")
	ErrSessionTerminal       = NewDomainError("session", "Transition", ErrTerminalState, "completed and cancelled sessions are immutable")
	ErrInvalidSessionType    = NewDomainError("session", "Validate", ErrInvalidInput, "invalid session type")
	ErrInvalidDuration       = NewDomainError("session", "Validate", ErrValueOutOfRange, "planned duration must be between 1 and 480 minutes")
	ErrSessionNotesLimit     = NewDomainError("session", "Validate", ErrValueOutOfRange, "notes must be at most 1000 characters")
	ErrConcurrentTransition  = NewDomainError("session", "Persist", ErrConcurrentModification, "session was modified by a concurrent request")
	ErrInvalidPauseDuration  = NewDomainError("session", "Resume", ErrNegativeValue, "pause duration cannot be negative")
	ErrInvalidFocusLevel     = NewDomainError("session", "Validate", ErrValueOutOfRange, "average focus level must be between 1 and 10")
	ErrInvalidProductivity   = NewDomainError("session", "Validate", ErrValueOutOfRange, "productivity rating must be between 1 and 5")
	ErrBreakOutsideOfSession = NewDomainError("session", "AddBreak", ErrInvalidInput, "break interval is malformed")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error. Validation errors
// are rejected before anything is persisted.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsStateTransition checks if the error is an illegal lifecycle move.
// The record is left unchanged when this is returned.
func IsStateTransition(err error) bool {
	return errors.Is(err, ErrStateTransition) ||
		errors.Is(err, ErrTerminalState) ||
		errors.Is(err, ErrConcurrentModification)
}

// IsConsistencyWarning checks if the error is a non-fatal rollup failure.
func IsConsistencyWarning(err error) bool {
	return errors.Is(err, ErrConsistency)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
