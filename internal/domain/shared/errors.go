// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound = errors.New("entity not found")
	ErrConflict = errors.New("conflict")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState    = errors.New("invalid state")
	ErrStateTransition = errors.New("invalid state transition")

	// Concurrency errors
	ErrConcurrentModification = errors.New("concurrent modification detected")

	// Infrastructure errors
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrTimeout            = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "registration", "attendance", "report"
	Op      string // Operation that failed, e.g., "Register", "Cancel"
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

// Directory errors: referenced entities owned by the catalog.
var (
	ErrStudentNotFound     = NewDomainError("student", "Find", ErrNotFound, "student not found")
	ErrEventNotFound       = NewDomainError("event", "Find", ErrNotFound, "event not found")
	ErrInstitutionNotFound = NewDomainError("institution", "Find", ErrNotFound, "institution not found")
)

// Registration lifecycle errors
var (
	ErrRegistrationNotFound   = NewDomainError("registration", "Find", ErrNotFound, "registration not found")
	ErrEventCancelled         = NewDomainError("registration", "Register", ErrInvalidState, "cannot register for cancelled event")
	ErrEventStarted           = NewDomainError("registration", "Register", ErrInvalidState, "cannot register for event that has already started")
	ErrAlreadyRegistered      = NewDomainError("registration", "Register", ErrConflict, "student is already registered for this event")
	ErrAlreadyWaitlisted      = NewDomainError("registration", "Register", ErrConflict, "student is already on the waitlist for this event")
	ErrRegistrationCancelled  = NewDomainError("registration", "Cancel", ErrInvalidState, "registration is already cancelled")
	ErrInvalidRegistrationRow = NewDomainError("registration", "Validate", ErrInvalidInput, "registration requires student and event")
)

// Activity gate errors
var (
	ErrNotRegistered       = NewDomainError("attendance", "Mark", ErrInvalidState, "student is not registered for this event")
	ErrAttendanceExists    = NewDomainError("attendance", "Mark", ErrConflict, "attendance already marked for this student")
	ErrAttendanceNotFound  = NewDomainError("attendance", "CheckOut", ErrNotFound, "attendance not found")
	ErrAlreadyCheckedOut   = NewDomainError("attendance", "CheckOut", ErrConflict, "student already checked out")
	ErrInvalidAttendance   = NewDomainError("attendance", "Validate", ErrValidation, "invalid attendance status")
	ErrNotAttended         = NewDomainError("feedback", "Submit", ErrInvalidState, "student must attend the event to submit feedback")
	ErrFeedbackExists      = NewDomainError("feedback", "Submit", ErrConflict, "feedback already submitted for this event")
	ErrInvalidRating       = NewDomainError("feedback", "Validate", ErrValidation, "rating must be between 1 and 5")
	ErrCheckOutBeforeEntry = NewDomainError("attendance", "CheckOut", ErrValidation, "check-out cannot precede check-in")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict checks if the error is a duplicate submission or registration.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsInvalidState checks if the operation was rejected by the lifecycle state.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState) || errors.Is(err, ErrStateTransition)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsRetryable checks if the operation can be retried.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrServiceUnavailable) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrConcurrentModification)
}
