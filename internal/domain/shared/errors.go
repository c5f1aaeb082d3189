// Package shared contains common domain types, errors, and events
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

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Authorization errors
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrForbidden        = errors.New("forbidden")

	// Concurrency errors
	ErrConflict = errors.New("concurrent modification detected")

	// Reward propagation
	ErrPartialPropagation = errors.New("reward propagation partially failed")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "leaderboard", "achievement"
	Op      string // Operation that failed, e.g., "RecordEvent", "Unlock"
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

// Validation builds a validation error for the given domain and operation.
func Validation(domain, op, message string) *DomainError {
	return NewDomainError(domain, op, ErrValidation, message)
}

// NotAuthenticated builds the error returned when no acting user is present.
func NotAuthenticated(domain, op string) *DomainError {
	return NewDomainError(domain, op, ErrNotAuthenticated, "no active user context")
}

// Ledger domain errors
var (
	ErrStatisticsNotFound = NewDomainError("ledger", "RecordEvent", ErrNotFound, "statistics row missing for user")
	ErrDuplicateEvent     = NewDomainError("ledger", "RecordEvent", ErrAlreadyExists, "event with this idempotency key already recorded")
	ErrLostUpdate         = NewDomainError("ledger", "RecordEvent", ErrConflict, "concurrent write to user statistics")
)

// User domain errors
var (
	ErrUserNotFound     = NewDomainError("user", "Find", ErrNotFound, "user not found")
	ErrUsernameTaken    = NewDomainError("user", "Create", ErrAlreadyExists, "username already taken")
	ErrInvalidUserID    = NewDomainError("user", "Validate", ErrInvalidID, "invalid user ID")
	ErrEmptyDisplayName = NewDomainError("user", "Validate", ErrEmptyValue, "display name cannot be empty")
	ErrInvalidUsername  = NewDomainError("user", "Validate", ErrInvalidFormat, "username must be 3-32 characters of [a-z0-9_]")
)

// Content domain errors
var (
	ErrContentNotFound    = NewDomainError("content", "Find", ErrNotFound, "content not found")
	ErrInvalidContentType = NewDomainError("content", "Validate", ErrInvalidInput, "unknown content type")
)

// Social domain errors
var (
	ErrFriendshipExists   = NewDomainError("social", "Request", ErrAlreadyExists, "friendship already exists")
	ErrFriendshipNotFound = NewDomainError("social", "Find", ErrNotFound, "friendship not found")
	ErrSelfFriendship     = NewDomainError("social", "Request", ErrInvalidInput, "cannot befriend self")
)

// Leaderboard domain errors
var (
	ErrInvalidScope     = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "scope must be global or friends")
	ErrInvalidPeriod    = NewDomainError("leaderboard", "Validate", ErrInvalidInput, "period must be weekly, monthly or all_time")
	ErrSnapshotNotFound = NewDomainError("leaderboard", "FindSnapshot", ErrNotFound, "snapshot not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error is an "already exists" error.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsConflict checks if the error is a lost-update conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsNotAuthenticated checks if the error is caused by a missing acting user.
func IsNotAuthenticated(err error) bool {
	return errors.Is(err, ErrNotAuthenticated)
}

// IsForbidden checks if the acting user may not perform the operation.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// PropagationPartialFailure reports that the consumer side of a reward was
// credited but the creator side was not.
type PropagationPartialFailure struct {
	ConsumerID string
	CreatorID  string
	ContentID  string
	Err        error
}

func (e *PropagationPartialFailure) Error() string {
	return fmt.Sprintf("creator reward for %s (content %s) failed after crediting %s: %v",
		e.CreatorID, e.ContentID, e.ConsumerID, e.Err)
}

func (e *PropagationPartialFailure) Unwrap() error { return e.Err }

func (e *PropagationPartialFailure) Is(target error) bool {
	return target == ErrPartialPropagation
}
