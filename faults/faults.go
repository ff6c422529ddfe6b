// Package faults defines the error categories surfaced by the batch and
// traceability engine. Callers branch on the category with errors.Is and
// read details with errors.As; the HTTP layer maps each category to a
// distinct status code and error kind.
package faults

import (
	"errors"
	"fmt"
)

// Category sentinels. Every error produced by the engine wraps exactly one.
var (
	// ErrConfiguration marks a missing or ambiguous chemical rule. It is
	// never silently defaulted: an unresolvable rule makes the tree unsafe
	// until an operator fixes the registry.
	ErrConfiguration = errors.New("configuration error")

	// ErrValidation marks rejected input (grade-sum mismatch, missing
	// required fields).
	ErrValidation = errors.New("validation error")

	// ErrInvalidState marks a transition attempted from a state that
	// forbids it, such as a double check-in.
	ErrInvalidState = errors.New("invalid state")

	// ErrConflict marks a membership race lost during batch creation.
	ErrConflict = errors.New("conflict")

	// ErrNotSafe marks identifier issuance attempted on an unsafe batch.
	ErrNotSafe = errors.New("not safe")

	// ErrNotFound marks an unknown request, batch, identifier or code.
	ErrNotFound = errors.New("not found")
)

// Kind returns the wire-level kind string for the error's category, or
// "internal" when the error belongs to none.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrNotSafe):
		return "not_safe"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}

// Configuration builds a configuration error.
func Configuration(format string, args ...any) error {
	return wrap(ErrConfiguration, format, args...)
}

// Validation builds a validation error.
func Validation(format string, args ...any) error {
	return wrap(ErrValidation, format, args...)
}

// InvalidState builds an invalid-state error.
func InvalidState(format string, args ...any) error {
	return wrap(ErrInvalidState, format, args...)
}

// Conflict builds a conflict error.
func Conflict(format string, args ...any) error {
	return wrap(ErrConflict, format, args...)
}

// NotFound builds a not-found error.
func NotFound(format string, args ...any) error {
	return wrap(ErrNotFound, format, args...)
}

func wrap(category error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", category, fmt.Sprintf(format, args...))
}

// NotSafeError carries the safety verdict that blocked an operation, so
// farmer-facing flows can tell a waiting period from a permanent ban.
type NotSafeError struct {
	DaysRemaining int
	Banned        bool
	Chemical      string
	Reason        string
}

func (e *NotSafeError) Error() string {
	if e.Banned {
		return fmt.Sprintf("not safe: banned chemical %s applied", e.Chemical)
	}
	if e.Reason != "" {
		return "not safe: " + e.Reason
	}
	return fmt.Sprintf("not safe: %d day(s) remaining", e.DaysRemaining)
}

// Unwrap ties NotSafeError to the ErrNotSafe category.
func (e *NotSafeError) Unwrap() error { return ErrNotSafe }
