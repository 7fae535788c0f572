// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters and configuration
//   - Venue errors (200-299): Transient, not-found and rejection classes reported by the venue
//   - Order lifecycle errors (500-599): Submission, cancellation, polling and reconciliation
//   - Engine errors (600-699): Startup and run loop failures
//   - Journal errors (700-799): Event journal persistence
//
// The venue error classes drive the engine's behaviour:
//
//	errors.IsTransient(err) // retried by the backoff wrapper
//	errors.IsNotFound(err)  // idempotent success for cancel, state loss for polling
//	errors.IsRejected(err)  // terminal, never retried
//
// Usage:
//
//	err := errors.Newf(errors.ErrCodeNotFound, "order %s not found", orderID)
//	err := errors.Wrap(errors.ErrCodeTransient, "rate limited", originalErr)
//	if errors.HasCode(err, errors.ErrCodeNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// HasCodeInChain reports whether any *Error in err's chain carries code.
// Unlike HasCode it looks past outer wrappers, so a transient venue error
// wrapped by an order failure is still recognised as transient.
func HasCodeInChain(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}

		if e.Code == code {
			return true
		}

		err = e.Cause
	}

	return false
}

// IsTransient reports whether err belongs to the retryable venue error class.
func IsTransient(err error) bool {
	return HasCodeInChain(err, ErrCodeTransient)
}

// IsNotFound reports whether err says the order or account no longer exists on the venue.
func IsNotFound(err error) bool {
	return HasCodeInChain(err, ErrCodeNotFound)
}

// IsRejected reports whether the venue refused the request for validation reasons.
func IsRejected(err error) bool {
	return HasCodeInChain(err, ErrCodeRejected)
}
