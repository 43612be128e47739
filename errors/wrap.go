package errors

import (
	"context"
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already a *Error, it wraps it with the new message and keeps its
// code, category, and identifiers.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	// If it's already a structured error, preserve its properties
	var pipeErr *Error
	if errors.As(err, &pipeErr) {
		wrapped := &Error{
			code:        pipeErr.code,
			category:    pipeErr.category,
			message:     message,
			cause:       err,
			metadata:    pipeErr.Metadata(),
			retryable:   pipeErr.retryable,
			characterID: pipeErr.characterID,
			userID:      pipeErr.userID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	// Check for context errors
	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	// Default to internal error for unknown errors
	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// CodeOf extracts the error code from an error chain.
// Returns ErrCodeInternal for unstructured errors and empty for nil.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var pipeErr *Error
	if errors.As(err, &pipeErr) {
		return pipeErr.Code()
	}
	return ErrCodeInternal
}

// IsRetryable reports whether an error chain allows retrying the operation.
// Context cancellation is never retryable; deadline expiry is.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pipeErr *Error
	if errors.As(err, &pipeErr) {
		return pipeErr.Retryable()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	return false
}

// IsCode reports whether any error in the chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	var pipeErr *Error
	if errors.As(err, &pipeErr) {
		return pipeErr.Code() == code
	}
	return false
}

// Is delegates to the standard library for sentinel comparison.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As delegates to the standard library for type assertion across chains.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
