// Package errors provides error code definitions shared across the task board core.
package errors

import "fmt"

// ErrorCode identifies a failure class so transports can map it to a status
// without string matching.
type ErrorCode string

const (
	// General errors
	ErrInternal ErrorCode = "INTERNAL_ERROR"
	ErrInvalid  ErrorCode = "INVALID_INPUT"
	ErrNotFound ErrorCode = "NOT_FOUND"
	ErrDatabase ErrorCode = "DATABASE_ERROR"

	// Optimistic-concurrency errors
	ErrVersionConflict ErrorCode = "VERSION_CONFLICT"

	// Edit-lock errors
	ErrAlreadyLocked ErrorCode = "ALREADY_LOCKED"
	ErrNotHolder     ErrorCode = "NOT_HOLDER"

	// Validation errors, surfaced verbatim to the actor
	ErrDuplicateTitle    ErrorCode = "DUPLICATE_TITLE"
	ErrInvalidStatus     ErrorCode = "INVALID_STATUS"
	ErrInvalidPriority   ErrorCode = "INVALID_PRIORITY"
	ErrInvalidResolution ErrorCode = "INVALID_RESOLUTION"
)

// AppError represents an application error with code and message.
// No error in the core is fatal to the process: every failure is scoped to
// a single operation and returned to the caller.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code. Errors wrapped with
// fmt.Errorf("%w") are unwrapped along the way.
func Is(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the error code of err, or ErrInternal for errors that do
// not carry one. Typed errors outside this package participate by exposing a
// Code() method.
func CodeOf(err error) ErrorCode {
	for err != nil {
		if appErr, ok := err.(*AppError); ok {
			return appErr.Code
		}
		if coded, ok := err.(interface{ Code() ErrorCode }); ok {
			return coded.Code()
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	return ErrInternal
}
