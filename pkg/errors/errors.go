package errors

import (
	stdErrors "errors"
	"fmt"
)

type Code string

const (
	CodeValidation  Code = "VALIDATION_ERROR"
	CodeNotFound    Code = "NOT_FOUND"
	CodeConflict    Code = "CONFLICT"
	CodeIdempotency Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal    Code = "INTERNAL_ERROR"
	CodeDependency  Code = "DEPENDENCY_ERROR"
)

// retryableCodes marks errors that are expected to succeed on a later run.
var retryableCodes = map[Code]bool{
	CodeInternal:   true,
	CodeDependency: true,
}

type Error struct {
	code    Code
	message string
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.code, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// CodeOf extracts the Code from err, defaulting to CodeInternal for
// untyped errors.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var coded *Error
	if stdErrors.As(err, &coded) {
		return coded.Code()
	}
	return CodeInternal
}

// IsRetryable reports whether err is transient enough to retry on the
// next scheduled run.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return retryableCodes[CodeOf(err)]
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
