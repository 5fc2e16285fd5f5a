package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies a failure surfaced to callers.
type Code int

const (
	CodeInternal Code = iota
	CodeUnauthenticated
	CodeInvalidArgument
	CodeNotFound
	CodeFailedPrecondition
	CodeForbidden
)

func (c Code) String() string {
	switch c {
	case CodeUnauthenticated:
		return "UNAUTHENTICATED"
	case CodeInvalidArgument:
		return "INVALID_ARGUMENT"
	case CodeNotFound:
		return "NOT_FOUND"
	case CodeFailedPrecondition:
		return "FAILED_PRECONDITION"
	case CodeForbidden:
		return "FORBIDDEN"
	default:
		return "INTERNAL"
	}
}

// HTTPStatus maps a code onto the response status used by the API layer.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeFailedPrecondition:
		return http.StatusConflict
	case CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Error is a typed failure with a human-readable message.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newf(code Code, format string, args ...interface{}) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

func Unauthenticated(format string, args ...interface{}) *Error {
	return newf(CodeUnauthenticated, format, args...)
}

func InvalidArgument(format string, args ...interface{}) *Error {
	return newf(CodeInvalidArgument, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newf(CodeNotFound, format, args...)
}

func FailedPrecondition(format string, args ...interface{}) *Error {
	return newf(CodeFailedPrecondition, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return newf(CodeForbidden, format, args...)
}

// Internal wraps a persistence or infrastructure failure.
func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
