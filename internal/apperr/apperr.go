// Package apperr defines the application error taxonomy shared by handlers,
// the store and the relay. Every externally visible failure maps to exactly
// one code; causes are carried for logging but never serialized to clients.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeInvalidArgument  Code = "invalid_argument"
	CodeUnauthenticated  Code = "unauthenticated"
	CodePermissionDenied Code = "permission_denied"
	CodeNotFound         Code = "not_found"
	CodeAlreadyExists    Code = "already_exists"
	CodeInternal         Code = "internal"
)

type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

func InvalidArg(msg string) *Error { return New(CodeInvalidArgument, msg) }

func Unauthorized(msg string) *Error { return New(CodeUnauthenticated, msg) }

func Forbidden(msg string) *Error { return New(CodePermissionDenied, msg) }

func NotFound(msg string) *Error { return New(CodeNotFound, msg) }

func AlreadyExists(msg string) *Error { return New(CodeAlreadyExists, msg) }

func Internal(msg string, cause error) *Error {
	return Wrap(CodeInternal, msg, cause)
}

// HTTPStatus maps an error code to its HTTP response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument:
		return http.StatusBadRequest
	case CodeUnauthenticated:
		return http.StatusUnauthorized
	case CodePermissionDenied:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// From extracts an *Error, wrapping unknown errors as internal.
func From(err error) *Error {
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return Internal("An error occurred on our end.", err)
}
