// Package apperror classifies failures into codes that map onto HTTP statuses.
package apperror

import (
	"errors"
	"net/http"
)

type Code string

const (
	CodeInvalidInput       Code = "INVALID_INPUT"
	CodeUnauthorized       Code = "UNAUTHORIZED"
	CodeForbidden          Code = "FORBIDDEN"
	CodeNotFound           Code = "NOT_FOUND"
	CodeConflict           Code = "CONFLICT"
	CodeQuotaExceeded      Code = "QUOTA_EXCEEDED"
	CodeEngagementRequired Code = "ENGAGEMENT_REQUIRED"
	CodeInternal           Code = "INTERNAL_ERROR"
)

// Error carries a client-safe message. Err is for logs only.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPStatus maps the code onto a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeInvalidInput, CodeQuotaExceeded, CodeEngagementRequired:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// From returns the *Error in err's chain, or an internal error wrapping err.
func From(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(CodeInternal, "Internal server error", err)
}
