// Package errors defines code-based API errors shared by services and the
// HTTP layer. Stores return infrastructure sentinels (pkg/platform/sentinel);
// services translate those into coded errors; transport translates codes into
// HTTP status lines.
package errors

import (
	stderrors "errors"
	"net/http"
)

// Code classifies an error for transport translation.
type Code string

const (
	CodeBadRequest   Code = "bad_request"
	CodeUnauthorized Code = "unauthorized"
	CodeForbidden    Code = "forbidden"
	CodeNotFound     Code = "not_found"
	CodeConflict     Code = "conflict"
	CodeInternal     Code = "internal"
	CodeUnavailable  Code = "unavailable"
)

// APIError carries a code plus a user-presentable message.
type APIError struct {
	Code    Code
	Message string
	cause   error
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.cause }

// New builds an APIError with the given code and message.
func New(code Code, message string) *APIError {
	return &APIError{Code: code, Message: message}
}

// Wrap builds an APIError that preserves the underlying cause for errors.Is
// and errors.As chains.
func Wrap(code Code, message string, cause error) *APIError {
	return &APIError{Code: code, Message: message, cause: cause}
}

// Is reports whether err (or anything it wraps) is an APIError with the code.
func Is(err error, code Code) bool {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

// CodeOf extracts the code from an error chain, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps an error code onto an HTTP status.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
