// Package apierr defines the closed set of errors returned by the API client.
package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Kind classifies an Error. The set is closed; unknown statuses map to KindUnknown.
type Kind string

const (
	KindUnknown        Kind = "api_error"
	KindNetwork        Kind = "network_error"
	KindTimeout        Kind = "timeout_error"
	KindAuthentication Kind = "authentication_error"
	KindAuthorization  Kind = "authorization_error"
	KindValidation     Kind = "validation_error"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindRateLimit      Kind = "rate_limit_exceeded"
	KindServer         Kind = "server_error"
)

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// Error is the typed client error. StatusCode is 0 for client-local failures
// (network, timeout).
type Error struct {
	Kind       Kind
	StatusCode int
	Code       string
	Message    string
	Details    map[string]any
	// Fields is populated for KindValidation.
	Fields []FieldError
	// RetryAfter is populated for KindRateLimit when the server sent one.
	RetryAfter time.Duration

	cause error
}

func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s (%d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// NewNetworkError wraps a connection-level failure.
func NewNetworkError(cause error) *Error {
	msg := "network request failed"
	if cause != nil {
		msg = cause.Error()
	}
	return &Error{Kind: KindNetwork, Code: string(KindNetwork), Message: msg, cause: cause}
}

// NewTimeoutError reports a request that exceeded its deadline.
func NewTimeoutError(timeout time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Code:    string(KindTimeout),
		Message: fmt.Sprintf("request timed out after %s", timeout),
		cause:   errors.New("deadline exceeded"),
	}
}

// NewValidationError builds a 422 error carrying field failures.
func NewValidationError(message string, fields []FieldError) *Error {
	if message == "" {
		message = "validation failed"
	}
	return &Error{
		Kind:       KindValidation,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       string(KindValidation),
		Message:    message,
		Fields:     fields,
	}
}

// FromStatus maps an HTTP status to the matching error kind. code and message
// default to the kind and the status text when empty.
func FromStatus(status int, code, message string, details map[string]any) *Error {
	kind := kindFor(status)
	if code == "" {
		code = string(kind)
	}
	if message == "" {
		message = http.StatusText(status)
	}
	return &Error{Kind: kind, StatusCode: status, Code: code, Message: message, Details: details}
}

func kindFor(status int) Kind {
	switch {
	case status == http.StatusUnauthorized:
		return KindAuthentication
	case status == http.StatusForbidden:
		return KindAuthorization
	case status == http.StatusNotFound:
		return KindNotFound
	case status == http.StatusConflict:
		return KindConflict
	case status == http.StatusUnprocessableEntity:
		return KindValidation
	case status == http.StatusTooManyRequests:
		return KindRateLimit
	case status >= 500 && status <= 599:
		return KindServer
	}
	return KindUnknown
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// NewDecodeError reports a 2xx response whose body could not be decoded.
func NewDecodeError(status int, cause error) *Error {
	return &Error{
		Kind:       KindUnknown,
		StatusCode: status,
		Code:       "invalid_response",
		Message:    "response body could not be decoded",
		cause:      cause,
	}
}
