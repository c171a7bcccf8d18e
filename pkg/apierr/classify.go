package apierr

import (
	"context"
	"errors"
	"time"
)

const (
	baseRetryDelay = time.Second
	maxRetryDelay  = 10 * time.Second
)

// IsClientError reports a 4xx response.
func IsClientError(err error) bool {
	e, ok := As(err)
	return ok && e.StatusCode >= 400 && e.StatusCode < 500
}

// IsServerError reports a 5xx response.
func IsServerError(err error) bool {
	e, ok := As(err)
	return ok && e.StatusCode >= 500 && e.StatusCode < 600
}

// IsAuthError is true for both 401 and 403.
func IsAuthError(err error) bool {
	k := KindOf(err)
	return k == KindAuthentication || k == KindAuthorization
}

func IsNotFoundError(err error) bool   { return KindOf(err) == KindNotFound }
func IsValidationError(err error) bool { return KindOf(err) == KindValidation }
func IsConflictError(err error) bool   { return KindOf(err) == KindConflict }
func IsRateLimitError(err error) bool  { return KindOf(err) == KindRateLimit }

// ShouldRetry is true only for server errors, network errors and timeouts.
// Client errors and caller cancellation are never retried.
func ShouldRetry(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	switch KindOf(err) {
	case KindServer, KindNetwork, KindTimeout:
		return true
	}
	return false
}

// RetryDelay is the wait before the next attempt: min(1s * 2^(attempt-1), 10s).
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := baseRetryDelay
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return d
}

// Message resolves err to a short user-facing sentence. The underlying code
// and details stay on the error for logs.
func Message(err error) string {
	if err == nil {
		return ""
	}
	e, ok := As(err)
	if !ok {
		return "An unexpected error occurred."
	}
	switch e.Kind {
	case KindNetwork:
		return "Network error. Please check your connection."
	case KindTimeout:
		return "Request timed out. Please try again."
	case KindAuthentication:
		return "Authentication required. Please log in again."
	case KindAuthorization:
		return "You don't have permission to perform this action."
	case KindValidation:
		if len(e.Fields) > 0 && e.Fields[0].Message != "" {
			return e.Fields[0].Message
		}
		return "Please check your input and try again."
	case KindNotFound:
		return "The requested resource was not found."
	case KindConflict:
		return "This resource already exists."
	case KindRateLimit:
		return "Too many requests. Please try again later."
	case KindServer:
		return "Server error. Please try again later."
	}
	return "An unexpected error occurred."
}
