package apierr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromStatus_Kinds(t *testing.T) {
	cases := []struct {
		status     int
		kind       Kind
		auth       bool
		notFound   bool
		validation bool
		server     bool
	}{
		{http.StatusUnauthorized, KindAuthentication, true, false, false, false},
		{http.StatusForbidden, KindAuthorization, true, false, false, false},
		{http.StatusNotFound, KindNotFound, false, true, false, false},
		{http.StatusConflict, KindConflict, false, false, false, false},
		{http.StatusUnprocessableEntity, KindValidation, false, false, true, false},
		{http.StatusTooManyRequests, KindRateLimit, false, false, false, false},
		{http.StatusInternalServerError, KindServer, false, false, false, true},
		{http.StatusBadGateway, KindServer, false, false, false, true},
		{http.StatusServiceUnavailable, KindServer, false, false, false, true},
		{http.StatusGatewayTimeout, KindServer, false, false, false, true},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprint(tc.status), func(t *testing.T) {
			err := FromStatus(tc.status, "", "", nil)
			assert.Equal(t, tc.kind, err.Kind)
			assert.Equal(t, tc.status, err.StatusCode)
			assert.Equal(t, tc.auth, IsAuthError(err))
			assert.Equal(t, tc.notFound, IsNotFoundError(err))
			assert.Equal(t, tc.validation, IsValidationError(err))
			assert.Equal(t, tc.server, IsServerError(err))
			assert.Equal(t, !tc.server, IsClientError(err))
			assert.Equal(t, tc.kind == KindConflict, IsConflictError(err))
			assert.Equal(t, tc.kind == KindRateLimit, IsRateLimitError(err))
		})
	}
}

func TestFromStatus_Unmapped(t *testing.T) {
	err := FromStatus(http.StatusTeapot, "", "", nil)
	assert.Equal(t, KindUnknown, err.Kind)
	assert.Equal(t, http.StatusText(http.StatusTeapot), err.Message)
	assert.True(t, IsClientError(err))
	assert.False(t, ShouldRetry(err))
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(FromStatus(500, "", "", nil)))
	assert.True(t, ShouldRetry(FromStatus(503, "", "", nil)))
	assert.True(t, ShouldRetry(NewNetworkError(errors.New("connection refused"))))
	assert.True(t, ShouldRetry(NewTimeoutError(time.Second)))

	for _, status := range []int{400, 401, 403, 404, 409, 422, 429} {
		assert.False(t, ShouldRetry(FromStatus(status, "", "", nil)), "status %d", status)
	}
	assert.False(t, ShouldRetry(nil))
	assert.False(t, ShouldRetry(context.Canceled))
	assert.False(t, ShouldRetry(errors.New("plain")))
}

func TestShouldRetry_Wrapped(t *testing.T) {
	err := fmt.Errorf("list credentials: %w", FromStatus(502, "", "", nil))
	assert.True(t, ShouldRetry(err))
	assert.True(t, IsServerError(err))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 1*time.Second, RetryDelay(1))
	assert.Equal(t, 2*time.Second, RetryDelay(2))
	assert.Equal(t, 4*time.Second, RetryDelay(3))
	assert.Equal(t, 8*time.Second, RetryDelay(4))
	assert.Equal(t, 10*time.Second, RetryDelay(5))
	assert.Equal(t, 10*time.Second, RetryDelay(30))
	assert.Equal(t, 1*time.Second, RetryDelay(0))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "Authentication required. Please log in again.", Message(FromStatus(401, "", "", nil)))
	assert.Equal(t, "Server error. Please try again later.", Message(FromStatus(500, "", "", nil)))
	assert.Equal(t, "An unexpected error occurred.", Message(errors.New("boom")))
	assert.Equal(t, "", Message(nil))

	verr := NewValidationError("", []FieldError{{Field: "api_key", Message: "API Key is required"}})
	assert.Equal(t, "API Key is required", Message(verr))
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := NewNetworkError(cause)
	require.ErrorIs(t, err, cause)
	assert.Equal(t, 0, err.StatusCode)
	assert.Contains(t, err.Error(), "network_error")
}
