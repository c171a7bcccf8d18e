package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// newTestServer creates a test server and a client pointed at it. Retry
// sleeps are recorded instead of waited.
func newTestServer(t *testing.T, handler http.HandlerFunc, opts ...Option) (*Client, *[]time.Duration) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := NewClient(server.URL, append([]Option{WithTokenProvider(StaticToken("test-token"))}, opts...)...)
	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}
	return c, &delays
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("http://localhost:8080/api/v1/")

	assert.Equal(t, "http://localhost:8080/api/v1", c.BaseURL())
	assert.Equal(t, DefaultTimeout, c.timeout)
	assert.Equal(t, DefaultRetryAttempts, c.retryAttempts)
	assert.NotNil(t, c.Integrations)
	assert.NotNil(t, c.Organizations)
	assert.NotNil(t, c.Analytics)
	assert.NotNil(t, c.Agents)
}

func TestNewClient_Options(t *testing.T) {
	hc := &http.Client{}
	c := NewClient("http://x", WithHTTPClient(hc), WithTimeout(5*time.Second), WithRetryAttempts(0))

	assert.Same(t, hc, c.httpClient)
	assert.Equal(t, 5*time.Second, c.timeout)
	assert.Equal(t, 1, c.retryAttempts)
}

func TestNewClient_WithTracingDoesNotMutateCallerClient(t *testing.T) {
	hc := &http.Client{}
	c := NewClient("http://x", WithHTTPClient(hc), WithTracing())

	assert.Nil(t, hc.Transport)
	assert.NotNil(t, c.httpClient.Transport)
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Config{Env: "prod", ProdAPIURL: config.DefaultProdAPIURL + "/", RequestTimeout: 7 * time.Second, RetryAttempts: 5}
	c := NewFromConfig(cfg)

	assert.Equal(t, config.DefaultProdAPIURL, c.BaseURL())
	assert.Equal(t, 7*time.Second, c.timeout)
	assert.Equal(t, 5, c.retryAttempts)
}

func TestRequest_SetsHeaders(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, sdkUserAgent, r.Header.Get("User-Agent"))
		writeJSON(w, http.StatusOK, map[string]string{"ok": "yes"})
	})

	var out map[string]string
	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/ping", nil, &out))
	assert.Equal(t, "yes", out["ok"])
}

func TestRequest_NoSessionSendsUnauthenticated(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, WithTokenProvider(StaticToken("")))

	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/ping", nil, nil))
}

func TestRequest_TokenReadOnEveryCall(t *testing.T) {
	var calls int32
	tokens := TokenFunc(func(context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		return "tok-" + string(rune('0'+n)), nil
	})
	var seen []string
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusNoContent)
	}, WithTokenProvider(tokens))

	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/a", nil, nil))
	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/b", nil, nil))
	assert.Equal(t, []string{"Bearer tok-1", "Bearer tok-2"}, seen)
}

func TestRequest_BodyOnlyForMutatingVerbs(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			assert.Equal(t, int64(0), r.ContentLength)
		} else {
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "v", body["k"])
		}
		w.WriteHeader(http.StatusNoContent)
	})

	body := map[string]string{"k": "v"}
	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/x", body, nil))
	require.NoError(t, c.Request(context.Background(), http.MethodPost, "/x", body, nil))
}

func TestRequest_EmptyBodyLeavesOutUntouched(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	out := map[string]string{"kept": "1"}
	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/x", nil, &out))
	assert.Equal(t, "1", out["kept"])
}

func TestRequest_RetriesServerErrorsExactlyNTimes(t *testing.T) {
	var attempts int32
	c, delays := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"code": "unavailable", "message": "down"})
	})

	err := c.Request(context.Background(), http.MethodGet, "/x", nil, nil)

	require.Error(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)
	assert.True(t, apierr.IsServerError(err))
	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "unavailable", e.Code)
	assert.Equal(t, "down", e.Message)
}

func TestRequest_RetryAttemptsConfigurable(t *testing.T) {
	var attempts int32
	c, delays := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusBadGateway)
	}, WithRetryAttempts(5))

	err := c.Request(context.Background(), http.MethodGet, "/x", nil, nil)

	assert.True(t, apierr.IsServerError(err))
	assert.Equal(t, int32(5), atomic.LoadInt32(&attempts))
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, *delays)
}

func TestRequest_RecoversAfterTransientFailure(t *testing.T) {
	var attempts int32
	c, delays := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"n": 1})
	})

	var out map[string]int
	require.NoError(t, c.Request(context.Background(), http.MethodGet, "/x", nil, &out))
	assert.Equal(t, 1, out["n"])
	assert.Len(t, *delays, 1)
}

func TestRequest_ClientErrorsAreNotRetried(t *testing.T) {
	for _, status := range []int{400, 401, 403, 404, 409, 422, 429} {
		var attempts int32
		c, delays := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&attempts, 1)
			w.WriteHeader(status)
		})

		err := c.Request(context.Background(), http.MethodGet, "/x", nil, nil)

		require.Error(t, err, "status %d", status)
		assert.True(t, apierr.IsClientError(err), "status %d", status)
		assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "status %d", status)
		assert.Empty(t, *delays, "status %d", status)
	}
}

func TestRequest_ExpiredTokenSurfacesAuthentication(t *testing.T) {
	var attempts int32
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		writeJSON(w, http.StatusUnauthorized, map[string]string{"code": "token_expired", "message": "jwt expired"})
	})

	err := c.Request(context.Background(), http.MethodGet, "/integrations/credentials", nil, nil)

	assert.Equal(t, apierr.KindAuthentication, apierr.KindOf(err))
	assert.True(t, apierr.IsAuthError(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
	assert.Equal(t, "Authentication required. Please log in again.", apierr.Message(err))
}

func TestRequest_NetworkErrorIsRetried(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := NewClient(url)
	var delays []time.Duration
	c.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	err := c.Request(context.Background(), http.MethodGet, "/x", nil, nil)

	assert.Equal(t, apierr.KindNetwork, apierr.KindOf(err))
	assert.Len(t, delays, 2)
}

func TestRequest_TimeoutPerAttempt(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, WithTimeout(20*time.Millisecond), WithRetryAttempts(1))

	err := c.Request(context.Background(), http.MethodGet, "/slow", nil, nil)

	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, apierr.KindTimeout, e.Kind)
	assert.Zero(t, e.StatusCode)
}

func TestRequest_CallerCancellationNotRetried(t *testing.T) {
	var attempts int32
	c, delays := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusOK)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.Request(ctx, http.MethodGet, "/x", nil, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *delays)
}

func TestRequest_InvalidJSONIsDecodeError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	})

	var out map[string]any
	err := c.Request(context.Background(), http.MethodGet, "/x", nil, &out)

	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "invalid_response", e.Code)
}

func TestParseError(t *testing.T) {
	t.Run("unparseable body falls back to status text", func(t *testing.T) {
		err := parseError(http.StatusBadGateway, http.Header{}, []byte("<html>bad gateway</html>"))
		e, _ := apierr.As(err)
		assert.Equal(t, apierr.KindServer, e.Kind)
		assert.Equal(t, "Bad Gateway", e.Message)
	})

	t.Run("string detail", func(t *testing.T) {
		err := parseError(http.StatusNotFound, http.Header{}, []byte(`{"detail":"Credential not found"}`))
		e, _ := apierr.As(err)
		assert.Equal(t, apierr.KindNotFound, e.Kind)
		assert.Equal(t, "Credential not found", e.Message)
		assert.Equal(t, "not_found", e.Code)
	})

	t.Run("list detail becomes field errors", func(t *testing.T) {
		body := `{"detail":[{"loc":["body","credential_name"],"msg":"field required","type":"value_error.missing"}]}`
		err := parseError(http.StatusUnprocessableEntity, http.Header{}, []byte(body))
		e, _ := apierr.As(err)
		require.Len(t, e.Fields, 1)
		assert.Equal(t, "credential_name", e.Fields[0].Field)
		assert.Equal(t, "field required", apierr.Message(err))
	})

	t.Run("details fields", func(t *testing.T) {
		body := `{"code":"validation_error","message":"missing fields","details":{"fields":[{"field":"api_key","message":"api_key is required","code":"required"}]}}`
		err := parseError(http.StatusUnprocessableEntity, http.Header{}, []byte(body))
		e, _ := apierr.As(err)
		require.Len(t, e.Fields, 1)
		assert.Equal(t, "api_key", e.Fields[0].Field)
		assert.Equal(t, "missing fields", e.Message)
	})

	t.Run("duplicate keeps server code", func(t *testing.T) {
		body := `{"code":"23505","message":"duplicate key value violates unique constraint"}`
		err := parseError(http.StatusConflict, http.Header{}, []byte(body))
		e, _ := apierr.As(err)
		assert.True(t, apierr.IsConflictError(err))
		assert.Equal(t, "23505", e.Code)
	})

	t.Run("retry after header", func(t *testing.T) {
		h := http.Header{}
		h.Set("Retry-After", "7")
		err := parseError(http.StatusTooManyRequests, h, nil)
		e, _ := apierr.As(err)
		assert.Equal(t, 7*time.Second, e.RetryAfter)
	})

	t.Run("retry after from details", func(t *testing.T) {
		err := parseError(http.StatusTooManyRequests, http.Header{}, []byte(`{"details":{"retry_after":3}}`))
		e, _ := apierr.As(err)
		assert.Equal(t, 3*time.Second, e.RetryAfter)
	})
}

func TestQueryBuilderSkipsEmptyValues(t *testing.T) {
	q := newQuery().str("category", "").str("search", "slack").int("page", 0).flag("include_inactive", false).
		page(models.ListParams{Limit: 10})

	assert.Equal(t, "/integrations?limit=10&search=slack", q.path("/integrations"))
	assert.Equal(t, "/x", newQuery().str("a", "").path("/x"))
}
