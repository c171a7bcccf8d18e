// Package client is the typed HTTP client for the voice hub API.
//
// Every surface funnels through a single authenticated executor (Client.Request)
// that applies a per-request timeout, retries server/network failures with
// exponential backoff and maps failures onto pkg/apierr.
//
//	c := client.NewClient("https://api.voiceorchestrate.ai/api/v1",
//	    client.WithTokenProvider(session))
//	creds, err := c.Integrations.ListCredentials(ctx, client.CredentialFilter{IntegrationID: "slack"})
package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
)

const (
	// DefaultTimeout bounds a single attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultRetryAttempts is the total number of attempts for retryable failures.
	DefaultRetryAttempts = 3
)

// Client is the voice hub API client. Safe for concurrent use.
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        TokenProvider
	timeout       time.Duration
	retryAttempts int
	tracing       bool
	log           *zap.SugaredLogger
	sleep         func(ctx context.Context, d time.Duration) error

	Integrations  *IntegrationsService
	Organizations *OrganizationsService
	Analytics     *AnalyticsService
	Agents        *AgentsService
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client. Its own Timeout, if any, still applies.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-attempt timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetryAttempts sets the total attempt count (minimum 1).
func WithRetryAttempts(n int) Option {
	return func(c *Client) {
		if n < 1 {
			n = 1
		}
		c.retryAttempts = n
	}
}

// WithTokenProvider sets the session token source, read on every request.
func WithTokenProvider(p TokenProvider) Option {
	return func(c *Client) { c.tokens = p }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTracing wraps the HTTP transport with OpenTelemetry instrumentation.
func WithTracing() Option {
	return func(c *Client) { c.tracing = true }
}

// NewClient creates a client bound to baseURL (e.g. http://localhost:8080/api/v1).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		timeout:       DefaultTimeout,
		retryAttempts: DefaultRetryAttempts,
		log:           zap.NewNop().Sugar(),
		sleep:         sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracing {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		hc := *c.httpClient
		hc.Transport = otelhttp.NewTransport(base)
		c.httpClient = &hc
	}

	c.Integrations = &IntegrationsService{client: c}
	c.Organizations = &OrganizationsService{client: c}
	c.Analytics = &AnalyticsService{client: c}
	c.Agents = &AgentsService{client: c}
	return c
}

// NewFromConfig resolves base URL, timeout and retry count from cfg.
// Explicit opts override the config values.
func NewFromConfig(cfg config.Config, opts ...Option) *Client {
	base := []Option{WithTimeout(cfg.RequestTimeout), WithRetryAttempts(cfg.RetryAttempts)}
	return NewClient(cfg.APIBaseURL(), append(base, opts...)...)
}

// BaseURL returns the base URL fixed at construction.
func (c *Client) BaseURL() string { return c.baseURL }

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
