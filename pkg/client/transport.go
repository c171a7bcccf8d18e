package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
)

const (
	headerAuthorization = "Authorization"
	headerContentType   = "Content-Type"
	headerAccept        = "Accept"
	headerUserAgent     = "User-Agent"
	contentTypeJSON     = "application/json"
	sdkUserAgent        = "voicehub-go/1.0.0"
)

// Request executes method path against the API and decodes a JSON response
// into out (if non-nil). Server errors, network errors and timeouts are
// retried up to the configured attempt count, waiting apierr.RetryDelay
// between attempts; any other failure is returned on the first attempt.
// A 204 or empty body leaves out untouched.
func (c *Client) Request(ctx context.Context, method, path string, body, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.retryAttempts; attempt++ {
		err := c.do(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == c.retryAttempts || !apierr.ShouldRetry(err) {
			return err
		}
		delay := apierr.RetryDelay(attempt)
		c.log.Debugw("retrying request",
			"method", method, "path", path, "attempt", attempt, "delay", delay, "err", err)
		if serr := c.sleep(ctx, delay); serr != nil {
			return serr
		}
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var bodyReader io.Reader
	if body != nil && isMutating(method) {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(headerContentType, contentTypeJSON)
	req.Header.Set(headerAccept, contentTypeJSON)
	req.Header.Set(headerUserAgent, sdkUserAgent)
	if token := c.accessToken(ctx); token != "" {
		req.Header.Set(headerAuthorization, "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.transportError(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, attemptCtx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return parseError(resp.StatusCode, resp.Header, data)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return apierr.NewDecodeError(resp.StatusCode, err)
	}
	return nil
}

// accessToken reads the session token fresh on every call. A failing
// provider is treated as "no session".
func (c *Client) accessToken(ctx context.Context) string {
	if c.tokens == nil {
		return ""
	}
	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.log.Debugw("token provider failed, sending unauthenticated", "err", err)
		return ""
	}
	return token
}

// transportError classifies a failure that produced no HTTP response.
// Caller cancellation is passed through unchanged.
func (c *Client) transportError(parent, attemptCtx context.Context, err error) error {
	if perr := parent.Err(); perr != nil {
		return perr
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) || isTimeout(err) {
		return apierr.NewTimeoutError(c.timeout)
	}
	return apierr.NewNetworkError(err)
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

type errorBody struct {
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Detail  json.RawMessage `json:"detail"`
	Details json.RawMessage `json:"details"`
}

// fastAPIDetail is the shape of one entry of a list-valued "detail".
type fastAPIDetail struct {
	Loc  []any  `json:"loc"`
	Msg  string `json:"msg"`
	Type string `json:"type"`
}

// parseError builds a typed error from a non-2xx response. The body is
// best-effort: {code, message|detail, details}; anything unparseable falls
// back to the HTTP status text.
func parseError(status int, header http.Header, body []byte) error {
	var eb errorBody
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &eb) != nil {
		return withRetryAfter(apierr.FromStatus(status, "", http.StatusText(status), nil), header, nil)
	}

	message := eb.Message
	var fields []apierr.FieldError
	if len(eb.Detail) > 0 {
		var s string
		if json.Unmarshal(eb.Detail, &s) == nil {
			if message == "" {
				message = s
			}
		} else {
			var items []fastAPIDetail
			if json.Unmarshal(eb.Detail, &items) == nil {
				for _, it := range items {
					fields = append(fields, apierr.FieldError{Field: locField(it.Loc), Message: it.Msg, Code: it.Type})
				}
			}
		}
	}

	var details map[string]any
	if len(eb.Details) > 0 {
		if json.Unmarshal(eb.Details, &details) != nil {
			var list []apierr.FieldError
			if json.Unmarshal(eb.Details, &list) == nil {
				fields = append(fields, list...)
			}
		}
	}
	if details != nil {
		if raw, ok := details["fields"]; ok {
			if b, err := json.Marshal(raw); err == nil {
				var list []apierr.FieldError
				if json.Unmarshal(b, &list) == nil {
					fields = append(fields, list...)
				}
			}
		}
	}

	e := apierr.FromStatus(status, eb.Code, message, details)
	if e.Kind == apierr.KindValidation {
		e.Fields = fields
	}
	return withRetryAfter(e, header, details)
}

func withRetryAfter(e *apierr.Error, header http.Header, details map[string]any) *apierr.Error {
	if e.Kind != apierr.KindRateLimit {
		return e
	}
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			e.RetryAfter = time.Duration(secs) * time.Second
			return e
		}
	}
	if v, ok := details["retry_after"].(float64); ok {
		e.RetryAfter = time.Duration(v) * time.Second
	}
	return e
}

func locField(loc []any) string {
	for i := len(loc) - 1; i >= 0; i-- {
		if s, ok := loc[i].(string); ok && s != "body" && s != "query" {
			return s
		}
	}
	return ""
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.Request(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPost, path, body, out)
}

func (c *Client) put(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPut, path, body, out)
}

func (c *Client) patch(ctx context.Context, path string, body, out any) error {
	return c.Request(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) delete(ctx context.Context, path string) error {
	return c.Request(ctx, http.MethodDelete, path, nil, nil)
}
