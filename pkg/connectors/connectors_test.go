package connectors

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_BuildAndGet(t *testing.T) {
	r := NewRegistry()

	_, err := r.Build("sandbox", Definition{})
	require.NoError(t, err)

	p, err := r.Get("sandbox")
	require.NoError(t, err)
	assert.Equal(t, "sandbox", p.Name())
	assert.Equal(t, []string{"sandbox"}, r.Names())

	_, err = r.Get("nope")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = r.Build("x", Definition{Kind: "grpc"})
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEcho(t *testing.T) {
	p, _ := NewEcho("sandbox", Definition{})
	ctx := context.Background()

	assert.NoError(t, p.Test(ctx, map[string]string{"api_key": "good"}))
	assert.Error(t, p.Test(ctx, map[string]string{"api_key": "invalid-key"}))
	assert.Error(t, p.Test(ctx, nil))

	res, err := p.Call(ctx, Call{Operation: "echo", Payload: map[string]any{"msg": "hi", "tokens": float64(42)}})
	require.NoError(t, err)
	assert.Equal(t, "hi", res.Data.(map[string]any)["msg"])
	require.NotNil(t, res.TokensUsed)
	assert.Equal(t, int64(42), *res.TokensUsed)
	assert.Nil(t, res.CostCents)

	_, err = p.Call(ctx, Call{Operation: "fail", Payload: map[string]any{"error": "rate limited upstream"}})
	assert.EqualError(t, err, "rate limited upstream")

	_, err = p.Call(ctx, Call{Operation: "nope"})
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestResolveValue(t *testing.T) {
	scope := map[string]any{
		"payload": map[string]any{"n": float64(3), "name": "ada", "nested": map[string]any{"x": "y"}},
		"secrets": map[string]string{"api_key": "k"},
	}

	assert.Equal(t, "Bearer k", resolve("Bearer {{secrets.api_key}}", scope))
	assert.Equal(t, "hi ", resolve("hi {{payload.missing}}", scope))
	got := resolveValue(map[string]any{
		"count": "{{payload.n}}",
		"greet": "hello {{ payload.name }}",
		"list":  []any{"{{payload.nested.x}}"},
	}, scope)
	assert.Equal(t, map[string]any{"count": float64(3), "greet": "hello ada", "list": []any{"y"}}, got)
}

func openAIDefinition(baseURL string) Definition {
	return Definition{
		Kind:    KindHTTP,
		BaseURL: baseURL,
		Test:    &OperationDef{Method: "GET", Path: "/models", Headers: map[string]string{"Authorization": "Bearer {{secrets.api_key}}"}, Error: "error.message"},
		Ops: map[string]OperationDef{
			"chat": {
				Method:  "POST",
				Path:    "/chat/{{payload.model}}",
				Headers: map[string]string{"Authorization": "Bearer {{secrets.api_key}}"},
				Query:   map[string]string{"org": "{{config.org}}", "skip": "{{payload.none}}"},
				Body:    map[string]any{"messages": "{{payload.messages}}"},
				Result:  "choices[0].message.content",
				Tokens:  "usage.total_tokens",
				Cost:    "usage.cost_cents",
				Error:   "error.message",
			},
		},
	}
}

func TestHTTPProvider_Call(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-1", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/models":
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"data":[]}`))
		case "/chat/gpt-4o":
			assert.Equal(t, "org=acme", r.URL.RawQuery)
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Len(t, body["messages"], 1)
			_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}],"usage":{"total_tokens":17,"cost_cents":2}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p, err := HTTPFactory(srv.Client())("openai", openAIDefinition(srv.URL))
	require.NoError(t, err)
	ctx := context.Background()
	secrets := map[string]string{"api_key": "sk-1"}

	require.NoError(t, p.Test(ctx, secrets))

	res, err := p.Call(ctx, Call{
		Operation: "chat",
		Payload:   map[string]any{"model": "gpt-4o", "messages": []any{map[string]any{"role": "user", "content": "hi"}}},
		Secrets:   secrets,
		Config:    map[string]any{"org": "acme"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Data)
	assert.Equal(t, int64(17), *res.TokensUsed)
	assert.Equal(t, int64(2), *res.CostCents)
	assert.Len(t, p.Operations(), 1)
}

func TestHTTPProvider_FailureMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer srv.Close()

	p, err := HTTPFactory(srv.Client())("openai", openAIDefinition(srv.URL))
	require.NoError(t, err)

	err = p.Test(context.Background(), map[string]string{"api_key": "bad"})
	assert.EqualError(t, err, "Incorrect API key provided")
}

func TestHTTPProvider_SuccessExpression(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	def := Definition{Kind: KindHTTP, BaseURL: srv.URL, Ops: map[string]OperationDef{
		"post_message": {Method: "POST", Path: "/chat.postMessage", Success: "ok", Error: "error"},
	}}
	p, err := HTTPFactory(srv.Client())("slack", def)
	require.NoError(t, err)

	_, err = p.Call(context.Background(), Call{Operation: "post_message"})
	assert.EqualError(t, err, "channel_not_found")
}

func TestHTTPFactory_RequiresBaseURL(t *testing.T) {
	_, err := HTTPFactory(nil)("x", Definition{Kind: KindHTTP})
	assert.Error(t, err)
}
