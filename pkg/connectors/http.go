package connectors

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	jmes "github.com/jmespath/go-jmespath"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxResponseBytes = 4 << 20

// HTTPProvider executes templated requests against a provider's REST API.
type HTTPProvider struct {
	name   string
	def    Definition
	client *http.Client
}

// HTTPFactory returns a Factory producing HTTP providers that share hc.
// A nil hc gets a traced client with a 30s timeout.
func HTTPFactory(hc *http.Client) Factory {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return func(name string, def Definition) (Provider, error) {
		if def.BaseURL == "" {
			return nil, errors.New("base_url is required")
		}
		if _, err := url.Parse(def.BaseURL); err != nil {
			return nil, fmt.Errorf("base_url: %w", err)
		}
		return &HTTPProvider{name: name, def: def, client: hc}, nil
	}
}

func (p *HTTPProvider) Name() string { return p.name }

func (p *HTTPProvider) Operations() []OperationMeta {
	out := make([]OperationMeta, 0, len(p.def.Ops))
	for name, op := range p.def.Ops {
		out = append(out, OperationMeta{Name: name, Method: op.Method, Path: op.Path, Summary: op.Summary})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Test runs the definition's test request, if any. Without one, the
// credential is accepted when every secret is non-empty.
func (p *HTTPProvider) Test(ctx context.Context, secrets map[string]string) error {
	if p.def.Test == nil {
		for k, v := range secrets {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("%s is empty", k)
			}
		}
		return nil
	}
	_, err := p.do(ctx, *p.def.Test, Call{Secrets: secrets})
	return err
}

func (p *HTTPProvider) Call(ctx context.Context, call Call) (*Result, error) {
	op, ok := p.def.Ops[call.Operation]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, call.Operation)
	}
	return p.do(ctx, op, call)
}

func (p *HTTPProvider) do(ctx context.Context, op OperationDef, call Call) (*Result, error) {
	scope := map[string]any{
		"payload": call.Payload,
		"secrets": call.Secrets,
		"config":  call.Config,
	}

	full := strings.TrimRight(p.def.BaseURL, "/") + resolvePath(op.Path, scope)
	if len(op.Query) > 0 {
		q := url.Values{}
		keys := make([]string, 0, len(op.Query))
		for k := range op.Query {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if v := resolve(op.Query[k], scope); v != "" {
				q.Set(k, v)
			}
		}
		if enc := q.Encode(); enc != "" {
			full += "?" + enc
		}
	}

	var body io.Reader
	if op.Body != nil {
		b, err := json.Marshal(resolveValue(op.Body, scope))
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		body = bytes.NewReader(b)
	}
	method := strings.ToUpper(op.Method)
	if method == "" {
		method = http.MethodGet
	}
	req, err := http.NewRequestWithContext(ctx, method, full, body)
	if err != nil {
		return nil, err
	}
	for k, v := range op.Headers {
		req.Header.Set(k, resolve(v, scope))
	}
	if body != nil && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s unreachable: %w", p.name, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", p.name, err)
	}

	var data any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			data = string(raw)
		}
	}

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	if ok && op.Success != "" {
		v, _ := jmes.Search(op.Success, data)
		ok = truthy(v)
	}
	if !ok {
		msg := ""
		if op.Error != "" {
			if v, _ := jmes.Search(op.Error, data); v != nil {
				msg = fmt.Sprintf("%v", v)
			}
		}
		if msg == "" {
			msg = fmt.Sprintf("%s returned %d", p.name, resp.StatusCode)
		}
		return nil, errors.New(msg)
	}

	res := &Result{Data: data}
	if op.Result != "" {
		if v, err := jmes.Search(op.Result, data); err == nil {
			res.Data = v
		}
	}
	if op.Tokens != "" {
		if v, err := jmes.Search(op.Tokens, data); err == nil {
			res.TokensUsed = toInt64(v)
		}
	}
	if op.Cost != "" {
		if v, err := jmes.Search(op.Cost, data); err == nil {
			res.CostCents = toInt64(v)
		}
	}
	return res, nil
}

// resolvePath fills {{...}} placeholders in a path, escaping each value.
func resolvePath(p string, scope map[string]any) string {
	return placeholderRe.ReplaceAllStringFunc(p, func(m string) string {
		return url.PathEscape(resolve(m, scope))
	})
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
