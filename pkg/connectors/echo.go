package connectors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Echo is a sandbox provider. "echo" returns the payload, "fail" fails with
// payload.error. payload.tokens and payload.cost_cents are reported as usage.
// A secret whose value starts with "invalid" fails the connection test.
type Echo struct {
	name string
}

func NewEcho(name string, _ Definition) (Provider, error) {
	return &Echo{name: name}, nil
}

func (e *Echo) Name() string { return e.name }

func (e *Echo) Operations() []OperationMeta {
	return []OperationMeta{
		{Name: "echo", Summary: "Return the payload unchanged"},
		{Name: "fail", Summary: "Fail with payload.error"},
	}
}

func (e *Echo) Test(_ context.Context, secrets map[string]string) error {
	if len(secrets) == 0 {
		return errors.New("no credentials supplied")
	}
	for k, v := range secrets {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s is empty", k)
		}
		if strings.HasPrefix(v, "invalid") {
			return fmt.Errorf("%s was rejected by %s", k, e.name)
		}
	}
	return nil
}

func (e *Echo) Call(_ context.Context, call Call) (*Result, error) {
	switch call.Operation {
	case "echo":
		return &Result{
			Data:       call.Payload,
			TokensUsed: intField(call.Payload, "tokens"),
			CostCents:  intField(call.Payload, "cost_cents"),
		}, nil
	case "fail":
		msg, _ := call.Payload["error"].(string)
		if msg == "" {
			msg = "provider error"
		}
		return nil, errors.New(msg)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, call.Operation)
}

func intField(m map[string]any, key string) *int64 {
	return toInt64(m[key])
}

func toInt64(v any) *int64 {
	var n int64
	switch t := v.(type) {
	case float64:
		n = int64(t)
	case int:
		n = int64(t)
	case int64:
		n = t
	default:
		return nil
	}
	return &n
}
