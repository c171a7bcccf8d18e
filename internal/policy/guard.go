// Package policy decides whether a dispatch may reach the provider. The
// decision is a Rego module evaluated with OPA; a built-in module rejects
// credentials that are unverified or expired.
package policy

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

//go:embed dispatch.rego
var defaultModule string

const query = "data.dispatch.decide"

type DecisionStatus string

const (
	Allow   DecisionStatus = "ALLOW"
	Blocked DecisionStatus = "BLOCKED"
)

type Decision struct {
	Status DecisionStatus `json:"status"`
	Reason string         `json:"reason,omitempty"`
}

func (d Decision) Allowed() bool { return d.Status == Allow }

// Input is what the module sees as `input`.
type Input struct {
	TenantID   string
	Provider   string
	Operation  string
	Credential models.IntegrationCredential
	Installed  bool
	Now        time.Time
}

type Guard struct {
	query rego.PreparedEvalQuery
	log   *zap.SugaredLogger
}

// NewGuard compiles the module at path, or the built-in one when path is empty.
func NewGuard(ctx context.Context, path string, log *zap.SugaredLogger) (*Guard, error) {
	mod, name := defaultModule, "dispatch.rego"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy %s: %w", path, err)
		}
		mod, name = string(b), path
	}
	return NewGuardFromModule(ctx, name, mod, log)
}

func NewGuardFromModule(ctx context.Context, name, module string, log *zap.SugaredLogger) (*Guard, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	pq, err := rego.New(rego.Query(query), rego.Module(name, module)).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile policy: %w", err)
	}
	return &Guard{query: pq, log: log}, nil
}

// Evaluate never returns an error for a policy fault; it blocks with reason
// "policy_error" instead.
func (g *Guard) Evaluate(ctx context.Context, in Input) Decision {
	expires := ""
	if in.Credential.ExpiresAt != nil {
		expires = in.Credential.ExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	input := map[string]any{
		"tenant_id": in.TenantID,
		"provider":  in.Provider,
		"operation": in.Operation,
		"installed": in.Installed,
		"now":       in.Now.UTC().Format(time.RFC3339Nano),
		"credential": map[string]any{
			"id":               in.Credential.ID,
			"integration_id":   in.Credential.IntegrationID,
			"last_test_status": string(in.Credential.LastTestStatus),
			"expires_at":       expires,
		},
	}
	rs, err := g.query.Eval(ctx, rego.EvalInput(input))
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		g.log.Warnw("policy eval failed", "err", err, "provider", in.Provider)
		return Decision{Status: Blocked, Reason: "policy_error"}
	}
	m, _ := rs[0].Expressions[0].Value.(map[string]any)
	status, ok := m["status"].(string)
	if !ok {
		g.log.Warnw("policy returned no decision status", "provider", in.Provider, "value", rs[0].Expressions[0].Value)
		return Decision{Status: Blocked, Reason: "policy_error"}
	}
	dec := Decision{Status: Blocked}
	if status == string(Allow) {
		dec.Status = Allow
	}
	dec.Reason, _ = m["reason"].(string)
	return dec
}
