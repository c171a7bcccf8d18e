package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

func TestGuard_Default(t *testing.T) {
	g, err := NewGuard(context.Background(), "", nil)
	require.NoError(t, err)
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name   string
		cred   models.IntegrationCredential
		allow  bool
		reason string
	}{
		{"verified", models.IntegrationCredential{LastTestStatus: models.TestStatusSuccess}, true, ""},
		{"not tested", models.IntegrationCredential{LastTestStatus: models.TestStatusNotTested}, false, "invalid credential"},
		{"failed", models.IntegrationCredential{LastTestStatus: models.TestStatusFailed}, false, "invalid credential"},
		{"expired", models.IntegrationCredential{LastTestStatus: models.TestStatusSuccess, ExpiresAt: &past}, false, "invalid credential"},
		{"not yet expired", models.IntegrationCredential{LastTestStatus: models.TestStatusSuccess, ExpiresAt: &future}, true, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := g.Evaluate(context.Background(), Input{Provider: "slack", Credential: tt.cred, Now: now})
			assert.Equal(t, tt.allow, d.Allowed())
			assert.Equal(t, tt.reason, d.Reason)
		})
	}
}

func TestGuard_CustomModule(t *testing.T) {
	mod := `package dispatch

import rego.v1

default decide := {"status": "BLOCKED", "reason": "provider disabled"}

decide := {"status": "ALLOW"} if input.provider == "sandbox"
`
	g, err := NewGuardFromModule(context.Background(), "custom.rego", mod, nil)
	require.NoError(t, err)

	d := g.Evaluate(context.Background(), Input{Provider: "openai", Now: time.Now()})
	assert.False(t, d.Allowed())
	assert.Equal(t, "provider disabled", d.Reason)

	d = g.Evaluate(context.Background(), Input{Provider: "sandbox", Now: time.Now()})
	assert.True(t, d.Allowed())
}

func TestGuard_CompileError(t *testing.T) {
	_, err := NewGuardFromModule(context.Background(), "bad.rego", "package dispatch\ndecide := {", nil)
	assert.Error(t, err)
}

func TestGuard_MissingFile(t *testing.T) {
	_, err := NewGuard(context.Background(), "/nonexistent/policy.rego", nil)
	assert.Error(t, err)
}

func TestGuard_MalformedDecisionBlocks(t *testing.T) {
	failed := models.IntegrationCredential{LastTestStatus: models.TestStatusFailed}
	tests := []struct {
		name   string
		decide string
	}{
		{"boolean", `decide := false`},
		{"bare string", `decide := "BLOCKED"`},
		{"allow string", `decide := "ALLOW"`},
		{"map without status", `decide := {"reason": "none"}`},
		{"status not a string", `decide := {"status": true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGuardFromModule(context.Background(), "custom.rego", "package dispatch\n\n"+tt.decide+"\n", nil)
			require.NoError(t, err)

			d := g.Evaluate(context.Background(), Input{Provider: "sandbox", Credential: failed, Now: time.Now()})

			assert.False(t, d.Allowed())
			assert.Equal(t, "policy_error", d.Reason)
		})
	}
}

func TestGuard_UndefinedDecisionBlocks(t *testing.T) {
	g, err := NewGuardFromModule(context.Background(), "custom.rego", "package dispatch\n\nimport rego.v1\n\ndecide := {\"status\": \"ALLOW\"} if input.provider == \"never\"\n", nil)
	require.NoError(t, err)

	d := g.Evaluate(context.Background(), Input{Provider: "sandbox", Now: time.Now()})

	assert.False(t, d.Allowed())
	assert.Equal(t, "policy_error", d.Reason)
}
