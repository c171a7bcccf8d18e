package tenants

import "github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"

// Tenant is the isolation boundary for credentials, installs and usage.
type Tenant struct {
	ID                string
	Slug              string
	Host              string // primary host (hub.acme.com)
	OAuthIssuer       string
	JWKSURL           string
	AcceptedAudiences []string // empty -> global audience
	// DefaultQuota applies to credentials without explicit or custom limits.
	DefaultQuota models.QuotaLimits
	Disabled     bool
}
