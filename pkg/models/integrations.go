// Package models holds the wire shapes shared by the API client and the
// integrations service.
package models

import "time"

// TestStatus is the trust level of a credential.
type TestStatus string

const (
	TestStatusNotTested TestStatus = "not_tested"
	TestStatusTesting   TestStatus = "testing"
	TestStatusSuccess   TestStatus = "success"
	TestStatusFailed    TestStatus = "failed"
)

// InstallStatus is the lifecycle of a UserIntegration.
type InstallStatus string

const (
	InstallStatusInstalling InstallStatus = "installing"
	InstallStatusActive     InstallStatus = "active"
	InstallStatusFailed     InstallStatus = "failed"
	InstallStatusInactive   InstallStatus = "inactive"
)

// CredentialField is one entry of an integration's credentials_schema.
type CredentialField struct {
	Name        string   `json:"name" yaml:"name"`
	Label       string   `json:"label,omitempty" yaml:"label,omitempty"`
	Type        string   `json:"type" yaml:"type"` // text | password | email | url | select | number
	Required    bool     `json:"required" yaml:"required"`
	Options     []string `json:"options,omitempty" yaml:"options,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	HelpText    string   `json:"help_text,omitempty" yaml:"help_text,omitempty"`
}

// Integration is a catalog entry for a third-party provider. Read-only for tenants.
type Integration struct {
	ID                string            `json:"id" yaml:"id"`
	Name              string            `json:"name" yaml:"name"`
	Slug              string            `json:"slug" yaml:"slug"`
	Category          string            `json:"category" yaml:"category"`
	Description       string            `json:"description,omitempty" yaml:"description,omitempty"`
	AuthType          string            `json:"auth_type" yaml:"auth_type"`
	Provider          string            `json:"provider,omitempty" yaml:"provider,omitempty"`
	CredentialsSchema []CredentialField `json:"credentials_schema" yaml:"credentials_schema"`
	ConfigSchema      map[string]any    `json:"config_schema,omitempty" yaml:"config_schema,omitempty"`
	DocumentationURL  string            `json:"documentation_url,omitempty" yaml:"documentation_url,omitempty"`
	IsActive          bool              `json:"is_active" yaml:"is_active"`
}

// RequiredFields returns the names of schema fields marked required.
func (i Integration) RequiredFields() []string {
	var out []string
	for _, f := range i.CredentialsSchema {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

// FormSchema is the credential form definition for one integration.
type FormSchema struct {
	IntegrationID string            `json:"integration_id"`
	AuthType      string            `json:"auth_type,omitempty"`
	Fields        []CredentialField `json:"fields"`
}

// QuotaLimits are per-period usage ceilings. Zero means unlimited.
type QuotaLimits struct {
	Daily   int64 `json:"daily,omitempty"`
	Monthly int64 `json:"monthly,omitempty"`
}

// IntegrationCredential is a tenant-scoped secret bundle bound to one integration.
// Secret values never leave the service.
type IntegrationCredential struct {
	ID                string       `json:"id"`
	TenantID          string       `json:"tenant_id"`
	UserID            string       `json:"user_id"`
	IntegrationID     string       `json:"integration_id"`
	CredentialName    string       `json:"credential_name"`
	CredentialType    string       `json:"credential_type"`
	LastTestStatus    TestStatus   `json:"last_test_status"`
	LastTestedAt      *time.Time   `json:"last_tested_at,omitempty"`
	LastTestError     string       `json:"last_test_error,omitempty"`
	ExpiresAt         *time.Time   `json:"expires_at,omitempty"`
	CustomQuotaLimits *QuotaLimits `json:"custom_quota_limits,omitempty"`
	CreatedAt         time.Time    `json:"created_at"`
	UpdatedAt         time.Time    `json:"updated_at"`
}

// Verified reports whether the credential passed its last test.
func (c IntegrationCredential) Verified() bool { return c.LastTestStatus == TestStatusSuccess }

// UserIntegration records a tenant's activation of an integration with a credential.
type UserIntegration struct {
	ID            string         `json:"id"`
	TenantID      string         `json:"tenant_id"`
	UserID        string         `json:"user_id"`
	IntegrationID string         `json:"integration_id"`
	CredentialID  string         `json:"credential_id"`
	Status        InstallStatus  `json:"status"`
	Config        map[string]any `json:"config,omitempty"`
	SyncStatus    string         `json:"sync_status,omitempty"`
	ErrorCount    int            `json:"error_count"`
	LastError     string         `json:"last_error,omitempty"`
	InstalledAt   time.Time      `json:"installed_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	UninstalledAt *time.Time     `json:"uninstalled_at,omitempty"`
}

// CreateCredentialRequest is the body of POST /integrations/credentials.
type CreateCredentialRequest struct {
	IntegrationID     string            `json:"integration_id" validate:"required"`
	CredentialName    string            `json:"credential_name" validate:"required,max=120"`
	Credentials       map[string]string `json:"credentials" validate:"required"`
	CredentialType    string            `json:"credential_type" validate:"required"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	CustomQuotaLimits *QuotaLimits      `json:"custom_quota_limits,omitempty"`
}

// UpdateCredentialRequest is the body of PUT /integrations/credentials/{id}.
// Nil fields are left unchanged.
type UpdateCredentialRequest struct {
	CredentialName    *string           `json:"credential_name,omitempty" validate:"omitempty,min=1,max=120"`
	Credentials       map[string]string `json:"credentials,omitempty"`
	ExpiresAt         *time.Time        `json:"expires_at,omitempty"`
	CustomQuotaLimits *QuotaLimits      `json:"custom_quota_limits,omitempty"`
}

// TestCredentialRequest is the body of POST /integrations/credentials/test.
type TestCredentialRequest struct {
	CredentialID string `json:"credential_id" validate:"required"`
}

// TestCredentialResponse carries the final status of a test run.
type TestCredentialResponse struct {
	Success    bool                   `json:"success"`
	Status     TestStatus             `json:"status"`
	Message    string                 `json:"message,omitempty"`
	Error      string                 `json:"error,omitempty"`
	Credential *IntegrationCredential `json:"credential,omitempty"`
}

// InstallRequest is the body of POST /integrations/install.
type InstallRequest struct {
	IntegrationID string         `json:"integration_id" validate:"required"`
	CredentialID  string         `json:"credential_id" validate:"required"`
	Config        map[string]any `json:"config,omitempty"`
}

// UpdateConfigRequest carries only the changed config keys.
type UpdateConfigRequest struct {
	Config map[string]any `json:"config" validate:"required"`
}

// DispatchRequest is an ephemeral provider RPC.
type DispatchRequest struct {
	Provider     string         `json:"provider" validate:"required"`
	Operation    string         `json:"operation" validate:"required"`
	Payload      map[string]any `json:"payload"`
	CredentialID string         `json:"credential_id,omitempty"`
}

// DispatchResponse reports a provider outcome. Provider failures are data
// (Success=false), not transport errors.
type DispatchResponse struct {
	Success        bool   `json:"success"`
	Result         any    `json:"result,omitempty"`
	Error          string `json:"error,omitempty"`
	ResponseTimeMs int64  `json:"response_time_ms"`
	TokensUsed     *int64 `json:"tokens_used,omitempty"`
	CostCents      *int64 `json:"cost_cents,omitempty"`
}

// QuotaPeriod is the accounting window of a QuotaUsage.
type QuotaPeriod string

const (
	QuotaDaily   QuotaPeriod = "daily"
	QuotaMonthly QuotaPeriod = "monthly"
)

// QuotaUsage is a per-credential, per-period consumption snapshot.
type QuotaUsage struct {
	Provider   string      `json:"provider"`
	Period     QuotaPeriod `json:"period"`
	Used       int64       `json:"used"`
	Limit      int64       `json:"limit"`
	Percentage int         `json:"percentage"`
	OverQuota  bool        `json:"over_quota"`
	ResetAt    time.Time   `json:"reset_at"`
}
