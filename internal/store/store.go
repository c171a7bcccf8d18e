// Package store persists tenant credentials, installs and quota limits.
package store

import (
	"context"
	"errors"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrDuplicate wraps unique violations: a credential name reused within
	// (tenant, integration), or a second live install of an integration.
	ErrDuplicate = errors.New("duplicate")
)

// Credential is the stored form of a credential. Secrets stay sealed.
type Credential struct {
	models.IntegrationCredential
	Sealed []byte
}

// Store is tenant-scoped: every read and write names the tenant, and rows of
// other tenants are invisible.
type Store interface {
	CreateCredential(ctx context.Context, c *Credential) error
	GetCredential(ctx context.Context, tenantID, id string) (*Credential, error)
	ListCredentials(ctx context.Context, tenantID, integrationID string) ([]Credential, error)
	UpdateCredential(ctx context.Context, c *Credential) error
	DeleteCredential(ctx context.Context, tenantID, id string) error

	// CreateInstall fails with ErrDuplicate when the integration already has
	// an installing or active row for the tenant.
	CreateInstall(ctx context.Context, ui *models.UserIntegration) error
	GetInstall(ctx context.Context, tenantID, id string) (*models.UserIntegration, error)
	ListInstalls(ctx context.Context, tenantID string, includeInactive bool) ([]models.UserIntegration, error)
	UpdateInstall(ctx context.Context, ui *models.UserIntegration) error

	// GetQuota returns nil limits when none were set.
	GetQuota(ctx context.Context, tenantID, credentialID string) (*models.QuotaLimits, error)
	SetQuota(ctx context.Context, tenantID, credentialID string, limits models.QuotaLimits) error
}
