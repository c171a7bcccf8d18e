package client

import (
	"context"
	"net/url"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// IntegrationsService covers the catalog, credentials, installs, dispatch and quotas.
type IntegrationsService struct {
	client *Client
}

// IntegrationFilter narrows a catalog listing. Empty fields are not sent.
type IntegrationFilter struct {
	Category string
	Search   string
	models.ListParams
}

// CredentialFilter narrows a credential listing.
type CredentialFilter struct {
	IntegrationID string
}

// UserIntegrationFilter narrows an install listing.
type UserIntegrationFilter struct {
	IntegrationID   string
	IncludeInactive bool
}

func (s *IntegrationsService) List(ctx context.Context, f IntegrationFilter) (*models.Page[models.Integration], error) {
	q := newQuery().str("category", f.Category).str("search", f.Search).page(f.ListParams)
	var out models.Page[models.Integration]
	if err := s.client.get(ctx, q.path("/integrations"), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IntegrationsService) Get(ctx context.Context, id string) (*models.Integration, error) {
	var out models.Integration
	if err := s.client.get(ctx, "/integrations/"+url.PathEscape(id), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FormSchema returns the credential fields for an integration.
func (s *IntegrationsService) FormSchema(ctx context.Context, integrationID string) (*models.FormSchema, error) {
	var out models.FormSchema
	if err := s.client.get(ctx, "/integrations/"+url.PathEscape(integrationID)+"/form-schema", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IntegrationsService) ListCredentials(ctx context.Context, f CredentialFilter) ([]models.IntegrationCredential, error) {
	q := newQuery().str("integration_id", f.IntegrationID)
	var out []models.IntegrationCredential
	if err := s.client.get(ctx, q.path("/integrations/credentials"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IntegrationsService) CreateCredential(ctx context.Context, req models.CreateCredentialRequest) (*models.IntegrationCredential, error) {
	var out models.IntegrationCredential
	if err := s.client.post(ctx, "/integrations/credentials", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IntegrationsService) UpdateCredential(ctx context.Context, id string, req models.UpdateCredentialRequest) (*models.IntegrationCredential, error) {
	var out models.IntegrationCredential
	if err := s.client.put(ctx, "/integrations/credentials/"+url.PathEscape(id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IntegrationsService) DeleteCredential(ctx context.Context, id string) error {
	return s.client.delete(ctx, "/integrations/credentials/"+url.PathEscape(id))
}

// TestCredential runs the connection test and returns the final status.
func (s *IntegrationsService) TestCredential(ctx context.Context, credentialID string) (*models.TestCredentialResponse, error) {
	var out models.TestCredentialResponse
	req := models.TestCredentialRequest{CredentialID: credentialID}
	if err := s.client.post(ctx, "/integrations/credentials/test", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IntegrationsService) ListUserIntegrations(ctx context.Context, f UserIntegrationFilter) ([]models.UserIntegration, error) {
	q := newQuery().str("integration_id", f.IntegrationID).flag("include_inactive", f.IncludeInactive)
	var out []models.UserIntegration
	if err := s.client.get(ctx, q.path("/integrations/user-integrations"), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IntegrationsService) Install(ctx context.Context, req models.InstallRequest) (*models.UserIntegration, error) {
	var out models.UserIntegration
	if err := s.client.post(ctx, "/integrations/install", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Uninstall deactivates an install. The server keeps the row as inactive.
func (s *IntegrationsService) Uninstall(ctx context.Context, userIntegrationID string) error {
	return s.client.delete(ctx, "/integrations/user-integrations/"+url.PathEscape(userIntegrationID))
}

// UpdateConfig merges changed keys into the install's config server-side.
func (s *IntegrationsService) UpdateConfig(ctx context.Context, userIntegrationID string, changed map[string]any) (*models.UserIntegration, error) {
	var out models.UserIntegration
	path := "/integrations/user-integrations/" + url.PathEscape(userIntegrationID)
	if err := s.client.patch(ctx, path, models.UpdateConfigRequest{Config: changed}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Dispatch forwards an operation to a provider. A provider failure comes back
// as Success=false with a nil error.
func (s *IntegrationsService) Dispatch(ctx context.Context, req models.DispatchRequest) (*models.DispatchResponse, error) {
	var out models.DispatchResponse
	if err := s.client.post(ctx, "/integrations/dispatch", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *IntegrationsService) GetCredentialQuota(ctx context.Context, credentialID string) ([]models.QuotaUsage, error) {
	var out []models.QuotaUsage
	if err := s.client.get(ctx, "/integrations/credentials/"+url.PathEscape(credentialID)+"/quota", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *IntegrationsService) SetCredentialQuota(ctx context.Context, credentialID string, limits models.QuotaLimits) ([]models.QuotaUsage, error) {
	var out []models.QuotaUsage
	if err := s.client.post(ctx, "/integrations/credentials/"+url.PathEscape(credentialID)+"/quota", limits, &out); err != nil {
		return nil, err
	}
	return out, nil
}
