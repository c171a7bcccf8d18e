package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

type memStore struct {
	mu       sync.RWMutex
	creds    map[string]Credential
	installs map[string]models.UserIntegration
	quotas   map[string]models.QuotaLimits
}

func NewMemory() Store {
	return &memStore{
		creds:    map[string]Credential{},
		installs: map[string]models.UserIntegration{},
		quotas:   map[string]models.QuotaLimits{},
	}
}

func (m *memStore) CreateCredential(_ context.Context, c *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.nameTaken(c) {
		return fmt.Errorf("%w: credential name %q", ErrDuplicate, c.CredentialName)
	}
	m.creds[c.ID] = clone(*c)
	return nil
}

func (m *memStore) nameTaken(c *Credential) bool {
	for _, o := range m.creds {
		if o.ID != c.ID && o.TenantID == c.TenantID && o.IntegrationID == c.IntegrationID && o.CredentialName == c.CredentialName {
			return true
		}
	}
	return false
}

func (m *memStore) GetCredential(_ context.Context, tenantID, id string) (*Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[id]
	if !ok || c.TenantID != tenantID {
		return nil, fmt.Errorf("credential %s: %w", id, ErrNotFound)
	}
	out := clone(c)
	return &out, nil
}

func (m *memStore) ListCredentials(_ context.Context, tenantID, integrationID string) ([]Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Credential{}
	for _, c := range m.creds {
		if c.TenantID == tenantID && (integrationID == "" || c.IntegrationID == integrationID) {
			out = append(out, clone(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateCredential(_ context.Context, c *Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.creds[c.ID]
	if !ok || cur.TenantID != c.TenantID {
		return fmt.Errorf("credential %s: %w", c.ID, ErrNotFound)
	}
	if m.nameTaken(c) {
		return fmt.Errorf("%w: credential name %q", ErrDuplicate, c.CredentialName)
	}
	m.creds[c.ID] = clone(*c)
	return nil
}

func (m *memStore) DeleteCredential(_ context.Context, tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[id]
	if !ok || c.TenantID != tenantID {
		return fmt.Errorf("credential %s: %w", id, ErrNotFound)
	}
	delete(m.creds, id)
	delete(m.quotas, id)
	return nil
}

func (m *memStore) CreateInstall(_ context.Context, ui *models.UserIntegration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.installs {
		if o.TenantID == ui.TenantID && o.IntegrationID == ui.IntegrationID && installs.Live(o.Status) {
			return fmt.Errorf("%w: integration %s already installed", ErrDuplicate, ui.IntegrationID)
		}
	}
	m.installs[ui.ID] = cloneInstall(*ui)
	return nil
}

func (m *memStore) GetInstall(_ context.Context, tenantID, id string) (*models.UserIntegration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ui, ok := m.installs[id]
	if !ok || ui.TenantID != tenantID {
		return nil, fmt.Errorf("install %s: %w", id, ErrNotFound)
	}
	out := cloneInstall(ui)
	return &out, nil
}

func (m *memStore) ListInstalls(_ context.Context, tenantID string, includeInactive bool) ([]models.UserIntegration, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []models.UserIntegration{}
	for _, ui := range m.installs {
		if ui.TenantID != tenantID {
			continue
		}
		if ui.Status == models.InstallStatusInactive && !includeInactive {
			continue
		}
		out = append(out, cloneInstall(ui))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InstalledAt.Before(out[j].InstalledAt) })
	return out, nil
}

func (m *memStore) UpdateInstall(_ context.Context, ui *models.UserIntegration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.installs[ui.ID]
	if !ok || cur.TenantID != ui.TenantID {
		return fmt.Errorf("install %s: %w", ui.ID, ErrNotFound)
	}
	m.installs[ui.ID] = cloneInstall(*ui)
	return nil
}

func (m *memStore) GetQuota(_ context.Context, tenantID, credentialID string) (*models.QuotaLimits, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.creds[credentialID]
	if !ok || c.TenantID != tenantID {
		return nil, fmt.Errorf("credential %s: %w", credentialID, ErrNotFound)
	}
	l, ok := m.quotas[credentialID]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memStore) SetQuota(_ context.Context, tenantID, credentialID string, limits models.QuotaLimits) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.creds[credentialID]
	if !ok || c.TenantID != tenantID {
		return fmt.Errorf("credential %s: %w", credentialID, ErrNotFound)
	}
	m.quotas[credentialID] = limits
	return nil
}

func clone(c Credential) Credential {
	c.Sealed = append([]byte(nil), c.Sealed...)
	if c.CustomQuotaLimits != nil {
		l := *c.CustomQuotaLimits
		c.CustomQuotaLimits = &l
	}
	return c
}

func cloneInstall(ui models.UserIntegration) models.UserIntegration {
	if ui.Config != nil {
		cfg := make(map[string]any, len(ui.Config))
		for k, v := range ui.Config {
			cfg[k] = v
		}
		ui.Config = cfg
	}
	return ui
}
