// Package installs drives the per-integration install state machine:
//
//	uninstalled -> installing -> active | failed
//	installing | active | failed -> inactive (uninstall)
//	failed | inactive -> installing (reinstall)
//
// installing and active are live: a tenant has at most one live install per
// integration and a live install pins its credential.
//
// Uninstall is a soft status flip; the server keeps the row for audit.
package installs

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/client"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

var (
	ErrCredentialNotVerified = errors.New("credential has not passed its connection test")
	ErrCredentialMismatch    = errors.New("credential belongs to a different integration")
	ErrAlreadyActive         = errors.New("integration is already installed")
	ErrCredentialInUse       = errors.New("credential is used by an active install")
	ErrInvalidTransition     = errors.New("invalid install status transition")
	ErrInstallInactive       = errors.New("integration is uninstalled")
)

// API is the slice of the integrations surface the manager drives.
type API interface {
	ListUserIntegrations(ctx context.Context, f client.UserIntegrationFilter) ([]models.UserIntegration, error)
	Install(ctx context.Context, req models.InstallRequest) (*models.UserIntegration, error)
	Uninstall(ctx context.Context, userIntegrationID string) error
	UpdateConfig(ctx context.Context, userIntegrationID string, changed map[string]any) (*models.UserIntegration, error)
}

type Manager struct {
	api API
	log *zap.SugaredLogger
}

func NewManager(api API, log *zap.SugaredLogger) *Manager {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Manager{api: api, log: log}
}

// Install activates integrationID with cred. The credential must have
// passed its test; the server enforces the same rule.
func (m *Manager) Install(ctx context.Context, integrationID string, cred models.IntegrationCredential, config map[string]any) (*models.UserIntegration, error) {
	if !cred.Verified() {
		return nil, fmt.Errorf("%w: %s is %s", ErrCredentialNotVerified, cred.ID, cred.LastTestStatus)
	}
	if cred.IntegrationID != "" && cred.IntegrationID != integrationID {
		return nil, fmt.Errorf("%w: %s", ErrCredentialMismatch, cred.ID)
	}
	active, err := m.Active(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyActive, active.ID)
	}

	ui, err := m.api.Install(ctx, models.InstallRequest{
		IntegrationID: integrationID,
		CredentialID:  cred.ID,
		Config:        config,
	})
	if err != nil {
		return nil, err
	}
	m.log.Infow("integration installed", "integration_id", integrationID, "user_integration_id", ui.ID, "status", ui.Status)
	return ui, nil
}

// Active returns the live install for integrationID, or nil.
func (m *Manager) Active(ctx context.Context, integrationID string) (*models.UserIntegration, error) {
	list, err := m.api.ListUserIntegrations(ctx, client.UserIntegrationFilter{IntegrationID: integrationID})
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i].IntegrationID == integrationID && Live(list[i].Status) {
			return &list[i], nil
		}
	}
	return nil, nil
}

func (m *Manager) Uninstall(ctx context.Context, userIntegrationID string) error {
	if err := m.api.Uninstall(ctx, userIntegrationID); err != nil {
		return err
	}
	m.log.Infow("integration uninstalled", "user_integration_id", userIntegrationID)
	return nil
}

// UpdateConfig sends only the keys of desired that differ from the current
// config. Nothing is sent when there is no change.
func (m *Manager) UpdateConfig(ctx context.Context, current models.UserIntegration, desired map[string]any) (*models.UserIntegration, error) {
	if !Configurable(current.Status) {
		return nil, fmt.Errorf("%w: %s", ErrInstallInactive, current.ID)
	}
	changed := ConfigDiff(current.Config, desired)
	if len(changed) == 0 {
		return &current, nil
	}
	return m.api.UpdateConfig(ctx, current.ID, changed)
}

// GuardCredentialDelete fails when a live install still uses credentialID.
func (m *Manager) GuardCredentialDelete(ctx context.Context, credentialID string) error {
	list, err := m.api.ListUserIntegrations(ctx, client.UserIntegrationFilter{})
	if err != nil {
		return err
	}
	for _, ui := range list {
		if ui.CredentialID == credentialID && Live(ui.Status) {
			return fmt.Errorf("%w: %s", ErrCredentialInUse, ui.ID)
		}
	}
	return nil
}

// ConfigDiff returns the keys of desired whose values differ from current.
func ConfigDiff(current, desired map[string]any) map[string]any {
	out := map[string]any{}
	for k, v := range desired {
		if old, ok := current[k]; ok && reflect.DeepEqual(old, v) {
			continue
		}
		out[k] = v
	}
	return out
}

// CanTransition reports whether an install may move between statuses.
// The empty status stands for "not installed".
func CanTransition(from, to models.InstallStatus) bool {
	switch from {
	case "", models.InstallStatusInactive:
		return to == models.InstallStatusInstalling
	case models.InstallStatusInstalling:
		return to == models.InstallStatusActive || to == models.InstallStatusFailed || to == models.InstallStatusInactive
	case models.InstallStatusActive:
		return to == models.InstallStatusInactive
	case models.InstallStatusFailed:
		return to == models.InstallStatusInstalling || to == models.InstallStatusInactive
	}
	return false
}

// Live reports whether an install occupies its integration's slot.
func Live(s models.InstallStatus) bool {
	return s == models.InstallStatusInstalling || s == models.InstallStatusActive
}

// Configurable reports whether an install's config may still change.
func Configurable(s models.InstallStatus) bool {
	return s != "" && s != models.InstallStatusInactive
}
