package hubapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/problems"
)

func (a *App) listInstalls(w http.ResponseWriter, r *http.Request) {
	list, err := a.store.ListInstalls(r.Context(), principal(r).TenantID, boolParam(r, "include_inactive"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if id := r.URL.Query().Get("integration_id"); id != "" {
		filtered := list[:0]
		for _, ui := range list {
			if ui.IntegrationID == id {
				filtered = append(filtered, ui)
			}
		}
		list = filtered
	}
	writeJSON(w, list, http.StatusOK)
}

// install activates an integration with a verified credential. The record is
// written as installing, then flipped to active once the provider is known to
// the registry, or to failed if it is not.
func (a *App) install(w http.ResponseWriter, r *http.Request) {
	var req models.InstallRequest
	if !a.decode(w, r, &req) {
		return
	}
	p := principal(r)
	entry, err := a.catalog.Get(req.IntegrationID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.store.GetCredential(r.Context(), p.TenantID, req.CredentialID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if c.IntegrationID != req.IntegrationID {
		problems.Write(w, http.StatusUnprocessableEntity, CodeCredentialMismatch,
			"Credential belongs to a different integration", nil)
		return
	}
	if !c.Verified() {
		problems.Write(w, http.StatusUnprocessableEntity, CodeCredentialNotVerified,
			"Credential must pass a connection test before installing",
			map[string]any{"last_test_status": c.LastTestStatus})
		return
	}

	now := a.now().UTC()
	ui := &models.UserIntegration{
		ID:            a.newID(),
		TenantID:      p.TenantID,
		UserID:        p.UserID,
		IntegrationID: req.IntegrationID,
		CredentialID:  req.CredentialID,
		Status:        models.InstallStatusInstalling,
		InstalledAt:   now,
		UpdatedAt:     now,
	}
	if err := a.store.CreateInstall(r.Context(), ui); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			problems.Write(w, http.StatusConflict, CodeAlreadyInstalled, "Integration is already installed", nil)
			return
		}
		a.fail(w, r, err)
		return
	}

	ui.Config = req.Config
	to := models.InstallStatusActive
	if _, err := a.reg.Get(entry.Provider); err != nil {
		to = models.InstallStatusFailed
		ui.ErrorCount++
		ui.LastError = err.Error()
	} else {
		ui.SyncStatus = "idle"
	}
	if err := a.moveInstall(r.Context(), ui, to); err != nil {
		a.fail(w, r, err)
		return
	}
	a.metrics.installs.WithLabelValues(ui.IntegrationID, string(ui.Status)).Inc()
	a.log.Infow("integration installed", "tenant_id", p.TenantID, "integration_id", ui.IntegrationID, "status", ui.Status)
	writeJSON(w, ui, http.StatusCreated)
}

// uninstall is a soft delete: the record stays, inactive.
func (a *App) uninstall(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	ui, err := a.store.GetInstall(r.Context(), p.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if ui.Status != models.InstallStatusInactive {
		now := a.now().UTC()
		ui.UninstalledAt = &now
		if err := a.moveInstall(r.Context(), ui, models.InstallStatusInactive); err != nil {
			a.fail(w, r, err)
			return
		}
		a.log.Infow("integration uninstalled", "tenant_id", p.TenantID, "integration_id", ui.IntegrationID)
	}
	writeJSON(w, ui, http.StatusOK)
}

// updateInstallConfig merges the given keys into the stored config.
func (a *App) updateInstallConfig(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateConfigRequest
	if !a.decode(w, r, &req) {
		return
	}
	p := principal(r)
	ui, err := a.store.GetInstall(r.Context(), p.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if !installs.Configurable(ui.Status) {
		problems.Write(w, http.StatusConflict, CodeInstallInactive, "Integration is uninstalled", nil)
		return
	}
	if ui.Config == nil {
		ui.Config = map[string]any{}
	}
	for k, v := range req.Config {
		ui.Config[k] = v
	}
	ui.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateInstall(r.Context(), ui); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, ui, http.StatusOK)
}

// moveInstall applies one step of the install state machine and stores it.
func (a *App) moveInstall(ctx context.Context, ui *models.UserIntegration, to models.InstallStatus) error {
	if !installs.CanTransition(ui.Status, to) {
		return fmt.Errorf("%w: %s -> %s", installs.ErrInvalidTransition, ui.Status, to)
	}
	ui.Status = to
	ui.UpdatedAt = a.now().UTC()
	return a.store.UpdateInstall(ctx, ui)
}
