package hubapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/credentials"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/problems"
)

const resultSaveTimeout = 5 * time.Second

func (a *App) listCredentials(w http.ResponseWriter, r *http.Request) {
	creds, err := a.store.ListCredentials(r.Context(), principal(r).TenantID, r.URL.Query().Get("integration_id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	out := make([]models.IntegrationCredential, 0, len(creds))
	for _, c := range creds {
		out = append(out, c.IntegrationCredential)
	}
	writeJSON(w, out, http.StatusOK)
}

func (a *App) createCredential(w http.ResponseWriter, r *http.Request) {
	var req models.CreateCredentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	entry, err := a.catalog.Get(req.IntegrationID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := credentials.ValidateInput(entry.CredentialsSchema, req.CredentialName, req.Credentials); err != nil {
		a.fail(w, r, err)
		return
	}
	sealed, err := a.sealer.Seal(req.Credentials)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p := principal(r)
	now := a.now().UTC()
	c := &store.Credential{
		IntegrationCredential: models.IntegrationCredential{
			ID:                a.newID(),
			TenantID:          p.TenantID,
			UserID:            p.UserID,
			IntegrationID:     req.IntegrationID,
			CredentialName:    strings.TrimSpace(req.CredentialName),
			CredentialType:    req.CredentialType,
			LastTestStatus:    models.TestStatusNotTested,
			ExpiresAt:         req.ExpiresAt,
			CustomQuotaLimits: req.CustomQuotaLimits,
			CreatedAt:         now,
			UpdatedAt:         now,
		},
		Sealed: sealed,
	}
	if err := a.store.CreateCredential(r.Context(), c); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			problems.Write(w, http.StatusConflict, CodeUniqueViolation,
				"A credential with this name already exists for the integration",
				map[string]any{"field": "credential_name"})
			return
		}
		a.fail(w, r, err)
		return
	}
	a.log.Infow("credential created", "tenant_id", p.TenantID, "credential_id", c.ID, "integration_id", c.IntegrationID)
	writeJSON(w, c.IntegrationCredential, http.StatusCreated)
}

func (a *App) updateCredential(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCredentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	p := principal(r)
	c, err := a.store.GetCredential(r.Context(), p.TenantID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if req.CredentialName != nil {
		c.CredentialName = strings.TrimSpace(*req.CredentialName)
	}
	if req.Credentials != nil {
		entry, err := a.catalog.Get(c.IntegrationID)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		if err := credentials.ValidateInput(entry.CredentialsSchema, c.CredentialName, req.Credentials); err != nil {
			a.fail(w, r, err)
			return
		}
		if c.Sealed, err = a.sealer.Seal(req.Credentials); err != nil {
			a.fail(w, r, err)
			return
		}
		// New secrets have not been tested.
		c.LastTestStatus = models.TestStatusNotTested
		c.LastTestedAt = nil
		c.LastTestError = ""
	}
	if req.ExpiresAt != nil {
		c.ExpiresAt = req.ExpiresAt
	}
	if req.CustomQuotaLimits != nil {
		c.CustomQuotaLimits = req.CustomQuotaLimits
	}
	c.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateCredential(r.Context(), c); err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, c.IntegrationCredential, http.StatusOK)
}

func (a *App) deleteCredential(w http.ResponseWriter, r *http.Request) {
	p := principal(r)
	id := chi.URLParam(r, "id")
	userInstalls, err := a.store.ListInstalls(r.Context(), p.TenantID, false)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	for _, ui := range userInstalls {
		if ui.CredentialID == id && installs.Live(ui.Status) {
			problems.Write(w, http.StatusConflict, CodeCredentialInUse,
				"Credential is used by an active integration; uninstall it first",
				map[string]any{"user_integration_id": ui.ID})
			return
		}
	}
	if err := a.store.DeleteCredential(r.Context(), p.TenantID, id); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// testCredential runs the provider's connection test. The stored status is
// testing while the provider is contacted and success or failed afterwards;
// the response carries that final state.
func (a *App) testCredential(w http.ResponseWriter, r *http.Request) {
	var req models.TestCredentialRequest
	if !a.decode(w, r, &req) {
		return
	}
	p := principal(r)
	c, err := a.store.GetCredential(r.Context(), p.TenantID, req.CredentialID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	c.LastTestStatus = models.TestStatusTesting
	c.UpdatedAt = a.now().UTC()
	if err := a.store.UpdateCredential(r.Context(), c); err != nil {
		a.fail(w, r, err)
		return
	}

	testErr := a.runTest(r.Context(), c)
	now := a.now().UTC()
	c.LastTestedAt = &now
	c.UpdatedAt = now
	res := models.TestCredentialResponse{}
	if testErr != nil {
		c.LastTestStatus = models.TestStatusFailed
		c.LastTestError = testErr.Error()
		res.Error = testErr.Error()
		res.Message = "Connection test failed"
	} else {
		c.LastTestStatus = models.TestStatusSuccess
		c.LastTestError = ""
		res.Success = true
		res.Message = "Connection verified"
	}
	// The result is saved even when the caller has gone away, so the row never
	// stays in testing.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), resultSaveTimeout)
	defer cancel()
	if err := a.store.UpdateCredential(saveCtx, c); err != nil {
		a.log.Errorw("save test result", "tenant_id", p.TenantID, "credential_id", c.ID, "status", c.LastTestStatus, "err", err)
		a.markTestFailed(saveCtx, c)
		a.fail(w, r, err)
		return
	}
	a.metrics.credentialTests.WithLabelValues(c.IntegrationID, string(c.LastTestStatus)).Inc()
	a.log.Infow("credential tested", "tenant_id", p.TenantID, "credential_id", c.ID, "status", c.LastTestStatus)
	res.Status = c.LastTestStatus
	res.Credential = &c.IntegrationCredential
	writeJSON(w, res, http.StatusOK)
}

// markTestFailed is a best-effort write of failed after the real result could
// not be stored.
func (a *App) markTestFailed(ctx context.Context, c *store.Credential) {
	fallback := *c
	fallback.LastTestStatus = models.TestStatusFailed
	fallback.LastTestError = "test result could not be saved"
	if err := a.store.UpdateCredential(ctx, &fallback); err != nil {
		a.log.Errorw("mark test failed", "credential_id", c.ID, "err", err)
	}
}

func (a *App) runTest(ctx context.Context, c *store.Credential) error {
	entry, err := a.catalog.Get(c.IntegrationID)
	if err != nil {
		return err
	}
	prov, err := a.reg.Get(entry.Provider)
	if err != nil {
		return err
	}
	values, err := a.sealer.Open(c.Sealed)
	if err != nil {
		return errors.New("stored credential could not be decrypted")
	}
	ctx, cancel := context.WithTimeout(ctx, a.providerTimeout)
	defer cancel()
	return prov.Test(ctx, values)
}
