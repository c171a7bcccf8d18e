package hubapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/catalog"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/policy"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/connectors"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/quota"
)

const (
	errQuotaExceeded = "quota exceeded"
	errNotInstalled  = "integration not installed"
	errWrongProvider = "credential does not belong to this provider"
)

// dispatch answers 200 for every authenticated request whose credential
// resolves; provider, policy and quota refusals are reported in the body.
func (a *App) dispatch(w http.ResponseWriter, r *http.Request) {
	var req models.DispatchRequest
	if !a.decode(w, r, &req) {
		return
	}
	start := a.now()
	p := principal(r)

	entry, err := a.catalog.ByProvider(req.Provider)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	install, c, err := a.dispatchTarget(r.Context(), p.TenantID, entry, req.CredentialID)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if c == nil {
		a.respondDispatch(w, req.Provider, start, &models.DispatchResponse{Error: errNotInstalled})
		return
	}
	if c.IntegrationID != entry.ID {
		a.respondDispatch(w, req.Provider, start, &models.DispatchResponse{Error: errWrongProvider})
		return
	}

	dec := a.guard.Evaluate(r.Context(), policy.Input{
		TenantID:   p.TenantID,
		Provider:   req.Provider,
		Operation:  req.Operation,
		Credential: c.IntegrationCredential,
		Installed:  install != nil,
		Now:        start,
	})
	if !dec.Allowed() {
		a.respondDispatch(w, req.Provider, start, &models.DispatchResponse{Error: dec.Reason})
		return
	}

	over, err := a.overQuota(r.Context(), c, start)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if over {
		a.respondDispatch(w, req.Provider, start, &models.DispatchResponse{Error: errQuotaExceeded})
		return
	}

	res, callErr := a.call(r.Context(), entry, c, install, req)
	if callErr != nil {
		a.log.Infow("dispatch failed", "tenant_id", p.TenantID, "provider", req.Provider,
			"operation", req.Operation, "err", callErr)
		a.respondDispatch(w, req.Provider, start, &models.DispatchResponse{Error: callErr.Error()})
		return
	}
	var tokens int64
	if res.TokensUsed != nil {
		tokens = *res.TokensUsed
	}
	if err := a.usage.Record(r.Context(), c.ID, tokens, start); err != nil {
		a.log.Warnw("usage record failed", "credential_id", c.ID, "err", err)
	}
	a.respondDispatch(w, req.Provider, start, &models.DispatchResponse{
		Success:    true,
		Result:     res.Data,
		TokensUsed: res.TokensUsed,
		CostCents:  res.CostCents,
	})
}

// dispatchTarget finds the credential to use: the named one, or the one of the
// tenant's live install of the integration. A nil credential means neither exists.
func (a *App) dispatchTarget(ctx context.Context, tenantID string, entry catalog.Entry, credentialID string) (*models.UserIntegration, *store.Credential, error) {
	installs, err := a.store.ListInstalls(ctx, tenantID, false)
	if err != nil {
		return nil, nil, err
	}
	var install *models.UserIntegration
	for i := range installs {
		if installs[i].IntegrationID == entry.ID && installs[i].Status == models.InstallStatusActive {
			install = &installs[i]
			break
		}
	}
	if credentialID == "" {
		if install == nil || install.CredentialID == "" {
			return nil, nil, nil
		}
		credentialID = install.CredentialID
	}
	c, err := a.store.GetCredential(ctx, tenantID, credentialID)
	if err != nil {
		return nil, nil, err
	}
	return install, c, nil
}

func (a *App) call(ctx context.Context, entry catalog.Entry, c *store.Credential, install *models.UserIntegration, req models.DispatchRequest) (*connectors.Result, error) {
	prov, err := a.reg.Get(entry.Provider)
	if err != nil {
		return nil, err
	}
	values, err := a.sealer.Open(c.Sealed)
	if err != nil {
		return nil, errors.New("stored credential could not be decrypted")
	}
	call := connectors.Call{Operation: req.Operation, Payload: req.Payload, Secrets: values}
	if install != nil {
		call.Config = install.Config
	}
	ctx, cancel := context.WithTimeout(ctx, a.providerTimeout)
	defer cancel()
	return prov.Call(ctx, call)
}

func (a *App) respondDispatch(w http.ResponseWriter, provider string, start time.Time, res *models.DispatchResponse) {
	elapsed := a.now().Sub(start)
	res.ResponseTimeMs = elapsed.Milliseconds()
	if res.ResponseTimeMs < 1 {
		res.ResponseTimeMs = 1
	}
	outcome := "success"
	if !res.Success {
		outcome = "failure"
		switch res.Error {
		case errQuotaExceeded:
			outcome = "quota_exceeded"
		case "invalid credential":
			outcome = "denied"
		}
	}
	a.metrics.dispatches.WithLabelValues(provider, outcome).Inc()
	a.metrics.dispatchDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
	writeJSON(w, res, http.StatusOK)
}

// limits resolves the ceilings for a credential: explicit quota, then the
// credential's custom limits, then the tenant default.
func (a *App) limits(ctx context.Context, c *store.Credential) (models.QuotaLimits, error) {
	l, err := a.store.GetQuota(ctx, c.TenantID, c.ID)
	if err != nil {
		return models.QuotaLimits{}, err
	}
	if l != nil {
		return *l, nil
	}
	if c.CustomQuotaLimits != nil {
		return *c.CustomQuotaLimits, nil
	}
	t, err := a.tenants.ResolveTenantByID(ctx, c.TenantID)
	if err != nil {
		return models.QuotaLimits{}, nil
	}
	return t.DefaultQuota, nil
}

func (a *App) overQuota(ctx context.Context, c *store.Credential, now time.Time) (bool, error) {
	l, err := a.limits(ctx, c)
	if err != nil {
		return false, err
	}
	for _, period := range []models.QuotaPeriod{models.QuotaDaily, models.QuotaMonthly} {
		limit := quota.Limit(l, period)
		if limit <= 0 {
			continue
		}
		u, err := a.usage.Get(ctx, c.ID, period, now)
		if err != nil {
			return false, err
		}
		if quota.Exceeded(u.Requests, limit) {
			return true, nil
		}
	}
	return false, nil
}
