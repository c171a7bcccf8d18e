package hubapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/problems"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/quota"
)

func (a *App) getQuota(w http.ResponseWriter, r *http.Request) {
	c, err := a.store.GetCredential(r.Context(), principal(r).TenantID, chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeQuota(w, r, c)
}

func (a *App) setQuota(w http.ResponseWriter, r *http.Request) {
	var limits models.QuotaLimits
	if !a.decode(w, r, &limits) {
		return
	}
	if limits.Daily < 0 || limits.Monthly < 0 {
		problems.Write(w, http.StatusUnprocessableEntity, "validation_error", "Limits must not be negative", nil)
		return
	}
	tenantID := principal(r).TenantID
	id := chi.URLParam(r, "id")
	if err := a.store.SetQuota(r.Context(), tenantID, id, limits); err != nil {
		a.fail(w, r, err)
		return
	}
	c, err := a.store.GetCredential(r.Context(), tenantID, id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.writeQuota(w, r, c)
}

// writeQuota reports daily and monthly usage. Percentage is not clamped.
func (a *App) writeQuota(w http.ResponseWriter, r *http.Request, c *store.Credential) {
	l, err := a.limits(r.Context(), c)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	provider := c.IntegrationID
	if e, err := a.catalog.Get(c.IntegrationID); err == nil {
		provider = e.Provider
	}
	now := a.now()
	out := make([]models.QuotaUsage, 0, 2)
	for _, period := range []models.QuotaPeriod{models.QuotaDaily, models.QuotaMonthly} {
		u, err := a.usage.Get(r.Context(), c.ID, period, now)
		if err != nil {
			a.fail(w, r, err)
			return
		}
		out = append(out, quota.Build(provider, period, u.Requests, quota.Limit(l, period), now))
	}
	writeJSON(w, out, http.StatusOK)
}
