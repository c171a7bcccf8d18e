package hubapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/catalog"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

func (a *App) listIntegrations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items := a.catalog.List(catalog.Filter{Category: q.Get("category"), Search: q.Get("search")})
	writeJSON(w, models.Paginate(items, listParams(r)), http.StatusOK)
}

func (a *App) getIntegration(w http.ResponseWriter, r *http.Request) {
	e, err := a.catalog.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, e.Integration, http.StatusOK)
}

func (a *App) getFormSchema(w http.ResponseWriter, r *http.Request) {
	fs, err := a.catalog.FormSchema(chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, fs, http.StatusOK)
}
