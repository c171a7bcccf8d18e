package hubapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/middleware"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/openapi"
)

const (
	serviceName = "voice-hub-integrations"
	apiVersion  = "1.0.0"
)

type route struct {
	method  string
	path    string
	summary string
	handler http.HandlerFunc
	status  int
}

func (a *App) routes() []route {
	return []route{
		{"GET", "/integrations", "List catalog integrations", a.listIntegrations, http.StatusOK},
		{"GET", "/integrations/{id}", "Get a catalog integration", a.getIntegration, http.StatusOK},
		{"GET", "/integrations/{id}/form-schema", "Credential form for an integration", a.getFormSchema, http.StatusOK},

		{"GET", "/integrations/credentials", "List credentials", a.listCredentials, http.StatusOK},
		{"POST", "/integrations/credentials", "Create a credential", a.createCredential, http.StatusCreated},
		{"PUT", "/integrations/credentials/{id}", "Update a credential", a.updateCredential, http.StatusOK},
		{"DELETE", "/integrations/credentials/{id}", "Delete a credential", a.deleteCredential, http.StatusNoContent},
		{"POST", "/integrations/credentials/test", "Test a credential's connection", a.testCredential, http.StatusOK},
		{"GET", "/integrations/credentials/{id}/quota", "Credential quota usage", a.getQuota, http.StatusOK},
		{"POST", "/integrations/credentials/{id}/quota", "Set credential quota limits", a.setQuota, http.StatusOK},

		{"GET", "/integrations/user-integrations", "List installed integrations", a.listInstalls, http.StatusOK},
		{"POST", "/integrations/install", "Install an integration", a.install, http.StatusCreated},
		{"DELETE", "/integrations/user-integrations/{id}", "Uninstall an integration", a.uninstall, http.StatusOK},
		{"PATCH", "/integrations/user-integrations/{id}", "Update install configuration", a.updateInstallConfig, http.StatusOK},

		{"POST", "/integrations/dispatch", "Dispatch a provider operation", a.dispatch, http.StatusOK},
	}
}

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.Tracing(a.cfg, a.log))
	r.Use(middleware.AccessLog(a.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, map[string]bool{"ok": true}, http.StatusOK)
	})
	r.Handle("/metrics", a.metrics.handler())

	doc := openapi.New(serviceName, apiVersion)
	doc.Add(openapi.Operation{Method: http.MethodGet, Path: "/healthz", Summary: "Liveness", Public: true})
	routes := a.routes()
	for _, rt := range routes {
		doc.Add(openapi.Operation{
			Method:  rt.method,
			Path:    "/api/v1" + rt.path,
			Summary: rt.summary,
			Tag:     "integrations",
			Status:  rt.status,
		})
	}
	r.Get("/.well-known/openapi.json", doc.Handler())

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.JWTAuth(a.cfg, a.keys))
		api.Use(middleware.WithTenant(a.tenants))
		for _, rt := range routes {
			api.Method(rt.method, rt.path, rt.handler)
		}
	})
	return r
}
