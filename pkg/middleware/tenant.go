package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/problems"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/tenants"
)

type ctxTenantKey struct{}

// WithTenant resolves the caller's tenant: by the principal's tenant id when
// present, else by host. Unknown or disabled tenants get 403. Runs after JWTAuth.
func WithTenant(prov tenants.Provider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			p, _ := PrincipalFrom(r.Context())
			var (
				t   tenants.Tenant
				err error
			)
			if p.TenantID != "" {
				t, err = prov.ResolveTenantByID(r.Context(), p.TenantID)
			} else {
				host := r.Host
				if i := strings.Index(host, ":"); i > 0 {
					host = host[:i]
				}
				t, err = prov.ResolveTenantByHost(r.Context(), host)
			}
			if err != nil || t.Disabled {
				problems.Write(w, http.StatusForbidden, "unknown_tenant", "Tenant not recognised", nil)
				return
			}
			p.TenantID = t.ID
			ctx := WithPrincipal(r.Context(), p)
			ctx = context.WithValue(ctx, ctxTenantKey{}, t)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func TenantFrom(ctx context.Context) tenants.Tenant {
	if t, ok := ctx.Value(ctxTenantKey{}).(tenants.Tenant); ok {
		return t
	}
	return tenants.Tenant{}
}
