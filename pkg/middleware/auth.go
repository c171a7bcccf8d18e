package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/problems"
)

// Principal is the authenticated caller. TenantID may be empty until
// WithTenant resolves it from the host.
type Principal struct {
	TenantID string
	UserID   string
	Scopes   []string
}

type ctxPrincipalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ctxPrincipalKey{}, p)
}

func PrincipalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ctxPrincipalKey{}).(Principal)
	return p, ok
}

// KeySource yields the verification keys for an issuer's tokens.
type KeySource interface {
	Keys(ctx context.Context, jwksURL string) (jwk.Set, error)
}

// StaticKeys ignores the JWKS URL and always returns set.
func StaticKeys(set jwk.Set) KeySource { return staticKeys{set} }

type staticKeys struct{ set jwk.Set }

func (s staticKeys) Keys(context.Context, string) (jwk.Set, error) { return s.set, nil }

// RemoteKeys fetches JWKS documents and caches them per URL for ttl.
func RemoteKeys(ttl time.Duration) KeySource { return &jwksCache{ttl: ttl} }

// jwksCache caches JWKS sets per URL.
type jwksCache struct {
	mu   sync.RWMutex
	ttl  time.Duration
	sets map[string]cachedJWKS
}

type cachedJWKS struct {
	set     jwk.Set
	expires time.Time
}

func (c *jwksCache) Keys(ctx context.Context, url string) (jwk.Set, error) {
	if url == "" {
		return nil, errors.New("jwks url not configured")
	}
	c.mu.RLock()
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		c.mu.RUnlock()
		return e.set, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sets == nil {
		c.sets = map[string]cachedJWKS{}
	}
	if e, ok := c.sets[url]; ok && time.Now().Before(e.expires) {
		return e.set, nil
	}
	set, err := jwk.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	c.sets[url] = cachedJWKS{set: set, expires: time.Now().Add(c.ttl)}
	return set, nil
}

func public(path string) bool {
	return path == "/healthz" || path == "/metrics" || strings.HasPrefix(path, "/.well-known/")
}

// JWTAuth verifies bearer tokens and stores the Principal: tenant from the
// "tid" claim, user from "sub", scopes from "scope". In dev, a request without
// Authorization is accepted with X-Tenant-ID / X-User-ID headers.
func JWTAuth(cfg config.Config, keys KeySource) func(http.Handler) http.Handler {
	issuer := strings.TrimRight(cfg.Issuer, "/")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if public(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if authz == "" && !cfg.IsProd() {
				p := Principal{TenantID: r.Header.Get("X-Tenant-ID"), UserID: r.Header.Get("X-User-ID")}
				next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
				return
			}
			if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
				problems.Write(w, http.StatusUnauthorized, "missing_bearer", "Authentication required", nil)
				return
			}
			raw := strings.TrimSpace(authz[len("Bearer "):])

			set, err := keys.Keys(r.Context(), cfg.JWKSURL)
			if err != nil {
				problems.Write(w, http.StatusInternalServerError, "jwks_unavailable", "Could not load signing keys", nil)
				return
			}
			opts := []jwt.ParseOption{jwt.WithKeySet(set), jwt.WithValidate(true), jwt.WithAcceptableSkew(30 * time.Second)}
			if issuer != "" {
				opts = append(opts, jwt.WithIssuer(issuer))
			}
			if cfg.Audience != "" {
				opts = append(opts, jwt.WithAudience(cfg.Audience))
			}
			tok, err := jwt.Parse([]byte(raw), opts...)
			if err != nil {
				code := "invalid_token"
				if errors.Is(err, jwt.ErrTokenExpired()) {
					code = "token_expired"
				}
				problems.Write(w, http.StatusUnauthorized, code, "Authentication required", nil)
				return
			}
			p := Principal{UserID: tok.Subject()}
			if tid, ok := tok.Get("tid"); ok {
				p.TenantID, _ = tid.(string)
			}
			if sc, ok := tok.Get("scope"); ok {
				if s, ok := sc.(string); ok {
					p.Scopes = strings.Fields(s)
				}
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), p)))
		})
	}
}

// HasScope reports whether the principal carries scope.
func (p Principal) HasScope(scope string) bool { return slices.Contains(p.Scopes, scope) }
