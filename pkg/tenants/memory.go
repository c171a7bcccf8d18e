package tenants

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

type memProvider struct {
	log    *zap.SugaredLogger
	byHost map[string]Tenant
	byID   map[string]Tenant
}

type seedEntry struct {
	ID                string             `json:"id"`
	Slug              string             `json:"slug"`
	Host              string             `json:"host"`
	OAuthIssuer       string             `json:"oauth_issuer"`
	JWKSURL           string             `json:"jwks_url"`
	AcceptedAudiences []string           `json:"accepted_audiences"`
	DefaultQuota      models.QuotaLimits `json:"default_quota"`
	Disabled          bool               `json:"disabled"`
}

func (e seedEntry) tenant() Tenant {
	return Tenant{
		ID: e.ID, Slug: e.Slug, Host: e.Host,
		OAuthIssuer: e.OAuthIssuer, JWKSURL: e.JWKSURL, AcceptedAudiences: e.AcceptedAudiences,
		DefaultQuota: e.DefaultQuota, Disabled: e.Disabled,
	}
}

// ParseSeed decodes TENANT_SEED_JSON:
//
//	[{"id":"...","slug":"...","host":"...","oauth_issuer":"...","jwks_url":"...",
//	  "default_quota":{"daily":1000,"monthly":20000}}]
func ParseSeed(seed string) ([]Tenant, error) {
	if seed == "" {
		return nil, nil
	}
	var entries []seedEntry
	if err := json.Unmarshal([]byte(seed), &entries); err != nil {
		return nil, err
	}
	out := make([]Tenant, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.tenant())
	}
	return out, nil
}

// NewMemoryProvider serves the given tenants. With none, a single dev tenant
// answers for localhost.
func NewMemoryProvider(log *zap.SugaredLogger, ts ...Tenant) Provider {
	p := &memProvider{log: log, byHost: map[string]Tenant{}, byID: map[string]Tenant{}}
	if len(ts) == 0 {
		dev := Tenant{ID: DevTenantID, Slug: "dev"}
		for _, h := range []string{"localhost", "127.0.0.1", "host.docker.internal"} {
			dd := dev
			dd.Host = h
			p.byHost[h] = dd
		}
		dev.Host = "localhost"
		p.byID[dev.ID] = dev
		return p
	}
	for _, t := range ts {
		if t.Host != "" {
			p.byHost[t.Host] = t
		}
		p.byID[t.ID] = t
	}
	return p
}

// NewMemoryProviderFromSeed is NewMemoryProvider over a TENANT_SEED_JSON value.
// A malformed seed is logged and ignored.
func NewMemoryProviderFromSeed(seed string, log *zap.SugaredLogger) Provider {
	ts, err := ParseSeed(seed)
	if err != nil {
		log.Warnw("ignoring malformed tenant seed", "err", err)
	}
	return NewMemoryProvider(log, ts...)
}

func (m *memProvider) ResolveTenantByHost(ctx context.Context, host string) (Tenant, error) {
	if t, ok := m.byHost[host]; ok {
		return t, nil
	}
	return Tenant{}, ErrNotFound
}

func (m *memProvider) ResolveTenantByID(ctx context.Context, id string) (Tenant, error) {
	if t, ok := m.byID[id]; ok {
		return t, nil
	}
	return Tenant{}, ErrNotFound
}
