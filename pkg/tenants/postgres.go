package tenants

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// pgProvider implements Provider backed by PostgreSQL.
type pgProvider struct {
	dbPool *pgxpool.Pool
	log    *zap.SugaredLogger
}

// NewPostgresProvider constructs a PostgreSQL-backed tenant provider.
func NewPostgresProvider(dbPool *pgxpool.Pool, log *zap.SugaredLogger) Provider {
	return &pgProvider{dbPool: dbPool, log: log}
}

// EnsureSchema creates the tenants table. Safe to call repeatedly.
func EnsureSchema(ctx context.Context, dbPool *pgxpool.Pool) error {
	_, err := dbPool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tenants (
  id text PRIMARY KEY,
  slug text UNIQUE,
  host text UNIQUE,
  oauth_issuer text,
  jwks_url text,
  accepted_audiences text[] DEFAULT '{}',
  default_quota jsonb DEFAULT '{}'::jsonb,
  disabled boolean NOT NULL DEFAULT false,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
ALTER TABLE tenants ADD COLUMN IF NOT EXISTS default_quota jsonb DEFAULT '{}'::jsonb;
ALTER TABLE tenants ADD COLUMN IF NOT EXISTS disabled boolean NOT NULL DEFAULT false;
`)
	return err
}

// SeedFromEnv upserts the tenants of a TENANT_SEED_JSON value.
func SeedFromEnv(ctx context.Context, dbPool *pgxpool.Pool, jsonSeed string) error {
	ts, err := ParseSeed(jsonSeed)
	if err != nil {
		return err
	}
	for _, t := range ts {
		quota, _ := json.Marshal(t.DefaultQuota)
		if _, err := dbPool.Exec(ctx, `INSERT INTO tenants(id,slug,host,oauth_issuer,jwks_url,accepted_audiences,default_quota,disabled)
		  VALUES ($1,$2,NULLIF($3,''),$4,$5,$6,$7,$8)
		  ON CONFLICT (id) DO UPDATE SET slug=EXCLUDED.slug,host=EXCLUDED.host,oauth_issuer=EXCLUDED.oauth_issuer,
		    jwks_url=EXCLUDED.jwks_url,accepted_audiences=EXCLUDED.accepted_audiences,default_quota=EXCLUDED.default_quota,
		    disabled=EXCLUDED.disabled,updated_at=NOW()`,
			t.ID, t.Slug, t.Host, t.OAuthIssuer, t.JWKSURL, t.AcceptedAudiences, quota, t.Disabled); err != nil {
			return err
		}
	}
	return nil
}

const tenantCols = `id,COALESCE(slug,''),COALESCE(host,''),COALESCE(oauth_issuer,''),COALESCE(jwks_url,''),
  COALESCE(accepted_audiences,'{}'),COALESCE(default_quota,'{}'::jsonb),disabled`

func (p *pgProvider) scan(row pgx.Row) (Tenant, error) {
	var t Tenant
	var quota []byte
	if err := row.Scan(&t.ID, &t.Slug, &t.Host, &t.OAuthIssuer, &t.JWKSURL, &t.AcceptedAudiences, &quota, &t.Disabled); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			p.log.Warnw("tenant lookup failed", "err", err)
		}
		return Tenant{}, ErrNotFound
	}
	if len(quota) > 0 {
		_ = json.Unmarshal(quota, &t.DefaultQuota)
	}
	return t, nil
}

// ResolveTenantByHost fetches a tenant using its host value.
func (p *pgProvider) ResolveTenantByHost(ctx context.Context, host string) (Tenant, error) {
	return p.scan(p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE host=$1`, host))
}

// ResolveTenantByID fetches a tenant by id.
func (p *pgProvider) ResolveTenantByID(ctx context.Context, id string) (Tenant, error) {
	return p.scan(p.dbPool.QueryRow(ctx, `SELECT `+tenantCols+` FROM tenants WHERE id=$1`, id))
}
