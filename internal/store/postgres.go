package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/db"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

// CodeUniqueViolation is the postgres SQLSTATE for a unique index violation.
const CodeUniqueViolation = "23505"

type pgStore struct {
	pool *pgxpool.Pool
	log  *zap.SugaredLogger
}

func NewPostgres(pool *pgxpool.Pool, log *zap.SugaredLogger) Store {
	return &pgStore{pool: pool, log: log}
}

// tenantTables carry a tenant_id column and are isolated by row level security.
var tenantTables = []string{"integration_credentials", "user_integrations", "credential_quotas"}

const tablesSQL = `
CREATE TABLE IF NOT EXISTS integration_credentials (
  id text PRIMARY KEY,
  tenant_id text NOT NULL,
  user_id text,
  integration_id text NOT NULL,
  credential_name text NOT NULL,
  credential_type text,
  secrets_encrypted bytea,
  last_test_status text NOT NULL DEFAULT 'not_tested',
  last_tested_at timestamptz,
  last_test_error text,
  expires_at timestamptz,
  custom_quota_limits jsonb,
  created_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS integration_credentials_name_uq
  ON integration_credentials (tenant_id, integration_id, credential_name);
CREATE TABLE IF NOT EXISTS user_integrations (
  id text PRIMARY KEY,
  tenant_id text NOT NULL,
  user_id text,
  integration_id text NOT NULL,
  credential_id text REFERENCES integration_credentials(id) ON DELETE SET NULL,
  status text NOT NULL,
  config jsonb NOT NULL DEFAULT '{}'::jsonb,
  sync_status text,
  error_count int NOT NULL DEFAULT 0,
  last_error text,
  installed_at timestamptz NOT NULL DEFAULT NOW(),
  updated_at timestamptz NOT NULL DEFAULT NOW(),
  uninstalled_at timestamptz
);
CREATE UNIQUE INDEX IF NOT EXISTS user_integrations_live_uq
  ON user_integrations (tenant_id, integration_id) WHERE status IN ('installing','active');
CREATE TABLE IF NOT EXISTS credential_quotas (
  credential_id text PRIMARY KEY REFERENCES integration_credentials(id) ON DELETE CASCADE,
  tenant_id text NOT NULL,
  daily bigint NOT NULL DEFAULT 0,
  monthly bigint NOT NULL DEFAULT 0,
  updated_at timestamptz NOT NULL DEFAULT NOW()
);
`

func schemaSQL() string {
	var b strings.Builder
	b.WriteString(tablesSQL)
	for _, t := range tenantTables {
		b.WriteString(db.TenantPolicy(t))
	}
	return b.String()
}

// EnsureSchema creates the integration tables and their tenant policies.
// Safe to call repeatedly.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, schemaSQL())
	return err
}

const credentialCols = `id, tenant_id, coalesce(user_id,''), integration_id, credential_name, coalesce(credential_type,''),
  secrets_encrypted, last_test_status, last_tested_at, coalesce(last_test_error,''), expires_at, custom_quota_limits,
  created_at, updated_at`

func (s *pgStore) inTx(ctx context.Context, tenantID string, fn func(pgx.Tx) error) error {
	return mapErr(db.InTenantTx(ctx, s.pool, tenantID, fn))
}

func mapErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == CodeUniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (s *pgStore) CreateCredential(ctx context.Context, c *Credential) error {
	limits, err := json.Marshal(c.CustomQuotaLimits)
	if err != nil {
		return err
	}
	return s.inTx(ctx, c.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO integration_credentials (id, tenant_id, user_id, integration_id, credential_name, credential_type,
  secrets_encrypted, last_test_status, expires_at, custom_quota_limits, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			c.ID, c.TenantID, c.UserID, c.IntegrationID, c.CredentialName, c.CredentialType,
			c.Sealed, string(c.LastTestStatus), c.ExpiresAt, limits, c.CreatedAt, c.UpdatedAt)
		return err
	})
}

func scanCredential(row pgx.Row) (*Credential, error) {
	var (
		c      Credential
		status string
		limits []byte
	)
	err := row.Scan(&c.ID, &c.TenantID, &c.UserID, &c.IntegrationID, &c.CredentialName, &c.CredentialType,
		&c.Sealed, &status, &c.LastTestedAt, &c.LastTestError, &c.ExpiresAt, &limits, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.LastTestStatus = models.TestStatus(status)
	if len(limits) > 0 && string(limits) != "null" {
		var l models.QuotaLimits
		if err := json.Unmarshal(limits, &l); err != nil {
			return nil, err
		}
		c.CustomQuotaLimits = &l
	}
	return &c, nil
}

func (s *pgStore) GetCredential(ctx context.Context, tenantID, id string) (*Credential, error) {
	var out *Credential
	err := s.inTx(ctx, tenantID, func(tx pgx.Tx) error {
		c, err := scanCredential(tx.QueryRow(ctx,
			`SELECT `+credentialCols+` FROM integration_credentials WHERE tenant_id=$1 AND id=$2`, tenantID, id))
		out = c
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("credential %s: %w", id, err)
	}
	return out, nil
}

func (s *pgStore) ListCredentials(ctx context.Context, tenantID, integrationID string) ([]Credential, error) {
	out := []Credential{}
	err := s.inTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+credentialCols+` FROM integration_credentials
WHERE tenant_id=$1 AND ($2='' OR integration_id=$2) ORDER BY created_at`, tenantID, integrationID)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			c, err := scanCredential(rows)
			if err != nil {
				return err
			}
			out = append(out, *c)
		}
		return rows.Err()
	})
	return out, err
}

func (s *pgStore) UpdateCredential(ctx context.Context, c *Credential) error {
	limits, err := json.Marshal(c.CustomQuotaLimits)
	if err != nil {
		return err
	}
	return s.inTx(ctx, c.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE integration_credentials SET credential_name=$3, secrets_encrypted=$4, last_test_status=$5,
  last_tested_at=$6, last_test_error=$7, expires_at=$8, custom_quota_limits=$9, updated_at=$10
WHERE tenant_id=$1 AND id=$2`,
			c.TenantID, c.ID, c.CredentialName, c.Sealed, string(c.LastTestStatus),
			c.LastTestedAt, c.LastTestError, c.ExpiresAt, limits, c.UpdatedAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *pgStore) DeleteCredential(ctx context.Context, tenantID, id string) error {
	return s.inTx(ctx, tenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM integration_credentials WHERE tenant_id=$1 AND id=$2`, tenantID, id)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

const installCols = `id, tenant_id, coalesce(user_id,''), integration_id, coalesce(credential_id,''), status, config,
  coalesce(sync_status,''), error_count, coalesce(last_error,''), installed_at, updated_at, uninstalled_at`

func scanInstall(row pgx.Row) (*models.UserIntegration, error) {
	var (
		ui     models.UserIntegration
		status string
		cfg    []byte
	)
	err := row.Scan(&ui.ID, &ui.TenantID, &ui.UserID, &ui.IntegrationID, &ui.CredentialID, &status, &cfg,
		&ui.SyncStatus, &ui.ErrorCount, &ui.LastError, &ui.InstalledAt, &ui.UpdatedAt, &ui.UninstalledAt)
	if err != nil {
		return nil, err
	}
	ui.Status = models.InstallStatus(status)
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &ui.Config); err != nil {
			return nil, err
		}
	}
	return &ui, nil
}

func configJSON(cfg map[string]any) ([]byte, error) {
	if cfg == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(cfg)
}

func (s *pgStore) CreateInstall(ctx context.Context, ui *models.UserIntegration) error {
	cfg, err := configJSON(ui.Config)
	if err != nil {
		return err
	}
	return s.inTx(ctx, ui.TenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO user_integrations (id, tenant_id, user_id, integration_id, credential_id, status, config,
  sync_status, installed_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			ui.ID, ui.TenantID, ui.UserID, ui.IntegrationID, ui.CredentialID, string(ui.Status), cfg,
			ui.SyncStatus, ui.InstalledAt, ui.UpdatedAt)
		return err
	})
}

func (s *pgStore) GetInstall(ctx context.Context, tenantID, id string) (*models.UserIntegration, error) {
	var out *models.UserIntegration
	err := s.inTx(ctx, tenantID, func(tx pgx.Tx) error {
		ui, err := scanInstall(tx.QueryRow(ctx,
			`SELECT `+installCols+` FROM user_integrations WHERE tenant_id=$1 AND id=$2`, tenantID, id))
		out = ui
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("install %s: %w", id, err)
	}
	return out, nil
}

func (s *pgStore) ListInstalls(ctx context.Context, tenantID string, includeInactive bool) ([]models.UserIntegration, error) {
	out := []models.UserIntegration{}
	err := s.inTx(ctx, tenantID, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `SELECT `+installCols+` FROM user_integrations
WHERE tenant_id=$1 AND ($2 OR status <> 'inactive') ORDER BY installed_at`, tenantID, includeInactive)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			ui, err := scanInstall(rows)
			if err != nil {
				return err
			}
			out = append(out, *ui)
		}
		return rows.Err()
	})
	return out, err
}

func (s *pgStore) UpdateInstall(ctx context.Context, ui *models.UserIntegration) error {
	cfg, err := configJSON(ui.Config)
	if err != nil {
		return err
	}
	return s.inTx(ctx, ui.TenantID, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
UPDATE user_integrations SET status=$3, config=$4, sync_status=$5, error_count=$6, last_error=$7,
  updated_at=$8, uninstalled_at=$9
WHERE tenant_id=$1 AND id=$2`,
			ui.TenantID, ui.ID, string(ui.Status), cfg, ui.SyncStatus, ui.ErrorCount, ui.LastError,
			ui.UpdatedAt, ui.UninstalledAt)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func (s *pgStore) GetQuota(ctx context.Context, tenantID, credentialID string) (*models.QuotaLimits, error) {
	if _, err := s.GetCredential(ctx, tenantID, credentialID); err != nil {
		return nil, err
	}
	var out *models.QuotaLimits
	err := s.inTx(ctx, tenantID, func(tx pgx.Tx) error {
		var l models.QuotaLimits
		err := tx.QueryRow(ctx, `SELECT daily, monthly FROM credential_quotas WHERE tenant_id=$1 AND credential_id=$2`,
			tenantID, credentialID).Scan(&l.Daily, &l.Monthly)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = &l
		return nil
	})
	return out, err
}

func (s *pgStore) SetQuota(ctx context.Context, tenantID, credentialID string, limits models.QuotaLimits) error {
	if _, err := s.GetCredential(ctx, tenantID, credentialID); err != nil {
		return err
	}
	return s.inTx(ctx, tenantID, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
INSERT INTO credential_quotas (credential_id, tenant_id, daily, monthly, updated_at)
VALUES ($1,$2,$3,$4,NOW())
ON CONFLICT (credential_id) DO UPDATE SET daily=EXCLUDED.daily, monthly=EXCLUDED.monthly, updated_at=NOW()`,
			credentialID, tenantID, limits.Daily, limits.Monthly)
		return err
	})
}
