package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TenantSetting is the transaction-local setting tenant policies read.
const TenantSetting = "app.tenant_id"

var ErrNoTenant = errors.New("db: tenant id required")

// InTenantTx runs fn in a transaction with TenantSetting set to tenantID.
// The transaction commits when fn returns nil and rolls back otherwise.
func InTenantTx(ctx context.Context, pool *pgxpool.Pool, tenantID string, fn func(pgx.Tx) error) error {
	if tenantID == "" {
		return ErrNoTenant
	}
	return pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SELECT set_config($1, $2, true)", TenantSetting, tenantID); err != nil {
			return fmt.Errorf("set tenant: %w", err)
		}
		return fn(tx)
	})
}

// TenantPolicy returns statements that enable row level security on table,
// limiting reads and writes to rows whose tenant_id matches TenantSetting.
// FORCE applies the policy to the table owner as well. The statements can
// run repeatedly.
func TenantPolicy(table string) string {
	return fmt.Sprintf(`
ALTER TABLE %[1]s ENABLE ROW LEVEL SECURITY;
ALTER TABLE %[1]s FORCE ROW LEVEL SECURITY;
DO $$
BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_policies WHERE tablename = %[2]s AND policyname = 'tenant_isolation') THEN
    CREATE POLICY tenant_isolation ON %[1]s
      USING (tenant_id = current_setting('%[3]s', true))
      WITH CHECK (tenant_id = current_setting('%[3]s', true));
  END IF;
END $$;
`, pgx.Identifier{table}.Sanitize(), quoteLiteral(table), TenantSetting)
}

func quoteLiteral(s string) string {
	out := []byte{'\''}
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(append(out, '\''))
}
