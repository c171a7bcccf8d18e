package tenants

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("tenant not found")

type Provider interface {
	// Resolve tenant from incoming host.
	ResolveTenantByHost(ctx context.Context, host string) (Tenant, error)
	ResolveTenantByID(ctx context.Context, id string) (Tenant, error)
}

// DevTenantID is served by the memory provider when no seed is configured.
const DevTenantID = "00000000-0000-0000-0000-000000000001"
