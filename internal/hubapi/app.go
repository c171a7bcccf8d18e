// Package hubapi serves the integrations API: catalog, credentials,
// installs, dispatch and quotas, each scoped to the caller's tenant.
package hubapi

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/catalog"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/policy"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/usage"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/connectors"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/middleware"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/secrets"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/tenants"
)

// Deps are the collaborators of an App. Store, Catalog, Connectors, Guard,
// Usage, Tenants and Keys are required.
type Deps struct {
	Config     config.Config
	Log        *zap.SugaredLogger
	Catalog    *catalog.Catalog
	Store      store.Store
	Sealer     *secrets.Sealer
	Connectors *connectors.Registry
	Guard      *policy.Guard
	Usage      usage.Counter
	Tenants    tenants.Provider
	Keys       middleware.KeySource

	// ProviderTimeout bounds connection tests and dispatched calls. Default 30s.
	ProviderTimeout time.Duration
	Now             func() time.Time
	NewID           func() string
}

// App is the integrations API application container.
type App struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	catalog  *catalog.Catalog
	store    store.Store
	sealer   *secrets.Sealer
	reg      *connectors.Registry
	guard    *policy.Guard
	usage    usage.Counter
	tenants  tenants.Provider
	keys     middleware.KeySource
	metrics  *metrics
	validate *validator.Validate

	providerTimeout time.Duration
	now             func() time.Time
	newID           func() string
}

func New(d Deps) (*App, error) {
	if d.Store == nil || d.Catalog == nil || d.Connectors == nil || d.Guard == nil ||
		d.Usage == nil || d.Tenants == nil || d.Keys == nil {
		return nil, errors.New("hubapi: missing dependency")
	}
	a := &App{
		cfg:             d.Config,
		log:             d.Log,
		catalog:         d.Catalog,
		store:           d.Store,
		sealer:          d.Sealer,
		reg:             d.Connectors,
		guard:           d.Guard,
		usage:           d.Usage,
		tenants:         d.Tenants,
		keys:            d.Keys,
		metrics:         newMetrics(),
		validate:        newValidator(),
		providerTimeout: d.ProviderTimeout,
		now:             d.Now,
		newID:           d.NewID,
	}
	if a.log == nil {
		a.log = zap.NewNop().Sugar()
	}
	if a.sealer == nil {
		a.sealer, _ = secrets.NewSealer("")
	}
	if a.providerTimeout <= 0 {
		a.providerTimeout = 30 * time.Second
	}
	if a.now == nil {
		a.now = time.Now
	}
	if a.newID == nil {
		a.newID = uuid.NewString
	}
	return a, nil
}
