package hubapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/catalog"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/policy"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/usage"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/client"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/connectors"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/credentials"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/middleware"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/secrets"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/tenants"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/wizard"
)

const (
	tenantA = "tenant-a"
	tenantB = "tenant-b"
)

type harness struct {
	srv   *httptest.Server
	key   jwk.Key
	usage usage.Counter
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWithStore(t, store.NewMemory())
}

func newHarnessWithStore(t *testing.T, st store.Store) *harness {
	t.Helper()
	ctx := context.Background()

	key, err := jwk.FromRaw([]byte("hub-test-secret-0123456789abcdef"))
	require.NoError(t, err)
	require.NoError(t, key.Set(jwk.KeyIDKey, "test"))
	require.NoError(t, key.Set(jwk.AlgorithmKey, jwa.HS256))
	set := jwk.NewSet()
	require.NoError(t, set.AddKey(key))

	cat, err := catalog.Default()
	require.NoError(t, err)
	reg := connectors.NewRegistry()
	reg.RegisterFactory(connectors.KindHTTP, connectors.HTTPFactory(nil))
	require.NoError(t, cat.Register(reg))

	guard, err := policy.NewGuard(ctx, "", nil)
	require.NoError(t, err)
	sealer, err := secrets.NewSealer("test-encryption-key")
	require.NoError(t, err)

	h := &harness{key: key, usage: usage.NewMemory(), now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	app, err := New(Deps{
		Config:     config.Config{Env: "prod", Audience: "voice-hub"},
		Log:        zap.NewNop().Sugar(),
		Catalog:    cat,
		Store:      st,
		Sealer:     sealer,
		Connectors: reg,
		Guard:      guard,
		Usage:      h.usage,
		Tenants: tenants.NewMemoryProvider(zap.NewNop().Sugar(),
			tenants.Tenant{ID: tenantA, Slug: "a"},
			tenants.Tenant{ID: tenantB, Slug: "b"},
		),
		Keys: middleware.StaticKeys(set),
		Now:  func() time.Time { return h.now },
	})
	require.NoError(t, err)
	h.srv = httptest.NewServer(app.Handler())
	t.Cleanup(h.srv.Close)
	return h
}

func (h *harness) token(t *testing.T, tenant string, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewBuilder().Subject("user-1").Audience([]string{"voice-hub"}).
		Expiration(exp).Claim("tid", tenant).Build()
	require.NoError(t, err)
	b, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, h.key))
	require.NoError(t, err)
	return string(b)
}

func (h *harness) client(t *testing.T, tenant string) *client.Client {
	return client.NewClient(h.srv.URL+"/api/v1",
		client.WithTokenProvider(client.StaticToken(h.token(t, tenant, time.Now().Add(time.Hour)))),
		client.WithRetryAttempts(1))
}

func createSandbox(t *testing.T, c *client.Client, name, key string) *models.IntegrationCredential {
	t.Helper()
	cred, err := c.Integrations.CreateCredential(context.Background(), models.CreateCredentialRequest{
		IntegrationID: "sandbox", CredentialName: name, CredentialType: "api_key",
		Credentials: map[string]string{"api_key": key},
	})
	require.NoError(t, err)
	return cred
}

func verifiedSandbox(t *testing.T, c *client.Client, name string) *models.IntegrationCredential {
	t.Helper()
	cred := createSandbox(t, c, name, "good-key")
	res, err := c.Integrations.TestCredential(context.Background(), cred.ID)
	require.NoError(t, err)
	require.True(t, res.Success)
	return res.Credential
}

func TestCreateCredential_NotTested(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()

	cred, err := c.Integrations.CreateCredential(ctx, models.CreateCredentialRequest{
		IntegrationID: "slack", CredentialName: "Prod", CredentialType: "api_key",
		Credentials: map[string]string{"api_key": "x"},
	})

	require.NoError(t, err)
	assert.Equal(t, models.TestStatusNotTested, cred.LastTestStatus)
	assert.Equal(t, tenantA, cred.TenantID)
	assert.Equal(t, "user-1", cred.UserID)

	list, err := c.Integrations.ListCredentials(ctx, client.CredentialFilter{IntegrationID: "slack"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, cred.ID, list[0].ID)
}

func TestCreateCredential_RequiredFieldMissing(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)

	_, err := c.Integrations.CreateCredential(context.Background(), models.CreateCredentialRequest{
		IntegrationID: "slack", CredentialName: "Prod", CredentialType: "api_key",
		Credentials: map[string]string{"other": "x"},
	})

	require.True(t, apierr.IsValidationError(err))
	e, _ := apierr.As(err)
	require.Len(t, e.Fields, 1)
	assert.Equal(t, "api_key", e.Fields[0].Field)
}

func TestCreateCredential_DuplicateName(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	createSandbox(t, c, "Prod", "k1")

	_, err := c.Integrations.CreateCredential(context.Background(), models.CreateCredentialRequest{
		IntegrationID: "sandbox", CredentialName: "Prod", CredentialType: "api_key",
		Credentials: map[string]string{"api_key": "k2"},
	})

	require.True(t, apierr.IsConflictError(err))
	e, _ := apierr.As(err)
	assert.Equal(t, "23505", e.Code)
	assert.True(t, credentials.IsDuplicateName(err))

	// Another tenant may reuse the name.
	createSandbox(t, h.client(t, tenantB), "Prod", "k3")
}

func TestTestCredential_FinalStatus(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()

	good := createSandbox(t, c, "Good", "good-key")
	res, err := c.Integrations.TestCredential(ctx, good.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, models.TestStatusSuccess, res.Status)
	assert.Equal(t, models.TestStatusSuccess, res.Credential.LastTestStatus)
	require.NotNil(t, res.Credential.LastTestedAt)

	bad := createSandbox(t, c, "Bad", "invalid-key")
	res, err = c.Integrations.TestCredential(ctx, bad.ID)
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, models.TestStatusFailed, res.Credential.LastTestStatus)
	assert.NotEmpty(t, res.Credential.LastTestError)

	// Retesting after fixing the secret.
	_, err = c.Integrations.UpdateCredential(ctx, bad.ID, models.UpdateCredentialRequest{
		Credentials: map[string]string{"api_key": "fixed-key"},
	})
	require.NoError(t, err)
	res, err = c.Integrations.TestCredential(ctx, bad.ID)
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestManagerTest_ObservesTestingThenFinal(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	cred := createSandbox(t, c, "Observed", "good-key")

	var seen []models.TestStatus
	m := credentials.NewManager(c.Integrations, credentials.WithObserver(func(_ string, s models.TestStatus) {
		seen = append(seen, s)
	}))
	final, err := m.Test(context.Background(), cred.ID)

	require.NoError(t, err)
	assert.Equal(t, models.TestStatusSuccess, final.LastTestStatus)
	assert.Equal(t, []models.TestStatus{models.TestStatusTesting, models.TestStatusSuccess}, seen)
}

func TestDispatch_FailedCredentialIsData(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()
	bad := createSandbox(t, c, "Bad", "invalid-key")
	_, err := c.Integrations.TestCredential(ctx, bad.ID)
	require.NoError(t, err)

	res, err := c.Integrations.Dispatch(ctx, models.DispatchRequest{
		Provider: "sandbox", Operation: "echo", CredentialID: bad.ID,
	})

	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "invalid credential", res.Error)
	assert.Positive(t, res.ResponseTimeMs)
}

func TestDispatch_SuccessRecordsUsage(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred := verifiedSandbox(t, c, "Good")

	res, err := c.Integrations.Dispatch(ctx, models.DispatchRequest{
		Provider: "sandbox", Operation: "echo", CredentialID: cred.ID,
		Payload: map[string]any{"text": "hi", "tokens": 42},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	require.NotNil(t, res.TokensUsed)
	assert.Equal(t, int64(42), *res.TokensUsed)
	assert.Equal(t, "hi", res.Result.(map[string]any)["text"])

	u, err := h.usage.Get(ctx, cred.ID, models.QuotaDaily, h.now)
	require.NoError(t, err)
	assert.Equal(t, usage.Usage{Requests: 1, Tokens: 42}, u)

	res, err = c.Integrations.Dispatch(ctx, models.DispatchRequest{
		Provider: "sandbox", Operation: "fail", CredentialID: cred.ID,
		Payload: map[string]any{"error": "upstream said no"},
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "upstream said no", res.Error)
}

func TestDispatch_UsesInstalledCredential(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()

	res, err := c.Integrations.Dispatch(ctx, models.DispatchRequest{Provider: "sandbox", Operation: "echo"})
	require.NoError(t, err)
	assert.Equal(t, "integration not installed", res.Error)

	cred := verifiedSandbox(t, c, "Good")
	_, err = c.Integrations.Install(ctx, models.InstallRequest{IntegrationID: "sandbox", CredentialID: cred.ID})
	require.NoError(t, err)

	res, err = c.Integrations.Dispatch(ctx, models.DispatchRequest{Provider: "sandbox", Operation: "echo"})
	require.NoError(t, err)
	assert.True(t, res.Success)
}

func TestInstall_RequiresVerifiedCredential(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred := createSandbox(t, c, "Untested", "good-key")

	_, err := c.Integrations.Install(ctx, models.InstallRequest{IntegrationID: "sandbox", CredentialID: cred.ID})
	require.True(t, apierr.IsValidationError(err))
	e, _ := apierr.As(err)
	assert.Equal(t, "credential_not_verified", e.Code)

	_, err = c.Integrations.TestCredential(ctx, cred.ID)
	require.NoError(t, err)
	ui, err := c.Integrations.Install(ctx, models.InstallRequest{
		IntegrationID: "sandbox", CredentialID: cred.ID, Config: map[string]any{"channel": "#ops"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.InstallStatusActive, ui.Status)
	assert.Equal(t, "#ops", ui.Config["channel"])

	_, err = c.Integrations.Install(ctx, models.InstallRequest{IntegrationID: "sandbox", CredentialID: cred.ID})
	require.True(t, apierr.IsConflictError(err))
	e, _ = apierr.As(err)
	assert.Equal(t, "already_installed", e.Code)
}

func TestInstall_CredentialOfOtherIntegration(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	cred := verifiedSandbox(t, c, "Good")

	_, err := c.Integrations.Install(context.Background(), models.InstallRequest{IntegrationID: "slack", CredentialID: cred.ID})

	e, ok := apierr.As(err)
	require.True(t, ok)
	assert.Equal(t, "credential_mismatch", e.Code)
}

func TestUninstall_SoftAndCredentialGuard(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred := verifiedSandbox(t, c, "Good")
	ui, err := c.Integrations.Install(ctx, models.InstallRequest{IntegrationID: "sandbox", CredentialID: cred.ID})
	require.NoError(t, err)

	err = c.Integrations.DeleteCredential(ctx, cred.ID)
	require.True(t, apierr.IsConflictError(err))

	ui, err = c.Integrations.UpdateConfig(ctx, ui.ID, map[string]any{"voice": "alloy"})
	require.NoError(t, err)
	assert.Equal(t, "alloy", ui.Config["voice"])

	require.NoError(t, c.Integrations.Uninstall(ctx, ui.ID))

	live, err := c.Integrations.ListUserIntegrations(ctx, client.UserIntegrationFilter{})
	require.NoError(t, err)
	assert.Empty(t, live)
	all, err := c.Integrations.ListUserIntegrations(ctx, client.UserIntegrationFilter{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.InstallStatusInactive, all[0].Status)
	assert.NotNil(t, all[0].UninstalledAt)

	require.NoError(t, c.Integrations.DeleteCredential(ctx, cred.ID))
}

func TestQuota_OverLimitPercentage(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred := verifiedSandbox(t, c, "Good")
	for i := 0; i < 120; i++ {
		require.NoError(t, h.usage.Record(ctx, cred.ID, 0, h.now))
	}

	snap, err := c.Integrations.SetCredentialQuota(ctx, cred.ID, models.QuotaLimits{Daily: 100})
	require.NoError(t, err)
	require.Len(t, snap, 2)

	snap, err = c.Integrations.GetCredentialQuota(ctx, cred.ID)
	require.NoError(t, err)
	daily := snap[0]
	assert.Equal(t, models.QuotaDaily, daily.Period)
	assert.Equal(t, "sandbox", daily.Provider)
	assert.Equal(t, int64(120), daily.Used)
	assert.Equal(t, 120, daily.Percentage)
	assert.True(t, daily.OverQuota)
	assert.True(t, time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC).Equal(daily.ResetAt))
	assert.Equal(t, 0, snap[1].Percentage)

	res, err := c.Integrations.Dispatch(ctx, models.DispatchRequest{Provider: "sandbox", Operation: "echo", CredentialID: cred.ID})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "quota exceeded", res.Error)
}

func TestQuota_CustomLimitsOnCredential(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred, err := c.Integrations.CreateCredential(ctx, models.CreateCredentialRequest{
		IntegrationID: "sandbox", CredentialName: "Capped", CredentialType: "api_key",
		Credentials:       map[string]string{"api_key": "k"},
		CustomQuotaLimits: &models.QuotaLimits{Monthly: 10},
	})
	require.NoError(t, err)

	snap, err := c.Integrations.GetCredentialQuota(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap[1].Limit)
}

func TestTenantIsolation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	cred := verifiedSandbox(t, h.client(t, tenantA), "Good")
	other := h.client(t, tenantB)

	list, err := other.Integrations.ListCredentials(ctx, client.CredentialFilter{})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = other.Integrations.GetCredentialQuota(ctx, cred.ID)
	assert.True(t, apierr.IsNotFoundError(err))

	_, err = other.Integrations.Dispatch(ctx, models.DispatchRequest{Provider: "sandbox", Operation: "echo", CredentialID: cred.ID})
	assert.True(t, apierr.IsNotFoundError(err))

	unknown := h.client(t, "tenant-unknown")
	_, err = unknown.Integrations.ListCredentials(ctx, client.CredentialFilter{})
	assert.True(t, apierr.IsAuthError(err))
}

func TestExpiredToken(t *testing.T) {
	h := newHarness(t)
	c := client.NewClient(h.srv.URL+"/api/v1",
		client.WithTokenProvider(client.StaticToken(h.token(t, tenantA, time.Now().Add(-time.Hour)))))

	_, err := c.Integrations.ListCredentials(context.Background(), client.CredentialFilter{})

	require.True(t, apierr.IsAuthError(err))
	assert.Equal(t, "Authentication required. Please log in again.", apierr.Message(err))
}

func TestCatalogEndpoints(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()

	page, err := c.Integrations.List(ctx, client.IntegrationFilter{Category: "crm"})
	require.NoError(t, err)
	require.Len(t, page.Data, 1)
	assert.Equal(t, "hubspot", page.Data[0].ID)
	assert.Equal(t, 1, page.Pagination.Total)

	in, err := c.Integrations.Get(ctx, "slack")
	require.NoError(t, err)
	assert.Equal(t, "Slack", in.Name)

	schema, err := c.Integrations.FormSchema(ctx, "slack")
	require.NoError(t, err)
	assert.Equal(t, "api_key", schema.Fields[0].Name)

	_, err = c.Integrations.Get(ctx, "nope")
	assert.True(t, apierr.IsNotFoundError(err))
}

func TestPublicEndpoints(t *testing.T) {
	h := newHarness(t)
	for _, p := range []string{"/healthz", "/metrics", "/.well-known/openapi.json"} {
		resp, err := http.Get(h.srv.URL + p)
		require.NoError(t, err, p)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
	}
}

func TestWizard_EndToEnd(t *testing.T) {
	h := newHarness(t)
	c := h.client(t, tenantA)
	ctx := context.Background()
	sandbox, err := c.Integrations.Get(ctx, "sandbox")
	require.NoError(t, err)

	actions := wizard.NewActions(credentials.NewManager(c.Integrations), installs.NewManager(c.Integrations, nil))
	w := wizard.New(*sandbox, nil, actions)

	require.NoError(t, w.AddCredential(ctx, models.CreateCredentialRequest{
		CredentialName: "Main", Credentials: map[string]string{"api_key": "good-key"},
	}))
	assert.Equal(t, wizard.StepTestConnection, w.Step())

	_, err = w.TestConnection(ctx)
	require.NoError(t, err)
	assert.Equal(t, wizard.StepInstall, w.Step())
	require.True(t, w.CanInstall())

	ui, err := w.Install(ctx, map[string]any{"greeting": "hello"})
	require.NoError(t, err)
	assert.Equal(t, models.InstallStatusActive, ui.Status)

	// A second wizard reusing the name proceeds to test with a warning.
	again := wizard.New(*sandbox, nil, actions)
	require.NoError(t, again.AddCredential(ctx, models.CreateCredentialRequest{
		CredentialName: "Main", Credentials: map[string]string{"api_key": "good-key"},
	}))
	assert.Equal(t, wizard.StepTestConnection, again.Step())
	assert.NotEmpty(t, again.Warning())
}

// flakyStore fails the n-th UpdateCredential call.
type flakyStore struct {
	store.Store
	mu     sync.Mutex
	calls  int
	failOn int
}

func (f *flakyStore) UpdateCredential(ctx context.Context, c *store.Credential) error {
	f.mu.Lock()
	f.calls++
	fail := f.calls == f.failOn
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return f.Store.UpdateCredential(ctx, c)
}

func TestTestCredential_ResultSaveFailureIsRecoverable(t *testing.T) {
	st := &flakyStore{Store: store.NewMemory()}
	h := newHarnessWithStore(t, st)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred := createSandbox(t, c, "Flaky", "good-key")
	// The first update stores testing, the second the result.
	st.mu.Lock()
	st.failOn = 2
	st.mu.Unlock()

	_, err := c.Integrations.TestCredential(ctx, cred.ID)
	require.True(t, apierr.IsServerError(err))

	list, err := c.Integrations.ListCredentials(ctx, client.CredentialFilter{IntegrationID: "sandbox"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.TestStatusFailed, list[0].LastTestStatus)
	assert.Equal(t, "test result could not be saved", list[0].LastTestError)

	final, err := credentials.NewManager(c.Integrations).Test(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusSuccess, final.LastTestStatus)
}

func TestManagerTest_RetestsStaleTesting(t *testing.T) {
	st := &failAfter{Store: store.NewMemory(), after: -1}
	h := newHarnessWithStore(t, st)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred := createSandbox(t, c, "Stale", "good-key")
	// testing is stored, then the result and the fallback write both fail.
	st.setAfter(1)

	_, err := c.Integrations.TestCredential(ctx, cred.ID)
	require.Error(t, err)
	list, err := c.Integrations.ListCredentials(ctx, client.CredentialFilter{})
	require.NoError(t, err)
	require.Equal(t, models.TestStatusTesting, list[0].LastTestStatus)

	st.setAfter(-1)
	final, err := credentials.NewManager(c.Integrations).Test(ctx, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TestStatusSuccess, final.LastTestStatus)
}

// failAfter fails every UpdateCredential once `after` calls have passed.
// A negative value disables failures.
type failAfter struct {
	store.Store
	mu    sync.Mutex
	calls int
	after int
}

func (f *failAfter) setAfter(n int) {
	f.mu.Lock()
	f.calls, f.after = 0, n
	f.mu.Unlock()
}

func (f *failAfter) UpdateCredential(ctx context.Context, c *store.Credential) error {
	f.mu.Lock()
	f.calls++
	fail := f.after >= 0 && f.calls > f.after
	f.mu.Unlock()
	if fail {
		return errors.New("connection reset")
	}
	return f.Store.UpdateCredential(ctx, c)
}

func TestUninstall_FailedInstallBecomesInactive(t *testing.T) {
	st := store.NewMemory()
	h := newHarnessWithStore(t, st)
	c := h.client(t, tenantA)
	ctx := context.Background()
	cred := verifiedSandbox(t, c, "Good")
	require.NoError(t, st.CreateInstall(ctx, &models.UserIntegration{
		ID: "ui-failed", TenantID: tenantA, UserID: "user-1", IntegrationID: "sandbox",
		CredentialID: cred.ID, Status: models.InstallStatusFailed,
		InstalledAt: h.now, UpdatedAt: h.now,
	}))

	ui, err := c.Integrations.UpdateConfig(ctx, "ui-failed", map[string]any{"voice": "alloy"})
	require.NoError(t, err)
	assert.Equal(t, models.InstallStatusFailed, ui.Status)

	require.NoError(t, c.Integrations.Uninstall(ctx, "ui-failed"))
	all, err := c.Integrations.ListUserIntegrations(ctx, client.UserIntegrationFilter{IncludeInactive: true})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, models.InstallStatusInactive, all[0].Status)
	assert.NotNil(t, all[0].UninstalledAt)

	_, err = c.Integrations.UpdateConfig(ctx, "ui-failed", map[string]any{"voice": "echo"})
	require.True(t, apierr.IsConflictError(err))
	e, _ := apierr.As(err)
	assert.Equal(t, CodeInstallInactive, e.Code)

	require.NoError(t, c.Integrations.Uninstall(ctx, "ui-failed"))
}
