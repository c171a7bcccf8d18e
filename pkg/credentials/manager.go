// Package credentials mediates a credential's trust level: created as
// not_tested, moved through testing to success or failed by the connection
// test, and retestable at any time.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/cache"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/client"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

var (
	ErrInvalidTransition = errors.New("invalid credential status transition")
	ErrUnknownCredential = errors.New("credential not found")
)

// API is the slice of the integrations surface the manager drives.
// *client.IntegrationsService satisfies it.
type API interface {
	ListCredentials(ctx context.Context, f client.CredentialFilter) ([]models.IntegrationCredential, error)
	CreateCredential(ctx context.Context, req models.CreateCredentialRequest) (*models.IntegrationCredential, error)
	UpdateCredential(ctx context.Context, id string, req models.UpdateCredentialRequest) (*models.IntegrationCredential, error)
	DeleteCredential(ctx context.Context, id string) error
	TestCredential(ctx context.Context, credentialID string) (*models.TestCredentialResponse, error)
}

// StatusObserver is told about every local status change, in order.
type StatusObserver func(credentialID string, status models.TestStatus)

// CreateResult is the outcome of Create. Duplicate is set when the name was
// already taken and the policy allowed continuing; Credential is then the
// existing credential when it could be found.
type CreateResult struct {
	Credential *models.IntegrationCredential
	Duplicate  bool
	Warning    string
}

type Manager struct {
	api      API
	policy   ConflictRecoveryPolicy
	cache    *cache.Cache[string, models.IntegrationCredential]
	observer StatusObserver
	now      func() time.Time
	log      *zap.SugaredLogger
}

type Option func(*Manager)

func WithPolicy(p ConflictRecoveryPolicy) Option { return func(m *Manager) { m.policy = p } }

func WithObserver(o StatusObserver) Option { return func(m *Manager) { m.observer = o } }

func WithCache(c *cache.Cache[string, models.IntegrationCredential]) Option {
	return func(m *Manager) { m.cache = c }
}

func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}

func NewManager(api API, opts ...Option) *Manager {
	m := &Manager{
		api:    api,
		policy: DefaultConflictPolicy,
		cache:  cache.New[string, models.IntegrationCredential](0, 0),
		now:    time.Now,
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// List fetches credentials, optionally for one integration, and refreshes the cache.
func (m *Manager) List(ctx context.Context, integrationID string) ([]models.IntegrationCredential, error) {
	creds, err := m.api.ListCredentials(ctx, client.CredentialFilter{IntegrationID: integrationID})
	if err != nil {
		return nil, err
	}
	for _, c := range creds {
		m.cache.Set(c.ID, c)
	}
	return creds, nil
}

// Get returns the last known state of a credential, refetching on a miss.
func (m *Manager) Get(ctx context.Context, id string) (models.IntegrationCredential, error) {
	if c, ok := m.cache.Get(id); ok {
		return c, nil
	}
	if _, err := m.List(ctx, ""); err != nil {
		return models.IntegrationCredential{}, err
	}
	if c, ok := m.cache.Get(id); ok {
		return c, nil
	}
	return models.IntegrationCredential{}, fmt.Errorf("%w: %s", ErrUnknownCredential, id)
}

// Create pre-validates the input against the integration's schema and
// submits it. A duplicate name is recovered according to the policy.
func (m *Manager) Create(ctx context.Context, integration models.Integration, req models.CreateCredentialRequest) (*CreateResult, error) {
	if req.IntegrationID == "" {
		req.IntegrationID = integration.ID
	}
	if req.CredentialType == "" {
		req.CredentialType = integration.AuthType
	}
	if err := ValidateInput(integration.CredentialsSchema, req.CredentialName, req.Credentials); err != nil {
		return nil, err
	}

	cred, err := m.api.CreateCredential(ctx, req)
	if err != nil {
		if !m.policy.Recoverable(err) {
			return nil, err
		}
		m.log.Infow("credential name already exists, continuing",
			"integration_id", req.IntegrationID, "credential_name", req.CredentialName)
		res := &CreateResult{
			Duplicate: true,
			Warning:   fmt.Sprintf("A credential named %q already exists for this integration.", req.CredentialName),
		}
		existing, lerr := m.List(ctx, req.IntegrationID)
		if lerr != nil {
			m.log.Warnw("could not load existing credential", "err", lerr)
			return res, nil
		}
		for i := range existing {
			if existing[i].CredentialName == req.CredentialName {
				res.Credential = &existing[i]
				break
			}
		}
		return res, nil
	}

	m.cache.Set(cred.ID, *cred)
	return &CreateResult{Credential: cred}, nil
}

func (m *Manager) Update(ctx context.Context, id string, req models.UpdateCredentialRequest) (*models.IntegrationCredential, error) {
	m.cache.Invalidate(id)
	cred, err := m.api.UpdateCredential(ctx, id, req)
	if err != nil {
		return nil, err
	}
	m.cache.Set(cred.ID, *cred)
	return cred, nil
}

// Delete removes a credential. Deleting one that is already gone succeeds.
// Active installs referencing the credential are not checked here.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.cache.Invalidate(id)
	if err := m.api.DeleteCredential(ctx, id); err != nil && !apierr.IsNotFoundError(err) {
		return err
	}
	return nil
}

// Test runs the connection test. The credential moves to testing before the
// call and to success or failed from the test response. A transport failure
// leaves it failed locally and is returned.
func (m *Manager) Test(ctx context.Context, id string) (*models.IntegrationCredential, error) {
	cur, err := m.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(cur.LastTestStatus, models.TestStatusTesting) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, cur.LastTestStatus, models.TestStatusTesting)
	}
	cur = m.setStatus(cur, models.TestStatusTesting, "")

	res, err := m.api.TestCredential(ctx, id)
	if err != nil {
		m.setStatus(cur, models.TestStatusFailed, apierr.Message(err))
		return nil, err
	}

	if res.Credential != nil && res.Credential.ID != "" {
		final := *res.Credential
		if final.LastTestStatus != models.TestStatusSuccess && final.LastTestStatus != models.TestStatusFailed {
			final.LastTestStatus = outcome(res)
		}
		m.notify(final.ID, final.LastTestStatus)
		m.cache.Set(final.ID, final)
		return &final, nil
	}
	final := m.setStatus(cur, outcome(res), testError(res))
	return &final, nil
}

// NeedsRetest reports whether a credential is unverified or past its expiry.
func (m *Manager) NeedsRetest(c models.IntegrationCredential) bool {
	if !c.Verified() {
		return true
	}
	return c.ExpiresAt != nil && !m.now().Before(*c.ExpiresAt)
}

func (m *Manager) setStatus(c models.IntegrationCredential, s models.TestStatus, lastErr string) models.IntegrationCredential {
	c.LastTestStatus = s
	if s != models.TestStatusTesting {
		now := m.now().UTC()
		c.LastTestedAt = &now
		c.LastTestError = lastErr
	}
	m.notify(c.ID, s)
	m.cache.Set(c.ID, c)
	return c
}

func (m *Manager) notify(id string, s models.TestStatus) {
	if m.observer != nil {
		m.observer(id, s)
	}
}

func outcome(res *models.TestCredentialResponse) models.TestStatus {
	if res.Status == models.TestStatusSuccess || res.Status == models.TestStatusFailed {
		return res.Status
	}
	if res.Success {
		return models.TestStatusSuccess
	}
	return models.TestStatusFailed
}

func testError(res *models.TestCredentialResponse) string {
	if outcome(res) == models.TestStatusSuccess {
		return ""
	}
	if res.Error != "" {
		return res.Error
	}
	return res.Message
}

// CanTransition reports whether a credential may move from one test status to another.
// A credential left in testing by an interrupted run may be tested again.
func CanTransition(from, to models.TestStatus) bool {
	switch to {
	case models.TestStatusTesting:
		return from == models.TestStatusNotTested || from == models.TestStatusFailed ||
			from == models.TestStatusSuccess || from == models.TestStatusTesting || from == ""
	case models.TestStatusSuccess, models.TestStatusFailed:
		return from == models.TestStatusTesting
	}
	return false
}
