// Package wizard sequences integration setup: add credentials, test the
// connection, install. Ordering here is a convenience for the user; the
// server rejects an install with an unverified credential on its own.
package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/credentials"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

type Step int

const (
	StepAddCredentials Step = iota
	StepTestConnection
	StepInstall
)

func (s Step) String() string {
	switch s {
	case StepAddCredentials:
		return "add_credentials"
	case StepTestConnection:
		return "test_connection"
	case StepInstall:
		return "install"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrInstallDisabled = errors.New("install requires a verified credential")
	ErrNoCredential    = errors.New("no credential selected")
)

// Wizard holds the setup state for one integration. Not safe for concurrent use.
type Wizard struct {
	integration models.Integration
	actions     Actions
	step        Step
	creds       []models.IntegrationCredential
	selected    string
	pending     string
	warning     string
	installed   *models.UserIntegration
}

// New starts the wizard. Existing credentials skip straight to testing.
func New(integration models.Integration, existing []models.IntegrationCredential, actions Actions) *Wizard {
	w := &Wizard{integration: integration, actions: actions}
	for _, c := range existing {
		if c.IntegrationID == "" || c.IntegrationID == integration.ID {
			w.creds = append(w.creds, c)
		}
	}
	if len(w.creds) > 0 {
		w.step = StepTestConnection
		w.selected = w.creds[0].ID
	}
	return w
}

func (w *Wizard) Step() Step                                  { return w.step }
func (w *Wizard) Warning() string                             { return w.warning }
func (w *Wizard) Selected() string                            { return w.selected }
func (w *Wizard) Installed() *models.UserIntegration          { return w.installed }
func (w *Wizard) Credentials() []models.IntegrationCredential { return w.creds }

// Select picks which credential the test and install steps act on.
func (w *Wizard) Select(credentialID string) error {
	if _, ok := w.find(credentialID); !ok {
		return fmt.Errorf("%w: %s", ErrNoCredential, credentialID)
	}
	w.selected = credentialID
	w.pending = ""
	return nil
}

// CanInstall is true once any credential in the working set has passed its
// test and has not expired since.
func (w *Wizard) CanInstall() bool {
	for _, c := range w.creds {
		if w.usable(c) {
			return true
		}
	}
	return false
}

func (w *Wizard) usable(c models.IntegrationCredential) bool {
	if w.actions.NeedsRetest != nil {
		return !w.actions.NeedsRetest(c)
	}
	return c.Verified()
}

// Back returns to the previous step.
func (w *Wizard) Back() {
	if w.step > StepAddCredentials {
		w.step--
	}
}

// AddCredential creates a credential and advances to testing. A duplicate
// name also advances, with a warning, when the policy allows it. If the
// existing credential could not be loaded, the test step looks it up again
// by name.
func (w *Wizard) AddCredential(ctx context.Context, req models.CreateCredentialRequest) error {
	w.warning = ""
	res, err := w.actions.OnAddCredential(ctx, w.integration, req)
	if err != nil {
		return err
	}
	if res.Duplicate {
		w.warning = res.Warning
	}
	switch {
	case res.Credential != nil:
		w.upsert(*res.Credential)
		w.selected = res.Credential.ID
		w.pending = ""
	case res.Duplicate:
		w.selected = ""
		w.pending = req.CredentialName
		if c, ok := w.findByName(w.pending); ok {
			w.selected = c.ID
			w.pending = ""
		} else {
			w.warning += " Select the existing credential to continue."
		}
	}
	w.step = StepTestConnection
	return nil
}

// TestConnection tests the selected credential and moves on to install when
// the result is success. The test response is used directly.
func (w *Wizard) TestConnection(ctx context.Context) (*models.IntegrationCredential, error) {
	if w.selected == "" && w.pending != "" {
		if err := w.resolvePending(ctx); err != nil {
			return nil, err
		}
	}
	if w.selected == "" {
		return nil, ErrNoCredential
	}
	cred, err := w.actions.OnTestConnection(ctx, w.selected)
	if err != nil {
		return nil, err
	}
	w.upsert(*cred)
	if w.usable(*cred) {
		w.step = StepInstall
	}
	return cred, nil
}

// resolvePending reloads the integration's credentials and selects the one
// whose name collided on create.
func (w *Wizard) resolvePending(ctx context.Context) error {
	if w.actions.OnListCredentials == nil {
		return fmt.Errorf("%w: %s", ErrNoCredential, w.pending)
	}
	list, err := w.actions.OnListCredentials(ctx, w.integration.ID)
	if err != nil {
		return err
	}
	for _, c := range list {
		if c.IntegrationID == "" || c.IntegrationID == w.integration.ID {
			w.upsert(c)
		}
	}
	c, ok := w.findByName(w.pending)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoCredential, w.pending)
	}
	w.selected = c.ID
	w.pending = ""
	return nil
}

// Install activates the integration with the selected credential, or the
// first verified one when the selection has not passed.
func (w *Wizard) Install(ctx context.Context, config map[string]any) (*models.UserIntegration, error) {
	if !w.CanInstall() {
		return nil, ErrInstallDisabled
	}
	cred, ok := w.find(w.selected)
	if !ok || !w.usable(cred) {
		for _, c := range w.creds {
			if w.usable(c) {
				cred = c
				break
			}
		}
	}
	ui, err := w.actions.OnInstall(ctx, w.integration.ID, cred, config)
	if err != nil {
		return nil, err
	}
	w.installed = ui
	return ui, nil
}

// Uninstall deactivates the install made by this wizard.
func (w *Wizard) Uninstall(ctx context.Context) error {
	if w.installed == nil {
		return nil
	}
	if err := w.actions.OnUninstall(ctx, w.installed.ID); err != nil {
		return err
	}
	w.installed = nil
	return nil
}

func (w *Wizard) find(id string) (models.IntegrationCredential, bool) {
	for _, c := range w.creds {
		if c.ID == id {
			return c, true
		}
	}
	return models.IntegrationCredential{}, false
}

func (w *Wizard) findByName(name string) (models.IntegrationCredential, bool) {
	for _, c := range w.creds {
		if c.CredentialName == name {
			return c, true
		}
	}
	return models.IntegrationCredential{}, false
}

func (w *Wizard) upsert(c models.IntegrationCredential) {
	for i := range w.creds {
		if w.creds[i].ID == c.ID {
			w.creds[i] = c
			return
		}
	}
	w.creds = append(w.creds, c)
}

// Actions are the callbacks a setup screen invokes. OnListCredentials and
// NeedsRetest are optional; without NeedsRetest a credential is usable once
// its last test passed.
type Actions struct {
	OnAddCredential   func(ctx context.Context, integration models.Integration, req models.CreateCredentialRequest) (*credentials.CreateResult, error)
	OnListCredentials func(ctx context.Context, integrationID string) ([]models.IntegrationCredential, error)
	OnTestConnection  func(ctx context.Context, credentialID string) (*models.IntegrationCredential, error)
	OnInstall         func(ctx context.Context, integrationID string, cred models.IntegrationCredential, config map[string]any) (*models.UserIntegration, error)
	OnUninstall       func(ctx context.Context, userIntegrationID string) error
	NeedsRetest       func(c models.IntegrationCredential) bool
}
