package wizard

import (
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/credentials"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
)

// NewActions wires the callbacks to the credential and install managers.
func NewActions(creds *credentials.Manager, inst *installs.Manager) Actions {
	return Actions{
		OnAddCredential:   creds.Create,
		OnListCredentials: creds.List,
		OnTestConnection:  creds.Test,
		OnInstall:         inst.Install,
		OnUninstall:       inst.Uninstall,
		NeedsRetest:       creds.NeedsRetest,
	}
}
