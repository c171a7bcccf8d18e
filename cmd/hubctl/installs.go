package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/client"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/credentials"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
)

func (c *cli) installCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install <integration-id> <credential-id>",
		Short: "Install an integration with a verified credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("config")
			cfg, err := parseObject(raw)
			if err != nil {
				return err
			}
			api := c.client().Integrations
			creds := credentials.NewManager(api)
			cred, err := creds.Get(ctx(cmd), args[1])
			if err != nil {
				return c.fail(err)
			}
			if cred.Verified() && creds.NeedsRetest(cred) {
				return fmt.Errorf("credential %s has expired, run hubctl credentials test %s first", cred.ID, cred.ID)
			}
			ui, err := installs.NewManager(api, nil).Install(ctx(cmd), args[0], cred, cfg)
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(ui)
			}
			fmt.Fprintf(c.out, "%s installed as %s (%s)\n", ui.IntegrationID, ui.ID, ui.Status)
			return nil
		},
	}
	cmd.Flags().String("config", "", "integration config as a JSON object")
	return cmd
}

func (c *cli) uninstallCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <user-integration-id>",
		Short: "Deactivate an installed integration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := installs.NewManager(c.client().Integrations, nil).Uninstall(ctx(cmd), args[0]); err != nil {
				return c.fail(err)
			}
			fmt.Fprintf(c.out, "%s uninstalled\n", args[0])
			return nil
		},
	}
}

func (c *cli) installsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "installs",
		Short: "Inspect and configure installed integrations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List installed integrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			integration, _ := cmd.Flags().GetString("integration")
			all, _ := cmd.Flags().GetBool("all")
			list, err := c.client().Integrations.ListUserIntegrations(ctx(cmd), client.UserIntegrationFilter{
				IntegrationID:   integration,
				IncludeInactive: all,
			})
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(list)
			}
			if len(list) == 0 {
				fmt.Fprintln(c.out, "No integrations installed")
				return nil
			}
			w := c.table("ID", "INTEGRATION", "CREDENTIAL", "STATUS", "SYNC", "ERRORS")
			for _, ui := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
					ui.ID, ui.IntegrationID, orDash(ui.CredentialID), ui.Status, orDash(ui.SyncStatus), ui.ErrorCount)
			}
			return w.Flush()
		},
	}
	list.Flags().String("integration", "", "only installs of this integration")
	list.Flags().Bool("all", false, "include uninstalled records")

	configure := &cobra.Command{
		Use:   "configure <integration-id> <json>",
		Short: "Update the config of the active install, sending only changed keys",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			desired, err := parseObject(args[1])
			if err != nil {
				return err
			}
			m := installs.NewManager(c.client().Integrations, nil)
			active, err := m.Active(ctx(cmd), args[0])
			if err != nil {
				return c.fail(err)
			}
			if active == nil {
				return fmt.Errorf("%s is not installed", args[0])
			}
			ui, err := m.UpdateConfig(ctx(cmd), *active, desired)
			if err != nil {
				return c.fail(err)
			}
			return c.printJSON(ui.Config)
		},
	}

	cmd.AddCommand(list, configure)
	return cmd
}

func parseObject(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return out, nil
}
