package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/credentials"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/installs"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

func (c *cli) credentialsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Store and verify integration credentials",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			integration, _ := cmd.Flags().GetString("integration")
			m := credentials.NewManager(c.client().Integrations)
			creds, err := m.List(ctx(cmd), integration)
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(creds)
			}
			if len(creds) == 0 {
				fmt.Fprintln(c.out, "No credentials found")
				return nil
			}
			w := c.table("ID", "INTEGRATION", "NAME", "STATUS", "TESTED", "EXPIRES", "RETEST")
			for _, cr := range creds {
				retest := "no"
				if m.NeedsRetest(cr) {
					retest = "yes"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					cr.ID, cr.IntegrationID, cr.CredentialName, cr.LastTestStatus, when(cr.LastTestedAt), when(cr.ExpiresAt), retest)
			}
			return w.Flush()
		},
	}
	list.Flags().String("integration", "", "only credentials for this integration")

	create := &cobra.Command{
		Use:   "create <integration-id>",
		Short: "Store a new credential",
		Long: `Store a credential for an integration. Secret values are given as
repeated --secret key=value flags and checked against the integration's
form before anything is sent.

Examples:
  hubctl credentials create slack --name prod --secret api_key=xoxb-...
  hubctl credentials create sandbox --name demo --secret api_key=demo --test`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			pairs, _ := cmd.Flags().GetStringArray("secret")
			expires, _ := cmd.Flags().GetDuration("expires-in")
			test, _ := cmd.Flags().GetBool("test")
			values, err := parseSecrets(pairs)
			if err != nil {
				return err
			}

			api := c.client().Integrations
			integration, err := api.Get(ctx(cmd), args[0])
			if err != nil {
				return c.fail(err)
			}
			req := models.CreateCredentialRequest{CredentialName: name, Credentials: values}
			if expires > 0 {
				at := time.Now().Add(expires).UTC()
				req.ExpiresAt = &at
			}
			m := credentials.NewManager(api, credentials.WithObserver(c.statusObserver))
			res, err := m.Create(ctx(cmd), *integration, req)
			if err != nil {
				return c.fail(err)
			}
			if res.Warning != "" {
				fmt.Fprintln(c.out, "Warning:", res.Warning)
			}
			if res.Credential == nil {
				return nil
			}
			cred := res.Credential
			if test {
				if cred, err = m.Test(ctx(cmd), cred.ID); err != nil {
					return c.fail(err)
				}
			}
			if c.jsonOut() {
				return c.printJSON(cred)
			}
			fmt.Fprintf(c.out, "%s %s (%s)\n", cred.ID, cred.CredentialName, cred.LastTestStatus)
			return nil
		},
	}
	create.Flags().String("name", "", "credential name, unique per integration")
	create.Flags().StringArray("secret", nil, "secret value as key=value, repeatable")
	create.Flags().Duration("expires-in", 0, "mark the credential as expiring after this duration")
	create.Flags().Bool("test", false, "test the credential right after creating it")
	_ = create.MarkFlagRequired("name")

	test := &cobra.Command{
		Use:   "test <credential-id>",
		Short: "Test a credential against its provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := credentials.NewManager(c.client().Integrations, credentials.WithObserver(c.statusObserver))
			cred, err := m.Test(ctx(cmd), args[0])
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(cred)
			}
			if cred.LastTestError != "" {
				fmt.Fprintln(c.out, "  ", cred.LastTestError)
			}
			if !cred.Verified() {
				return fmt.Errorf("credential %s failed its test", cred.ID)
			}
			return nil
		},
	}

	rename := &cobra.Command{
		Use:   "rename <credential-id> <name>",
		Short: "Rename a credential",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m := credentials.NewManager(c.client().Integrations)
			cred, err := m.Update(ctx(cmd), args[0], models.UpdateCredentialRequest{CredentialName: &args[1]})
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(cred)
			}
			fmt.Fprintf(c.out, "%s renamed to %s\n", cred.ID, cred.CredentialName)
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <credential-id>",
		Short: "Delete a credential that no active install uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api := c.client().Integrations
			if err := installs.NewManager(api, nil).GuardCredentialDelete(ctx(cmd), args[0]); err != nil {
				return c.fail(err)
			}
			if err := credentials.NewManager(api).Delete(ctx(cmd), args[0]); err != nil {
				return c.fail(err)
			}
			fmt.Fprintf(c.out, "%s deleted\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, create, test, rename, del)
	return cmd
}

func (c *cli) statusObserver(id string, s models.TestStatus) {
	if c.jsonOut() {
		return
	}
	fmt.Fprintf(c.out, "%s: %s\n", id, s)
}
