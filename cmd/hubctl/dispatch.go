package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

func (c *cli) dispatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispatch <provider> <operation>",
		Short: "Run a provider operation",
		Long: `Run one operation against a provider. Without --credential the
credential of the active install is used.

Examples:
  hubctl dispatch sandbox echo --payload '{"text":"hi","tokens":12}'
  hubctl dispatch slack post_message --credential <id> --payload '{"channel":"#ops","text":"done"}'`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, _ := cmd.Flags().GetString("payload")
			credentialID, _ := cmd.Flags().GetString("credential")
			payload, err := parseObject(raw)
			if err != nil {
				return err
			}
			res, err := c.client().Integrations.Dispatch(ctx(cmd), models.DispatchRequest{
				Provider:     args[0],
				Operation:    args[1],
				Payload:      payload,
				CredentialID: credentialID,
			})
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(res)
			}
			if !res.Success {
				fmt.Fprintf(c.out, "failed after %dms: %s\n", res.ResponseTimeMs, res.Error)
				return fmt.Errorf("dispatch failed: %s", res.Error)
			}
			fmt.Fprintf(c.out, "ok in %dms", res.ResponseTimeMs)
			if res.TokensUsed != nil {
				fmt.Fprintf(c.out, ", %d tokens", *res.TokensUsed)
			}
			fmt.Fprintln(c.out)
			return c.printJSON(res.Result)
		},
	}
	cmd.Flags().String("payload", "", "operation payload as a JSON object")
	cmd.Flags().String("credential", "", "credential to use")
	return cmd
}
