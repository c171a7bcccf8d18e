package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/client"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
)

func (c *cli) integrationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "integrations",
		Aliases: []string{"catalog"},
		Short:   "Browse the integration catalog",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List available integrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			category, _ := cmd.Flags().GetString("category")
			search, _ := cmd.Flags().GetString("search")
			page, _ := cmd.Flags().GetInt("page")
			limit, _ := cmd.Flags().GetInt("limit")
			res, err := c.client().Integrations.List(ctx(cmd), client.IntegrationFilter{
				Category:   category,
				Search:     search,
				ListParams: models.ListParams{Page: page, Limit: limit},
			})
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(res)
			}
			w := c.table("ID", "NAME", "CATEGORY", "AUTH")
			for _, in := range res.Data {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", in.ID, in.Name, in.Category, in.AuthType)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "page %d/%d, %d total\n", res.Pagination.Page, res.Pagination.TotalPages, res.Pagination.Total)
			return nil
		},
	}
	list.Flags().String("category", "", "filter by category")
	list.Flags().String("search", "", "match name or description")
	list.Flags().Int("page", 1, "page number")
	list.Flags().Int("limit", 20, "page size")

	get := &cobra.Command{
		Use:   "get <integration-id>",
		Short: "Show one integration and its credential form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := c.client().Integrations.Get(ctx(cmd), args[0])
			if err != nil {
				return c.fail(err)
			}
			if c.jsonOut() {
				return c.printJSON(in)
			}
			fmt.Fprintf(c.out, "%s (%s)\n", in.Name, in.ID)
			fmt.Fprintf(c.out, "  category:  %s\n  auth:      %s\n", in.Category, in.AuthType)
			if in.Description != "" {
				fmt.Fprintf(c.out, "  %s\n", in.Description)
			}
			fmt.Fprintln(c.out, "  credentials:")
			for _, f := range in.CredentialsSchema {
				req := ""
				if f.Required {
					req = " (required)"
				}
				fmt.Fprintf(c.out, "    %s [%s]%s\n", f.Name, f.Type, req)
			}
			return nil
		},
	}

	cmd.AddCommand(list, get)
	return cmd
}

// parseSecrets turns repeated key=value flags into a credential bundle.
func parseSecrets(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --secret %q, want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
