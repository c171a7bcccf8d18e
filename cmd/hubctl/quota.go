package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/models"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/quota"
)

func (c *cli) quotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Inspect and set per-credential usage limits",
	}

	get := &cobra.Command{
		Use:   "get <credential-id>",
		Short: "Show daily and monthly usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			usage, err := quota.NewService(c.client().Integrations).Get(ctx(cmd), args[0])
			if err != nil {
				return c.fail(err)
			}
			return c.printQuota(usage)
		},
	}

	set := &cobra.Command{
		Use:   "set <credential-id>",
		Short: "Set usage limits; 0 means unlimited",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			daily, _ := cmd.Flags().GetInt64("daily")
			monthly, _ := cmd.Flags().GetInt64("monthly")
			usage, err := quota.NewService(c.client().Integrations).Set(ctx(cmd), args[0], models.QuotaLimits{Daily: daily, Monthly: monthly})
			if err != nil {
				return c.fail(err)
			}
			return c.printQuota(usage)
		},
	}
	set.Flags().Int64("daily", 0, "requests per UTC day")
	set.Flags().Int64("monthly", 0, "requests per UTC month")

	cmd.AddCommand(get, set)
	return cmd
}

func (c *cli) printQuota(usage []models.QuotaUsage) error {
	if c.jsonOut() {
		return c.printJSON(usage)
	}
	w := c.table("PERIOD", "USED", "LIMIT", "PCT", "RESETS")
	for _, u := range usage {
		limit := "unlimited"
		if u.Limit > 0 {
			limit = fmt.Sprint(u.Limit)
		}
		pct := fmt.Sprintf("%d%%", quota.Display(u.Percentage))
		if u.OverQuota {
			pct += " over"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", u.Period, u.Used, limit, pct, u.ResetAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}
