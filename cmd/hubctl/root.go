package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/apierr"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/client"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/logger"
)

// cli carries resolved settings for every subcommand. Precedence is
// flag > HUB_* environment > config file > default.
type cli struct {
	v   *viper.Viper
	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	_, root := newCLI(out)
	return root
}

func newCLI(out io.Writer) (*cli, *cobra.Command) {
	c := &cli{v: viper.New(), out: out}
	var cfgFile string

	root := &cobra.Command{
		Use:   "hubctl",
		Short: "Manage voice agent integrations",
		Long: `hubctl drives the integrations API: browse the catalog, store and test
credentials, install integrations, dispatch provider operations and
inspect quotas.

Examples:
  hubctl integrations list --category crm
  hubctl credentials create slack --name prod --secret api_key=xoxb-...
  hubctl credentials test <credential-id>
  hubctl install slack <credential-id>
  hubctl dispatch sandbox echo --payload '{"text":"hi"}'`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.loadConfig(cfgFile)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default $HOME/.hubctl.yaml)")
	pf.String("api-url", "", "API base URL; overrides the env default")
	pf.String("env", "dev", "environment used to pick the default API URL (dev, prod)")
	pf.String("token", "", "bearer token")
	pf.Duration("timeout", 30*time.Second, "per-request timeout")
	pf.Int("retries", 3, "attempts for retryable failures")
	pf.Bool("json", false, "print raw JSON")
	pf.Bool("verbose", false, "log requests to stderr")
	for _, name := range []string{"api-url", "env", "token", "timeout", "retries", "json", "verbose"} {
		_ = c.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		c.integrationsCmd(),
		c.credentialsCmd(),
		c.installCmd(),
		c.uninstallCmd(),
		c.installsCmd(),
		c.dispatchCmd(),
		c.quotaCmd(),
	)
	root.SetOut(out)
	return c, root
}

func (c *cli) loadConfig(file string) error {
	c.v.SetEnvPrefix("HUB")
	c.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.v.AutomaticEnv()

	if file != "" {
		c.v.SetConfigFile(file)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		c.v.SetConfigName(".hubctl")
		c.v.SetConfigType("yaml")
		c.v.AddConfigPath(home)
	}
	if err := c.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (file == "" && os.IsNotExist(err)) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", filepath.Base(c.v.ConfigFileUsed()), err)
	}
	return nil
}

func (c *cli) baseURL() string {
	cfg := config.Config{
		Env:        c.v.GetString("env"),
		APIURL:     c.v.GetString("api-url"),
		DevAPIURL:  config.DefaultDevAPIURL,
		ProdAPIURL: config.DefaultProdAPIURL,
	}
	return cfg.APIBaseURL()
}

func (c *cli) client() *client.Client {
	opts := []client.Option{
		client.WithTimeout(c.v.GetDuration("timeout")),
		client.WithRetryAttempts(c.v.GetInt("retries")),
	}
	if tok := c.v.GetString("token"); tok != "" {
		opts = append(opts, client.WithTokenProvider(client.StaticToken(tok)))
	}
	if c.v.GetBool("verbose") {
		opts = append(opts, client.WithLogger(logger.New("dev")))
	}
	return client.NewClient(c.baseURL(), opts...)
}

func (c *cli) jsonOut() bool { return c.v.GetBool("json") }

// fail prints the user-facing message for err and returns it for the exit code.
func (c *cli) fail(err error) error {
	e, ok := apierr.As(err)
	if !ok {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	fmt.Fprintln(os.Stderr, "Error:", apierr.Message(err))
	for _, f := range e.Fields {
		fmt.Fprintf(os.Stderr, "  %s: %s\n", f.Field, f.Message)
	}
	return err
}

func ctx(cmd *cobra.Command) context.Context {
	if cmd.Context() != nil {
		return cmd.Context()
	}
	return context.Background()
}
