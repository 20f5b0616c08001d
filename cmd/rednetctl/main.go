package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rednet-io/rednet-go/internal/api"
	"github.com/rednet-io/rednet-go/internal/config"
)

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	url        string
	token      string
	logLevel   string
	logJSON    bool
}

func main() {
	var flags globalFlags

	rootCmd := &cobra.Command{
		Use:   "rednetctl",
		Short: "Command-line client for the Rednet agent-management service",
		Long: `rednetctl talks to a Rednet server over REST and over the
persistent handler and listener channels.

Configuration comes from --config (YAML or JSON), otherwise from the
REDNET_API_* environment variables. --url and --token override both.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(flags.logLevel, flags.logJSON)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to config file")
	pf.StringVar(&flags.url, "url", "", "server base URL (overrides config)")
	pf.StringVar(&flags.token, "token", "", "access token (overrides config)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	pf.BoolVar(&flags.logJSON, "log-json", false, "log as JSON")

	rootCmd.AddCommand(
		loginCmd(&flags),
		listCmd(&flags, "agents", "/agent"),
		listCmd(&flags, "operators", "/operator"),
		listCmd(&flags, "listeners", "/listener"),
		execCmd(&flags),
		listenCmd(&flags),
		versionCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func setupLogging(level string, asJSON bool) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return fmt.Errorf("invalid --log-level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if asJSON {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}

// loadConfig resolves configuration from the config file or environment,
// then applies flag overrides.
func loadConfig(flags *globalFlags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadWithDefaults(flags.configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, err
	}

	if flags.url != "" {
		cfg.BaseURL = flags.url
	}
	if flags.token != "" {
		cfg.Token = flags.token
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// newAPI builds an API from the resolved configuration.
func newAPI(flags *globalFlags, opts ...api.ClientOption) (*api.API, *config.Config, error) {
	cfg, err := loadConfig(flags)
	if err != nil {
		return nil, nil, err
	}

	opts = append([]api.ClientOption{api.WithLogger(slog.Default())}, opts...)
	client, err := api.NewFromConfig(cfg, opts...)
	if err != nil {
		return nil, nil, err
	}
	return api.New(client), cfg, nil
}
