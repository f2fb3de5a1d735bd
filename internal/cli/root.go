// Package cli implements the themesync command line.
package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/opencode-ai/themesync/internal/config"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile        string
	logLevel       string
	jsonOutput     bool
	jsonlOutput    bool
	simulate       bool
	serverURL      string
	nonInteractive bool
	noProgress     bool
	assumeYes      bool

	appConfig *config.Config
	version   = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "themesync",
	Short: "Apply color themes and keep the host's light/dark mode in sync",
	Long: `themesync stores named color themes and applies one to a host
application, switching the host between light and dark mode so the theme
and its base appearance agree.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ~/.config/themesync/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&jsonOutput, "json", false, "output JSON")
	flags.BoolVar(&jsonlOutput, "jsonl", false, "output JSON lines")
	flags.BoolVar(&simulate, "simulate", false, "run against an in-memory host instead of the daemon")
	flags.StringVar(&serverURL, "server", "", "daemon URL (default from server.listen)")
	flags.BoolVar(&nonInteractive, "non-interactive", false, "never prompt")
	flags.BoolVar(&noProgress, "no-progress", false, "disable progress output")
	flags.BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmations")
}

// Execute runs the root command. Cancelling ctx stops long-running commands.
func Execute(ctx context.Context, v string) error {
	if v != "" {
		version = v
	}
	rootCmd.Version = version
	return rootCmd.ExecuteContext(ctx)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func initConfig() error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if IsJSONOutput() || IsJSONLOutput() {
		cfg.Logging.Format = "json"
	}
	logging.Init(cfg.Logging)
	appConfig = cfg

	logger := logging.Component("cli")
	logger.Debug().
		Str("config", cfg.Source).
		Str("database", cfg.Global.DatabasePath).
		Msg("configuration loaded")
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	if appConfig == nil {
		return config.DefaultConfig()
	}
	return appConfig
}

// openDatabase opens and migrates the configured database.
func openDatabase(ctx context.Context) (*db.DB, error) {
	cfg := GetConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, err
	}

	database, err := db.Open(cfg.Global.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := database.MigrateUp(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return database, nil
}

// daemonURL resolves the base URL of a running `themesync serve`.
func daemonURL() string {
	if serverURL != "" {
		return strings.TrimRight(serverURL, "/")
	}
	if env := strings.TrimSpace(os.Getenv("THEMESYNC_SERVER")); env != "" {
		return strings.TrimRight(env, "/")
	}
	return "http://" + GetConfig().Server.Listen
}
