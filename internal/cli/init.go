package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/opencode-ai/themesync/internal/config"
	"github.com/opencode-ai/themesync/internal/db"
	"github.com/opencode-ai/themesync/internal/themestore"
	"github.com/spf13/cobra"
)

var initForce bool

// configDirFunc is replaced in tests.
var configDirFunc = defaultConfigDir

// configTemplate is the config.yaml written by init.
const configTemplate = config.DefaultConfigYAML

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing config file")
}

// initResult is the outcome of one init step.
type initResult struct {
	name    string
	status  string // done, skipped, failed
	message string
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default config and create the theme database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := commandContext(cmd)
		results := []initResult{
			createConfigFile(),
			initDatabase(ctx),
		}

		if IsJSONOutput() || IsJSONLOutput() {
			out := make([]map[string]string, 0, len(results))
			for _, r := range results {
				out = append(out, map[string]string{"step": r.name, "status": r.status, "message": r.message})
			}
			return WriteOutput(os.Stdout, out)
		}

		failed := false
		for _, r := range results {
			fmt.Fprintf(os.Stdout, "%s %-10s %s\n", initStatusMark(r.status), r.name, r.message)
			if r.status == "failed" {
				failed = true
			}
		}
		if failed {
			return fmt.Errorf("init did not complete")
		}
		return nil
	},
}

func initStatusMark(status string) string {
	switch status {
	case "done":
		return colorize("✓", colorGreen)
	case "skipped":
		return colorize("-", colorYellow)
	default:
		return colorize("✗", colorRed)
	}
}

func defaultConfigDir() string {
	return config.DefaultDir()
}

func createConfigFile() initResult {
	result := initResult{name: "config"}
	dir := configDirFunc()
	path := filepath.Join(dir, "config.yaml")

	if _, err := os.Stat(path); err == nil && !initForce {
		result.status = "skipped"
		result.message = fmt.Sprintf("%s already exists (use --force to overwrite)", path)
		return result
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		result.status = "failed"
		result.message = fmt.Sprintf("create %s: %v", dir, err)
		return result
	}
	if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
		result.status = "failed"
		result.message = fmt.Sprintf("write %s: %v", path, err)
		return result
	}

	result.status = "done"
	result.message = "wrote " + path
	return result
}

// initDatabase migrates the database and seeds the built-in themes.
func initDatabase(ctx context.Context) initResult {
	result := initResult{name: "database"}
	cfg := GetConfig()
	if err := cfg.EnsureDataDir(); err != nil {
		result.status = "failed"
		result.message = err.Error()
		return result
	}

	database, err := db.Open(cfg.Global.DatabasePath)
	if err != nil {
		result.status = "failed"
		result.message = err.Error()
		return result
	}
	defer database.Close()

	applied, err := database.MigrateUp(ctx)
	if err != nil {
		result.status = "failed"
		result.message = fmt.Sprintf("migrate: %v", err)
		return result
	}

	store := themestore.New(db.NewThemeRepository(database))
	if err := store.Load(ctx); err != nil {
		result.status = "failed"
		result.message = fmt.Sprintf("load themes: %v", err)
		return result
	}

	result.status = "done"
	if applied == 0 {
		result.status = "skipped"
	}
	result.message = fmt.Sprintf("%s (%d migrations applied, %d themes)", database.Path(), applied, store.Len())
	return result
}
