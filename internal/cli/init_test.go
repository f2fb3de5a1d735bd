package cli

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/opencode-ai/themesync/internal/config"
	"github.com/stretchr/testify/require"
)

func withConfigDir(t *testing.T, dir string, force bool) {
	t.Helper()
	originalFunc, originalForce := configDirFunc, initForce
	configDirFunc = func() string { return dir }
	initForce = force
	t.Cleanup(func() {
		configDirFunc = originalFunc
		initForce = originalForce
	})
}

func TestCreateConfigFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "themesync")
	withConfigDir(t, dir, false)

	result := createConfigFile()
	require.Equal(t, "done", result.status, result.message)

	content, err := os.ReadFile(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(content), "# themesync configuration file")
	require.Contains(t, string(content), "listen: 127.0.0.1:7780")

	// The written template must load cleanly.
	cfg, err := config.Load(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
}

func TestCreateConfigFileExistingNoForce(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o644))
	withConfigDir(t, dir, false)

	result := createConfigFile()
	require.Equal(t, "skipped", result.status)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "existing", string(content))
}

func TestCreateConfigFileForceOverwrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("existing"), 0o644))
	withConfigDir(t, dir, true)

	require.Equal(t, "done", createConfigFile().status)
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, configTemplate, string(content))
}

func TestInitDatabaseSeedsBuiltins(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Global.DataDir = dir
	cfg.Global.DatabasePath = filepath.Join(dir, "themesync.db")
	original := appConfig
	appConfig = cfg
	t.Cleanup(func() { appConfig = original })

	first := initDatabase(context.Background())
	require.Equal(t, "done", first.status, first.message)
	require.FileExists(t, cfg.Global.DatabasePath)

	second := initDatabase(context.Background())
	require.Equal(t, "skipped", second.status, second.message)
}

func TestDefaultConfigDir(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/custom/config")
	require.Equal(t, "/custom/config/themesync", defaultConfigDir())
}
