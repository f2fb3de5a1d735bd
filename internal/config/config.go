// Package config loads themesync configuration from file, environment and defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/opencode-ai/themesync/internal/logging"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides (THEMESYNC_SYNC_POLL_INTERVAL, ...).
const EnvPrefix = "THEMESYNC"

// Config is the full application configuration.
type Config struct {
	Global  GlobalConfig   `mapstructure:"global"`
	Logging logging.Config `mapstructure:"logging"`
	Sync    SyncConfig     `mapstructure:"sync"`
	Style   StyleConfig    `mapstructure:"style"`
	Server  ServerConfig   `mapstructure:"server"`

	// Source is the config file that was loaded, if any.
	Source string `mapstructure:"-"`
}

// GlobalConfig holds storage locations.
type GlobalConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	DatabasePath string `mapstructure:"database_path"`
}

// SyncConfig tunes the mode synchronization cascade.
type SyncConfig struct {
	// CommandTimeout bounds the wait after a direct or toggle command.
	CommandTimeout time.Duration `mapstructure:"command_timeout"`

	// APITimeout bounds the wait after each appearance API or config write.
	APITimeout time.Duration `mapstructure:"api_timeout"`

	// ForceTimeout bounds the wait after the forced attribute override.
	ForceTimeout time.Duration `mapstructure:"force_timeout"`

	// PollInterval is how often the host mode is re-probed while waiting.
	PollInterval time.Duration `mapstructure:"poll_interval"`

	// Commands maps the direct mode commands and the toggle command.
	Commands CommandConfig `mapstructure:"commands"`

	// DarkAliases and LightAliases are appearance names tried in order.
	DarkAliases  []string `mapstructure:"dark_aliases"`
	LightAliases []string `mapstructure:"light_aliases"`
}

// CommandConfig names host commands.
type CommandConfig struct {
	Dark   string `mapstructure:"dark"`
	Light  string `mapstructure:"light"`
	Toggle string `mapstructure:"toggle"`
}

// StyleConfig controls base style loading.
type StyleConfig struct {
	// BaseCSSPath overrides the bundled base stylesheet.
	BaseCSSPath string `mapstructure:"base_css_path"`
}

// ServerConfig controls the daemon.
type ServerConfig struct {
	Listen      string        `mapstructure:"listen"`
	CallTimeout time.Duration `mapstructure:"call_timeout"`
	RateLimit   bool          `mapstructure:"rate_limit"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	dataDir := filepath.Join(userConfigDir(), "themesync")
	return &Config{
		Global: GlobalConfig{
			DataDir:      dataDir,
			DatabasePath: filepath.Join(dataDir, "themesync.db"),
		},
		Logging: logging.Config{
			Level:  "info",
			Format: "console",
		},
		Sync: SyncConfig{
			CommandTimeout: 2000 * time.Millisecond,
			APITimeout:     800 * time.Millisecond,
			ForceTimeout:   250 * time.Millisecond,
			PollInterval:   25 * time.Millisecond,
			Commands: CommandConfig{
				Dark:   "theme:use-dark",
				Light:  "theme:use-light",
				Toggle: "theme:toggle-light-dark",
			},
			DarkAliases:  []string{"obsidian", "dark"},
			LightAliases: []string{"moonstone", "light"},
		},
		Server: ServerConfig{
			Listen:      "127.0.0.1:7780",
			CallTimeout: 3 * time.Second,
			RateLimit:   true,
		},
	}
}

// Load reads configuration. An empty path searches the default locations.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Source = v.ConfigFileUsed()

	if cfg.Global.DatabasePath == "" {
		cfg.Global.DatabasePath = filepath.Join(cfg.Global.DataDir, "themesync.db")
	}
	cfg.Global.DataDir = expandHome(cfg.Global.DataDir)
	cfg.Global.DatabasePath = expandHome(cfg.Global.DatabasePath)
	cfg.Style.BaseCSSPath = expandHome(cfg.Style.BaseCSSPath)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	durations := map[string]time.Duration{
		"sync.command_timeout": c.Sync.CommandTimeout,
		"sync.api_timeout":     c.Sync.APITimeout,
		"sync.force_timeout":   c.Sync.ForceTimeout,
		"sync.poll_interval":   c.Sync.PollInterval,
		"server.call_timeout":  c.Server.CallTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return fmt.Errorf("%s must be greater than 0", key)
		}
	}
	if c.Sync.PollInterval > c.Sync.CommandTimeout {
		return fmt.Errorf("sync.poll_interval must not exceed sync.command_timeout")
	}
	if strings.TrimSpace(c.Global.DatabasePath) == "" {
		return fmt.Errorf("global.database_path must not be empty")
	}
	if len(c.Sync.DarkAliases) == 0 || len(c.Sync.LightAliases) == 0 {
		return fmt.Errorf("sync.dark_aliases and sync.light_aliases must not be empty")
	}
	return nil
}

// EnsureDataDir creates the data directory if needed.
func (c *Config) EnsureDataDir() error {
	dir := filepath.Dir(c.Global.DatabasePath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir %s: %w", dir, err)
	}
	return nil
}

func setDefaults(v *viper.Viper, def *Config) {
	v.SetDefault("global.data_dir", def.Global.DataDir)
	v.SetDefault("global.database_path", "")
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("sync.command_timeout", def.Sync.CommandTimeout)
	v.SetDefault("sync.api_timeout", def.Sync.APITimeout)
	v.SetDefault("sync.force_timeout", def.Sync.ForceTimeout)
	v.SetDefault("sync.poll_interval", def.Sync.PollInterval)
	v.SetDefault("sync.commands.dark", def.Sync.Commands.Dark)
	v.SetDefault("sync.commands.light", def.Sync.Commands.Light)
	v.SetDefault("sync.commands.toggle", def.Sync.Commands.Toggle)
	v.SetDefault("sync.dark_aliases", def.Sync.DarkAliases)
	v.SetDefault("sync.light_aliases", def.Sync.LightAliases)
	v.SetDefault("style.base_css_path", "")
	v.SetDefault("server.listen", def.Server.Listen)
	v.SetDefault("server.call_timeout", def.Server.CallTimeout)
	v.SetDefault("server.rate_limit", def.Server.RateLimit)
}

// DefaultDir is the directory searched for config.yaml when no path is given.
func DefaultDir() string {
	return filepath.Join(userConfigDir(), "themesync")
}

func userConfigDir() string {
	if dir, err := os.UserConfigDir(); err == nil && dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".config")
	}
	return "."
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// DefaultConfigYAML is written by `themesync init`.
const DefaultConfigYAML = `# themesync configuration file

global:
  # data_dir: ~/.config/themesync
  # database_path: ~/.config/themesync/themesync.db

logging:
  level: info      # trace, debug, info, warn, error
  format: console  # console or json

sync:
  command_timeout: 2s
  api_timeout: 800ms
  force_timeout: 250ms
  poll_interval: 25ms
  commands:
    dark: theme:use-dark
    light: theme:use-light
    toggle: theme:toggle-light-dark
  dark_aliases: [obsidian, dark]
  light_aliases: [moonstone, light]

style:
  # base_css_path: ~/themes/base.css

server:
  listen: 127.0.0.1:7780
  call_timeout: 3s
  rate_limit: true  # throttle theme switches from API clients
`
