package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ============================================================================
// Config types
// ============================================================================

// Config represents the CLI configuration stored in ~/.agentdesk/config.toml.
type Config struct {
	Default ConfigDefault `toml:"default"`
	Stream  ConfigStream  `toml:"stream"`
	UI      ConfigUI      `toml:"ui"`
	Log     ConfigLog     `toml:"log"`
}

// ConfigDefault holds the API connection settings.
type ConfigDefault struct {
	Environment string `toml:"environment"`
	BaseURL     string `toml:"base_url"`
	Timeout     string `toml:"timeout"`
}

// ConfigStream tunes live streams.
type ConfigStream struct {
	MaxRetries int    `toml:"max_retries"`
	Transport  string `toml:"transport"`
}

// ConfigUI selects the theme and where custom themes live.
type ConfigUI struct {
	Theme     string `toml:"theme"`
	ThemesDir string `toml:"themes_dir"`
}

// ConfigLog sets the stderr log level.
type ConfigLog struct {
	Level string `toml:"level"`
}

// ============================================================================
// Config helpers
// ============================================================================

// configDir returns the path to ~/.agentdesk, creating it if needed.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".agentdesk")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("cannot create config directory: %w", err)
	}
	return dir, nil
}

func configPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// loadConfig reads and parses the config file.
// If the file does not exist, it returns a zero-value Config.
func loadConfig() (*Config, error) {
	path, err := configPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("cannot read config: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("cannot parse config: %w", err)
	}
	return &cfg, nil
}

// saveConfig writes the config struct back to disk as TOML.
func saveConfig(cfg *Config) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("cannot marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write config: %w", err)
	}
	return nil
}

// setConfigValue sets a config field using dot notation (e.g. "default.base_url").
func setConfigValue(cfg *Config, key, value string) error {
	parts := strings.SplitN(key, ".", 2)
	if len(parts) != 2 {
		return fmt.Errorf("key must use dot notation: section.field (e.g. default.base_url)")
	}
	section, field := parts[0], parts[1]

	switch section {
	case "default":
		switch field {
		case "environment":
			cfg.Default.Environment = value
		case "base_url":
			cfg.Default.BaseURL = value
		case "timeout":
			if _, err := time.ParseDuration(value); err != nil {
				return fmt.Errorf("invalid timeout %q: %w", value, err)
			}
			cfg.Default.Timeout = value
		default:
			return fmt.Errorf("unknown field %q in section [default]", field)
		}
	case "stream":
		switch field {
		case "max_retries":
			n, err := strconv.Atoi(value)
			if err != nil || n < 0 {
				return fmt.Errorf("max_retries must be a non-negative integer, got %q", value)
			}
			cfg.Stream.MaxRetries = n
		case "transport":
			if value != "sse" && value != "websocket" {
				return fmt.Errorf("transport must be sse or websocket, got %q", value)
			}
			cfg.Stream.Transport = value
		default:
			return fmt.Errorf("unknown field %q in section [stream]", field)
		}
	case "ui":
		switch field {
		case "theme":
			cfg.UI.Theme = value
		case "themes_dir":
			cfg.UI.ThemesDir = value
		default:
			return fmt.Errorf("unknown field %q in section [ui]", field)
		}
	case "log":
		switch field {
		case "level":
			cfg.Log.Level = value
		default:
			return fmt.Errorf("unknown field %q in section [log]", field)
		}
	default:
		return fmt.Errorf("unknown config section %q (valid: default, stream, ui, log)", section)
	}
	return nil
}

// envBindings maps config keys to the environment variables that override them.
var envBindings = map[string]string{
	"default.environment": "AGENTDESK_ENVIRONMENT",
	"default.base_url":    "AGENTDESK_BASE_URL",
	"default.timeout":     "AGENTDESK_TIMEOUT",
	"stream.max_retries":  "AGENTDESK_MAX_RETRIES",
	"stream.transport":    "AGENTDESK_TRANSPORT",
	"ui.theme":            "AGENTDESK_THEME",
	"ui.themes_dir":       "AGENTDESK_THEMES_DIR",
	"log.level":           "AGENTDESK_LOG_LEVEL",
}

// flagBindings maps config keys to root persistent flags.
var flagBindings = map[string]string{
	"default.base_url": "base-url",
	"ui.theme":         "theme",
	"log.level":        "log-level",
}

// loadSettings returns the config file with environment variables and
// command-line flags layered on top: flags > env > file.
func loadSettings() (*Config, error) {
	cfg, _, err := resolveSettings()
	return cfg, err
}

// resolveSettings is loadSettings that also reports, per overridden key,
// where the value came from ("--base-url", "AGENTDESK_BASE_URL").
func resolveSettings() (*Config, map[string]string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	v := viper.New()
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, nil, fmt.Errorf("binding %s env: %w", key, err)
		}
	}
	for key, name := range flagBindings {
		if err := v.BindPFlag(key, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			return nil, nil, fmt.Errorf("binding %s flag: %w", key, err)
		}
	}

	sources := make(map[string]string)
	for key, env := range envBindings {
		if !v.IsSet(key) {
			continue
		}
		if err := setConfigValue(cfg, key, v.GetString(key)); err != nil {
			return nil, nil, fmt.Errorf("override %s: %w", key, err)
		}
		sources[key] = env
		if name, ok := flagBindings[key]; ok && rootCmd.PersistentFlags().Changed(name) {
			sources[key] = "--" + name
		}
	}
	return cfg, sources, nil
}

// ============================================================================
// Root command
// ============================================================================

var rootCmd = &cobra.Command{
	Use:   "agentdesk",
	Short: "AgentDesk CLI",
	Long:  "Command-line client for the coding-agent WebApp API.\nManage sessions, run agents and follow their live streams.",
}

func init() {
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (overrides default.base_url)")
	rootCmd.PersistentFlags().String("theme", "", "Theme name or id (overrides ui.theme)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
