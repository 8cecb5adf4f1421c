package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/opencode-webapp/agentdesk"
)

// getClient creates a client from the layered configuration.
func getClient() (*agentdesk.Client, *Config) {
	cfg, err := loadSettings()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level)
	opts := []agentdesk.ClientOption{agentdesk.WithLogger(logger)}
	if cfg.Default.BaseURL != "" {
		opts = append(opts, agentdesk.WithBaseURL(cfg.Default.BaseURL))
	} else if cfg.Default.Environment != "" {
		opts = append(opts, agentdesk.WithEnvironment(agentdesk.Environment(cfg.Default.Environment)))
	}
	if cfg.Default.Timeout != "" {
		if d, err := time.ParseDuration(cfg.Default.Timeout); err == nil {
			opts = append(opts, agentdesk.WithTimeout(d))
		}
	}
	if cfg.Stream.Transport == "websocket" {
		opts = append(opts, agentdesk.WithTransport(&agentdesk.WebSocketTransport{}))
	}

	return agentdesk.NewClient(opts...), cfg
}

// newLogger writes text logs to stderr. Unknown levels fall back to warn.
func newLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			lvl = slog.LevelWarn
		}
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// loadThemes builds the theme registry, including custom themes from
// ui.themes_dir, and resolves the configured theme.
func loadThemes(cfg *Config, logger *slog.Logger) (*agentdesk.ThemeRegistry, agentdesk.Theme) {
	reg := agentdesk.NewThemeRegistry(logger)
	if cfg.UI.ThemesDir != "" {
		if err := reg.LoadDir(cfg.UI.ThemesDir); err != nil {
			logger.Warn("cannot load custom themes", "dir", cfg.UI.ThemesDir, "error", err)
		}
	}
	return reg, reg.Resolve(cfg.UI.Theme)
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}

// truncate shortens s to n runes for table output.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
