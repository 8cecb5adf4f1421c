package main

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

var initCmd = &cobra.Command{
	Use:   "init <base-url>",
	Short: "Store the API base URL in ~/.agentdesk/config.toml",
	Long:  "Initialize the AgentDesk CLI by storing the WebApp API base URL in the local configuration file.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		baseURL := args[0]
		if u, err := url.Parse(baseURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid base URL %q", baseURL)
		}

		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.Default.BaseURL = baseURL
		if cfg.Stream.Transport == "" {
			cfg.Stream.Transport = "sse"
		}
		if cfg.UI.Theme == "" {
			cfg.UI.Theme = "auto"
		}

		if err := saveConfig(cfg); err != nil {
			return fmt.Errorf("failed to save config: %w", err)
		}

		path, _ := configPath()
		fmt.Printf("Base URL saved to %s\n", path)
		return nil
	},
}
