package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current configuration and service status",
	Long:  "Display the effective configuration and fetch live health and version info from the API.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getClient()

		fmt.Println("Configuration:")
		fmt.Printf("  Base URL:    %s\n", client.BaseURL())
		fmt.Printf("  Timeout:     %s\n", valueOrDefault(cfg.Default.Timeout, "(default)"))
		fmt.Printf("  Transport:   %s\n", valueOrDefault(cfg.Stream.Transport, "sse"))
		if cfg.Stream.MaxRetries > 0 {
			fmt.Printf("  Max retries: %d\n", cfg.Stream.MaxRetries)
		} else {
			fmt.Println("  Max retries: (default)")
		}
		fmt.Printf("  Theme:       %s\n", valueOrDefault(cfg.UI.Theme, "auto"))

		fmt.Println()
		fmt.Println("Live status:")

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		health, err := client.Health(ctx)
		if err != nil {
			fmt.Printf("  Error fetching health: %v\n", err)
			return nil
		}
		fmt.Printf("  Status:   %s\n", health.Status)
		fmt.Printf("  Database: %t\n", health.Database)

		info, err := client.Info(ctx)
		if err != nil {
			fmt.Printf("  Error fetching API info: %v\n", err)
			return nil
		}
		fmt.Printf("  API:      %s %s (%s)\n", info.Name, info.Version, info.Status)
		return nil
	},
}
