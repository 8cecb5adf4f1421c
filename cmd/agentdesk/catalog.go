package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var catalogJSON bool

// ============================================================================
// agents
// ============================================================================

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "List agents",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		agents, err := client.Agents.List(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if catalogJSON {
			return printJSON(agents)
		}
		if len(agents) == 0 {
			fmt.Println("No agents found.")
			return nil
		}
		for _, a := range agents {
			fmt.Printf("%-20s  %s\n", a.Name, truncate(a.Description, 70))
		}
		return nil
	},
}

// ============================================================================
// models
// ============================================================================

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List configured models",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		models, err := client.Models.List(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if catalogJSON {
			return printJSON(models)
		}
		for _, m := range models {
			mark := " "
			if m.IsDefault {
				mark = "*"
			}
			fmt.Printf("%s %-24s  %-12s  %s\n", mark, m.Name, m.ProviderID, m.Model)
		}
		return nil
	},
}

// ============================================================================
// skills
// ============================================================================

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List available skills",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		skills, err := client.Skills.List(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if catalogJSON {
			return printJSON(skills)
		}
		for _, s := range skills {
			fmt.Printf("%-20s  %s\n", s.Name, truncate(s.Description, 70))
		}
		return nil
	},
}

// ============================================================================
// tools
// ============================================================================

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tools, err := client.Tools.List(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if catalogJSON {
			return printJSON(tools)
		}
		for _, t := range tools {
			category := "-"
			if t.Category != nil {
				category = *t.Category
			}
			fmt.Printf("%-20s  %-12s  %s\n", t.ID, category, strings.Join(t.Tags, ","))
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{agentsCmd, modelsCmd, skillsCmd, toolsCmd} {
		c.Flags().BoolVar(&catalogJSON, "json", false, "Output raw JSON")
		rootCmd.AddCommand(c)
	}
	agentsCmd.AddCommand(agentsRunCmd)
}
