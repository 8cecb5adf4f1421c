package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/opencode-webapp/agentdesk"
)

var (
	sessionsJSON bool

	sessionsCreateVersion string
	sessionsCreateTheme   string
)

// ============================================================================
// sessions (parent)
// ============================================================================

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage agent sessions",
}

// ============================================================================
// sessions list
// ============================================================================

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		list, err := client.Sessions.List(ctx)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if sessionsJSON {
			return printJSON(list)
		}
		if len(list.Sessions) == 0 {
			fmt.Println("No sessions found.")
			return nil
		}
		for _, s := range list.Sessions {
			fmt.Printf("%-36s  %-32s  %s\n", s.ID, truncate(s.Title, 32), valueOrDefault(s.ThemeID, "-"))
		}
		return nil
	},
}

// ============================================================================
// sessions get
// ============================================================================

var sessionsGetCmd = &cobra.Command{
	Use:   "get <session-id>",
	Short: "Show a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := client.Sessions.Get(ctx, args[0])
		if err != nil {
			if agentdesk.IsNotFound(err) {
				return fmt.Errorf("session %s not found", args[0])
			}
			return fmt.Errorf("request failed: %w", err)
		}
		if sessionsJSON {
			return printJSON(s)
		}
		printSession(s)
		return nil
	},
}

func printSession(s *agentdesk.Session) {
	fmt.Printf("ID:      %s\n", s.ID)
	fmt.Printf("Title:   %s\n", s.Title)
	fmt.Printf("Version: %s\n", valueOrDefault(s.Version, "-"))
	fmt.Printf("Theme:   %s\n", valueOrDefault(s.ThemeID, "-"))
	if s.CreatedAt != "" {
		fmt.Printf("Created: %s\n", s.CreatedAt)
	}
	if s.UpdatedAt != "" {
		fmt.Printf("Updated: %s\n", s.UpdatedAt)
	}
}

// ============================================================================
// sessions create
// ============================================================================

var sessionsCreateCmd = &cobra.Command{
	Use:   "create <title>",
	Short: "Create a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := client.Sessions.Create(ctx, &agentdesk.CreateSessionOptions{
			Title:   args[0],
			Version: sessionsCreateVersion,
			ThemeID: sessionsCreateTheme,
		})
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if sessionsJSON {
			return printJSON(s)
		}
		fmt.Printf("Session created: %s\n", s.ID)
		return nil
	},
}

// ============================================================================
// sessions delete
// ============================================================================

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		res, err := client.Sessions.Delete(ctx, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Println(valueOrDefault(res.Message, "Session deleted"))
		return nil
	},
}

// ============================================================================
// sessions theme
// ============================================================================

var sessionsThemeCmd = &cobra.Command{
	Use:   "theme <session-id> <theme-id>",
	Short: "Change a session's theme",
	Long:  "Change a session's theme. Open 'watch' views of the session pick the change up live.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getClient()
		reg, _ := loadThemes(cfg, newLogger(cfg.Log.Level))
		if _, ok := reg.Get(args[1]); !ok {
			return fmt.Errorf("unknown theme %q (see 'agentdesk themes list')", args[1])
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		s, err := client.Sessions.UpdateTheme(ctx, args[0], args[1])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		fmt.Printf("Session %s now uses theme %s\n", s.ID, s.ThemeID)
		return nil
	},
}

// ============================================================================
// sessions messages
// ============================================================================

var sessionsMessagesCmd = &cobra.Command{
	Use:   "messages <session-id>",
	Short: "Print a session's conversation history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, _ := getClient()

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		msgs, err := client.Sessions.Messages(ctx, args[0])
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		if sessionsJSON {
			return printJSON(msgs)
		}
		if len(msgs.Messages) == 0 {
			fmt.Println("No messages found.")
			return nil
		}
		for _, m := range msgs.Messages {
			fmt.Printf("[%s] %s\n", m.Role, m.Content)
		}
		return nil
	},
}

// ============================================================================
// Registration
// ============================================================================

func init() {
	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "Output raw JSON")

	sessionsCreateCmd.Flags().StringVar(&sessionsCreateVersion, "version", "", "Session version")
	sessionsCreateCmd.Flags().StringVar(&sessionsCreateTheme, "theme-id", "", "Initial theme id")

	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsGetCmd)
	sessionsCmd.AddCommand(sessionsCreateCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsThemeCmd)
	sessionsCmd.AddCommand(sessionsMessagesCmd)

	rootCmd.AddCommand(sessionsCmd)
}
