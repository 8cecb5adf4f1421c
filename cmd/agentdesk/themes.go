package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/opencode-webapp/agentdesk"
)

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List and preview themes",
}

var themesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List bundled and custom themes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		reg, active := loadThemes(cfg, newLogger(cfg.Log.Level))
		for _, id := range reg.Names() {
			mark := " "
			if id == active.ID() {
				mark = "*"
			}
			th, _ := reg.Get(id)
			fmt.Printf("%s %-22s %s\n", mark, id, swatch(th))
		}
		return nil
	},
}

var themesShowCmd = &cobra.Command{
	Use:   "show [theme]",
	Short: "Preview a theme",
	Long:  "Preview a theme. Without an argument the configured theme is shown; 'auto' follows the terminal background.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadSettings()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		reg, th := loadThemes(cfg, newLogger(cfg.Log.Level))
		if len(args) == 1 {
			th = reg.Resolve(args[0])
		}

		s := th.Styles()
		body := lipgloss.JoinVertical(lipgloss.Left,
			s.Title.Render(th.ID()),
			"",
			s.User.Render("you")+" run the tests",
			s.Assistant.Render("agent")+" all 42 tests pass",
			s.System.Render("system: context trimmed"),
			"",
			s.Success.Render("✔ finished")+"  "+s.Warning.Render("◌ reconnecting")+"  "+s.Error.Render("✘ failed"),
			s.Muted.Render(swatch(th)),
		)
		fmt.Println(s.Panel.Render(body))
		return nil
	},
}

// swatch renders one block per theme color.
func swatch(th agentdesk.Theme) string {
	c := th.Colors
	var out string
	for _, col := range []lipgloss.Color{c.Primary, c.Secondary, c.Accent, c.Success, c.Warning, c.Error} {
		if col == "" {
			continue
		}
		out += lipgloss.NewStyle().Foreground(col).Render("■")
	}
	return out
}

func init() {
	themesCmd.AddCommand(themesListCmd)
	themesCmd.AddCommand(themesShowCmd)
	rootCmd.AddCommand(themesCmd)
}
