package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/opencode-webapp/agentdesk"
)

var (
	paletteSelect bool
	paletteLimit  int
)

// ============================================================================
// Recents file
// ============================================================================

type recentsFile struct {
	Recents agentdesk.Recents `toml:"recents"`
}

func recentsPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "recents.toml"), nil
}

// loadRecents reads ~/.agentdesk/recents.toml. A missing file is empty.
func loadRecents() (agentdesk.Recents, error) {
	path, err := recentsPath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return agentdesk.Recents{}, nil
		}
		return nil, fmt.Errorf("cannot read recents: %w", err)
	}
	var f recentsFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("cannot parse recents: %w", err)
	}
	if f.Recents == nil {
		f.Recents = agentdesk.Recents{}
	}
	return f.Recents, nil
}

func saveRecents(r agentdesk.Recents) error {
	path, err := recentsPath()
	if err != nil {
		return err
	}
	data, err := toml.Marshal(recentsFile{Recents: r})
	if err != nil {
		return fmt.Errorf("cannot marshal recents: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("cannot write recents: %w", err)
	}
	return nil
}

// ============================================================================
// Items
// ============================================================================

// collectItems gathers palette entries from the API. A failing source is
// logged and skipped so the rest of the palette still works.
func collectItems(ctx context.Context, client *agentdesk.Client, logger *slog.Logger) []agentdesk.PaletteItem {
	var items []agentdesk.PaletteItem

	if accounts, err := client.Accounts.List(ctx); err != nil {
		logger.Warn("palette: accounts unavailable", "error", err)
	} else {
		providers := make(map[string]bool)
		for _, a := range accounts {
			items = append(items, agentdesk.PaletteItem{
				ID: a.Name, Title: a.Name, Scope: agentdesk.ScopeAccounts,
				Description: a.Config.ProviderID + "/" + a.Config.Model,
			})
			if p := a.Config.ProviderID; p != "" && !providers[p] {
				providers[p] = true
				items = append(items, agentdesk.PaletteItem{ID: p, Title: p, Scope: agentdesk.ScopeProviders})
			}
		}
	}

	if models, err := client.Models.List(ctx); err != nil {
		logger.Warn("palette: models unavailable", "error", err)
	} else {
		for _, m := range models {
			items = append(items, agentdesk.PaletteItem{
				ID: m.Name, Title: m.Name, Scope: agentdesk.ScopeModels,
				Description: m.ProviderID + "/" + m.Model,
			})
		}
	}

	if agents, err := client.Agents.List(ctx); err != nil {
		logger.Warn("palette: agents unavailable", "error", err)
	} else {
		for _, a := range agents {
			items = append(items, agentdesk.PaletteItem{
				ID: a.Name, Title: a.Name, Scope: agentdesk.ScopeAgents, Description: a.Description,
			})
		}
	}

	if sessions, err := client.Sessions.List(ctx); err != nil {
		logger.Warn("palette: sessions unavailable", "error", err)
	} else {
		for _, s := range sessions.Sessions {
			items = append(items, agentdesk.PaletteItem{
				ID: s.ID, Title: valueOrDefault(s.Title, s.ID), Scope: agentdesk.ScopeSessions, Description: s.ID,
			})
		}
	}
	return items
}

// ============================================================================
// palette
// ============================================================================

var paletteCmd = &cobra.Command{
	Use:   "palette [query]",
	Short: "Search providers, accounts, models, agents and sessions",
	Long: `Search everything the API knows about.

Prefix the query to narrow the scope: p: providers, a: accounts, m: models,
g: agents, s: sessions. Recently selected items rank first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")
		client, cfg := getClient()
		logger := newLogger(cfg.Log.Level)

		recents, err := loadRecents()
		if err != nil {
			logger.Warn("ignoring recents", "error", err)
			recents = agentdesk.Recents{}
		}

		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		matches := agentdesk.Filter(collectItems(ctx, client, logger), query, recents)
		if len(matches) == 0 {
			fmt.Println("No matches.")
			return nil
		}

		if paletteSelect {
			top := matches[0]
			recents.Touch(top.Scope, top.ID)
			if err := saveRecents(recents); err != nil {
				return err
			}
			fmt.Println(top.ID)
			return nil
		}

		if paletteLimit > 0 && len(matches) > paletteLimit {
			matches = matches[:paletteLimit]
		}
		_, theme := loadThemes(cfg, logger)
		printPalette(theme.Styles(), matches, recents)
		return nil
	},
}

func printPalette(s agentdesk.Styles, matches []agentdesk.PaletteItem, recents agentdesk.Recents) {
	recent, byScope := agentdesk.Group(matches, recents)
	printGroup := func(title string, items []agentdesk.PaletteItem) {
		if len(items) == 0 {
			return
		}
		fmt.Println(s.Title.Render(title))
		for _, it := range items {
			fmt.Printf("  %-32s %s\n", truncate(it.Title, 32), s.Muted.Render(it.Description))
		}
	}
	printGroup("Recent", recent)
	for _, scope := range agentdesk.ScopeOrder {
		printGroup(strings.ToUpper(scope[:1])+scope[1:], byScope[scope])
	}
}

func init() {
	paletteCmd.Flags().BoolVar(&paletteSelect, "select", false, "Print the best match's id and remember it as recent")
	paletteCmd.Flags().IntVarP(&paletteLimit, "limit", "n", 20, "Maximum number of results")
	rootCmd.AddCommand(paletteCmd)
}
