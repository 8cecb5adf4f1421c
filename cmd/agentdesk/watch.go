package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/opencode-webapp/agentdesk"
)

var watchFeeds []string

// mountable is the part of agentdesk.Feed the CLI drives, independent of the
// event type.
type mountable interface {
	SetResource(resourceID string)
	State() agentdesk.StreamState
	Reconnect()
	OnStateChange(fn func(agentdesk.StreamState))
	Close()
}

// session binds the requested feeds for one session to a store and renderer.
type session struct {
	store    *agentdesk.MemoryStore
	renderer *renderer
	feeds    map[string]mountable
}

// openSession mounts the named feeds on sessionID and renders their updates
// to stdout.
func openSession(ctx context.Context, client *agentdesk.Client, cfg *Config, sessionID string, names []string) (*session, error) {
	logger := newLogger(cfg.Log.Level)
	themes, _ := loadThemes(cfg, logger)
	if cfg.UI.ThemesDir != "" {
		if err := themes.Watch(ctx, cfg.UI.ThemesDir); err != nil {
			logger.Warn("theme hot reload disabled", "dir", cfg.UI.ThemesDir, "error", err)
		}
	}

	s := &session{
		store:    agentdesk.NewMemoryStore(),
		renderer: newRenderer(os.Stdout, themes, cfg.UI.Theme),
		feeds:    make(map[string]mountable),
	}
	s.store.Select(sessionID)
	themes.OnChange(s.renderer.Retheme)
	s.store.Subscribe(func() { s.renderer.Render(s.store.Snapshot()) })

	opts := &agentdesk.FeedOptions{MaxRetries: cfg.Stream.MaxRetries}
	for _, name := range names {
		var f mountable
		switch name {
		case agentdesk.FeedExecution:
			f = client.Streams.ExecutionFeed(s.store, opts)
		case agentdesk.FeedTheme:
			f = client.Streams.ThemeFeed(s.store, opts)
		case agentdesk.FeedTelemetry:
			f = client.Streams.TelemetryFeed(s.store, opts)
		default:
			s.Close()
			return nil, fmt.Errorf("unknown feed %q (valid: execution, theme, telemetry)", name)
		}
		f.OnStateChange(func(st agentdesk.StreamState) { s.renderer.FeedState(name, st) })
		s.feeds[name] = f
	}
	for _, f := range s.feeds {
		f.SetResource(sessionID)
	}
	return s, nil
}

// reconnectStopped reconnects every feed that gave up.
func (s *session) reconnectStopped() {
	for _, f := range s.feeds {
		if f.State() == agentdesk.StreamStopped {
			f.Reconnect()
		}
	}
}

func (s *session) Close() {
	s.renderer.Detach()
	for _, f := range s.feeds {
		f.Close()
	}
}

// ============================================================================
// watch
// ============================================================================

var watchCmd = &cobra.Command{
	Use:   "watch <session-id>",
	Short: "Follow a session's live streams",
	Long: `Follow a session's execution, theme and telemetry streams until interrupted.

Streams reconnect with exponential backoff. A stream that gives up is shown as
disconnected; press Enter to reconnect it.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg := getClient()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		s, err := openSession(ctx, client, cfg, args[0], watchFeeds)
		if err != nil {
			return err
		}
		defer s.Close()

		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				s.reconnectStopped()
			}
		}()

		<-ctx.Done()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringSliceVar(&watchFeeds, "feeds",
		[]string{agentdesk.FeedExecution, agentdesk.FeedTheme, agentdesk.FeedTelemetry},
		"Feeds to follow")
	rootCmd.AddCommand(watchCmd)
}
