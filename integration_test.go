//go:build integration

package agentdesk_test

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/opencode-webapp/agentdesk"
)

// helpers ---------------------------------------------------------------

func testBaseURL(t *testing.T) string {
	t.Helper()
	base := os.Getenv("AGENTDESK_BASE_URL_TEST")
	if base == "" {
		t.Skip("AGENTDESK_BASE_URL_TEST not set")
	}
	return base
}

func newLiveClient(t *testing.T, opts ...agentdesk.ClientOption) *agentdesk.Client {
	t.Helper()
	return agentdesk.NewClient(append([]agentdesk.ClientOption{agentdesk.WithBaseURL(testBaseURL(t))}, opts...)...)
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
}

func createSession(t *testing.T, client *agentdesk.Client) *agentdesk.Session {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s, err := client.Sessions.Create(ctx, &agentdesk.CreateSessionOptions{Title: uniqueName("it"), ThemeID: "nord-dark"})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if _, err := client.Sessions.Delete(ctx, s.ID); err != nil && !agentdesk.IsNotFound(err) {
			t.Logf("cleanup: delete %s: %v", s.ID, err)
		}
	})
	return s
}

// =======================================================================
// Group 1: Service
// =======================================================================

func TestIntegration_Health(t *testing.T) {
	client := newLiveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	health, err := client.Health(ctx)
	if err != nil {
		t.Fatalf("Health returned error: %v", err)
	}
	if health.Status == "" {
		t.Error("expected non-empty Status")
	}

	info, err := client.Info(ctx)
	if err != nil {
		t.Fatalf("Info returned error: %v", err)
	}
	t.Logf("API %s %s status=%s database=%t", info.Name, info.Version, health.Status, health.Database)
}

// =======================================================================
// Group 2: Sessions
// =======================================================================

func TestIntegration_Sessions_Lifecycle(t *testing.T) {
	client := newLiveClient(t)
	s := createSession(t, client)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	got, err := client.Sessions.Get(ctx, s.ID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Title != s.Title {
		t.Errorf("Title = %q, want %q", got.Title, s.Title)
	}

	updated, err := client.Sessions.UpdateTheme(ctx, s.ID, "ocean-light")
	if err != nil {
		t.Fatalf("UpdateTheme returned error: %v", err)
	}
	if updated.ThemeID != "ocean-light" {
		t.Errorf("ThemeID = %q, want ocean-light", updated.ThemeID)
	}

	list, err := client.Sessions.List(ctx)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	found := false
	for _, item := range list.Sessions {
		if item.ID == s.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("session %s missing from list of %d", s.ID, list.Count)
	}

	if _, err := client.Sessions.Delete(ctx, s.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := client.Sessions.Get(ctx, s.ID); !agentdesk.IsNotFound(err) {
		t.Errorf("Get after delete: want not found, got %v", err)
	}
}

// =======================================================================
// Group 3: Catalog
// =======================================================================

func TestIntegration_Catalog(t *testing.T) {
	client := newLiveClient(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	models, err := client.Models.List(ctx)
	if err != nil {
		t.Fatalf("Models.List returned error: %v", err)
	}
	tools, err := client.Tools.List(ctx)
	if err != nil {
		t.Fatalf("Tools.List returned error: %v", err)
	}
	skills, err := client.Skills.List(ctx)
	if err != nil {
		t.Fatalf("Skills.List returned error: %v", err)
	}
	t.Logf("models=%d tools=%d skills=%d", len(models), len(tools), len(skills))
}

// =======================================================================
// Group 4: Streams
// =======================================================================

func TestIntegration_ThemeStream(t *testing.T) {
	for _, tr := range []struct {
		name      string
		transport agentdesk.Transport
	}{
		{"sse", nil},
		{"websocket", &agentdesk.WebSocketTransport{}},
	} {
		t.Run(tr.name, func(t *testing.T) {
			var opts []agentdesk.ClientOption
			if tr.transport != nil {
				opts = append(opts, agentdesk.WithTransport(tr.transport))
			}
			client := newLiveClient(t, opts...)
			s := createSession(t, client)

			store := agentdesk.NewMemoryStore()
			store.Select(s.ID)
			feed := client.Streams.ThemeFeed(store, nil)
			defer feed.Close()
			feed.SetResource(s.ID)

			deadline := time.Now().Add(15 * time.Second)
			for feed.State() != agentdesk.StreamConnected {
				if time.Now().After(deadline) {
					t.Fatalf("stream never connected, state=%s", feed.State())
				}
				time.Sleep(50 * time.Millisecond)
			}

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := client.Sessions.UpdateTheme(ctx, s.ID, "aurora-light"); err != nil {
				t.Fatalf("UpdateTheme returned error: %v", err)
			}

			for store.ThemeID() != "aurora-light" {
				if time.Now().After(deadline) {
					t.Fatalf("theme change not observed, theme=%q", store.ThemeID())
				}
				time.Sleep(50 * time.Millisecond)
			}
		})
	}
}

func TestIntegration_DeletedSessionStopsRetrying(t *testing.T) {
	client := newLiveClient(t)
	missing := uniqueName("missing")
	store := agentdesk.NewMemoryStore()
	store.Select(missing)
	feed := client.Streams.TelemetryFeed(store, &agentdesk.FeedOptions{BaseDelay: 100 * time.Millisecond})
	defer feed.Close()

	feed.SetResource(missing)
	deadline := time.Now().Add(20 * time.Second)
	for feed.State() != agentdesk.StreamStopped {
		if time.Now().After(deadline) {
			t.Fatalf("stream for a missing session still %s", feed.State())
		}
		time.Sleep(50 * time.Millisecond)
	}
}
