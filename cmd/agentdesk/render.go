package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"

	"github.com/opencode-webapp/agentdesk"
)

// renderer prints view state changes as lines. It remembers what it already
// printed so each store notification only adds what is new.
type renderer struct {
	mu       sync.Mutex
	out      io.Writer
	themes   *agentdesk.ThemeRegistry
	fallback string
	mdStyle  string
	width    int

	themeID string
	theme   agentdesk.Theme
	styles  agentdesk.Styles
	md      *glamour.TermRenderer

	title     string
	seen      map[int]string
	unindexed int
	phase     agentdesk.ExecutionPhase
	telemetry string
	feeds     map[string]agentdesk.StreamState
	detached  bool
}

// newRenderer writes to out using themes. fallback names the theme used until
// the session reports its own.
func newRenderer(out io.Writer, themes *agentdesk.ThemeRegistry, fallback string) *renderer {
	r := &renderer{
		out:      out,
		themes:   themes,
		fallback: fallback,
		width:    100,
		seen:     make(map[int]string),
		phase:    agentdesk.ExecutionIdle,
		feeds:    make(map[string]agentdesk.StreamState),
	}
	r.applyTheme("")
	return r
}

func (r *renderer) applyTheme(themeID string) {
	r.themeID = themeID
	name := themeID
	if name == "" {
		name = r.fallback
	}
	r.theme = r.themes.Resolve(name)
	r.styles = r.theme.Styles()

	style := r.mdStyle
	if style == "" {
		style = "dark"
		if r.theme.Mode == "light" {
			style = "light"
		}
	}
	md, err := glamour.NewTermRenderer(glamour.WithStandardStyle(style), glamour.WithWordWrap(r.width))
	if err != nil {
		md = nil
	}
	r.md = md
}

// Retheme re-resolves the current theme after the registry changed.
func (r *renderer) Retheme() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.applyTheme(r.themeID)
}

// Render prints whatever changed in vs since the last call.
func (r *renderer) Render(vs agentdesk.ViewState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if vs.ThemeID != r.themeID {
		r.applyTheme(vs.ThemeID)
		if vs.ThemeID != "" {
			r.println(r.styles.Muted.Render(fmt.Sprintf("theme %s", r.theme.ID())))
		}
	}

	if vs.Session != nil && vs.Session.Title != r.title {
		r.title = vs.Session.Title
		r.println(r.styles.Panel.Render(r.styles.Title.Render(r.title) + "  " + r.styles.Muted.Render(vs.Session.ID)))
	}

	r.renderTimeline(vs.Timeline)

	if vs.Execution.Phase != r.phase {
		r.phase = vs.Execution.Phase
		r.renderExecution(vs.Execution)
	}

	if vs.Telemetry != nil {
		if line := telemetryLine(vs.Telemetry); line != r.telemetry {
			r.telemetry = line
			r.println(r.styles.Muted.Render(line))
		}
	}
}

func (r *renderer) renderTimeline(timeline []agentdesk.TimelineMessage) {
	var unindexed []agentdesk.TimelineMessage
	for _, m := range timeline {
		if m.Index < 0 {
			unindexed = append(unindexed, m)
			continue
		}
		if prev, ok := r.seen[m.Index]; ok && prev == m.Content {
			continue
		}
		r.seen[m.Index] = m.Content
		r.renderMessage(m)
	}

	// The timeline was replaced; start counting again.
	if len(unindexed) < r.unindexed {
		r.unindexed = 0
	}
	for _, m := range unindexed[r.unindexed:] {
		r.renderMessage(m)
	}
	r.unindexed = len(unindexed)
}

func (r *renderer) renderMessage(m agentdesk.TimelineMessage) {
	switch m.Role {
	case "user":
		r.println(r.styles.User.Render("you") + " " + m.Content)
	case "assistant":
		r.println(r.styles.Assistant.Render("agent"))
		r.println(strings.TrimRight(r.markdown(m.Content), "\n"))
	default:
		r.println(r.styles.System.Render(valueOrDefault(m.Role, "system") + ": " + m.Content))
	}
}

func (r *renderer) markdown(content string) string {
	if r.md == nil {
		return content
	}
	out, err := r.md.Render(content)
	if err != nil {
		return content
	}
	return out
}

func (r *renderer) renderExecution(ex agentdesk.ExecutionStatus) {
	agent := valueOrDefault(ex.AgentName, "agent")
	switch ex.Phase {
	case agentdesk.ExecutionRunning:
		r.println(r.styles.Warning.Render(fmt.Sprintf("▶ %s running", agent)))
	case agentdesk.ExecutionFinished:
		r.println(r.styles.Success.Render(fmt.Sprintf("✔ %s finished in %.1fs", agent, ex.Duration)))
	case agentdesk.ExecutionStopped:
		r.println(r.styles.Muted.Render(fmt.Sprintf("■ %s stopped", agent)))
	case agentdesk.ExecutionFailed:
		r.println(r.styles.Error.Render(fmt.Sprintf("✘ %s failed: %s", agent, ex.Error)))
	}
}

func telemetryLine(t *agentdesk.TelemetrySnapshot) string {
	parts := []string{fmt.Sprintf("effort %d", t.EffortScore)}
	if branch, ok := t.Git["branch"].(string); ok && branch != "" {
		parts = append(parts, "branch "+branch)
	}
	if len(t.Tools) > 0 {
		parts = append(parts, fmt.Sprintf("%d tools", len(t.Tools)))
	}
	return strings.Join(parts, " · ")
}

// FeedState prints the connection indicator for one feed.
func (r *renderer) FeedState(feed string, s agentdesk.StreamState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.detached {
		return
	}
	prev := r.feeds[feed]
	r.feeds[feed] = s
	switch s {
	case agentdesk.StreamConnected:
		if prev == agentdesk.StreamReconnecting || prev == agentdesk.StreamStopped {
			r.println(r.styles.Success.Render("● " + feed + " reconnected"))
		}
	case agentdesk.StreamReconnecting:
		if prev != agentdesk.StreamReconnecting {
			r.println(r.styles.Warning.Render("◌ " + feed + " reconnecting"))
		}
	case agentdesk.StreamStopped:
		r.println(r.styles.Error.Render("● " + feed + " disconnected; press Enter to reconnect"))
	}
}

// Detach silences connection indicators while the feeds are being closed.
func (r *renderer) Detach() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.detached = true
}

func (r *renderer) println(line string) {
	fmt.Fprintln(r.out, line)
}
