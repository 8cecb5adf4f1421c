package agentdesk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFeedClient(t *testing.T) (*Client, *fakeTransport) {
	t.Helper()
	backend := sessionBackend(t)
	tr := &fakeTransport{}
	return NewClient(WithBaseURL(backend.BaseURL()), WithTransport(tr)), tr
}

func TestThemeFeed(t *testing.T) {
	client, tr := newFeedClient(t)
	store := NewMemoryStore()
	feed := client.Streams.ThemeFeed(store, &FeedOptions{Clock: &fakeClock{}})
	t.Cleanup(feed.Close)

	assert.Equal(t, StreamIdle, feed.State())
	feed.SetResource("session-123")
	assert.Equal(t, "session-123", store.ActiveSession())

	// The open resyncs the session record.
	require.Eventually(t, func() bool { return store.ThemeID() == "ocean" }, waitFor, tick)
	require.Equal(t, 1, tr.Opens())
	tr.mu.Lock()
	assert.Equal(t, client.BaseURL()+"/api/v1/sessions/session-123/stream", tr.urls[0])
	tr.mu.Unlock()

	tr.Conn(0).Send(`{"type":"session_theme","session_id":"session-123","theme_id":"gruvbox-light"}`)
	require.Eventually(t, func() bool { return store.ThemeID() == "gruvbox-light" }, waitFor, tick)
	assert.Equal(t, "Refactor", store.Snapshot().Session.Title)
}

func TestFeedSetResource(t *testing.T) {
	client, tr := newFeedClient(t)
	store := NewMemoryStore()
	feed := client.Streams.TelemetryFeed(store, &FeedOptions{Clock: &fakeClock{}})
	t.Cleanup(feed.Close)

	feed.SetResource("session-123")
	require.Eventually(t, func() bool { return feed.State() == StreamConnected }, waitFor, tick)
	first := tr.Conn(0)

	feed.SetResource("session-123")
	assert.Equal(t, 1, tr.Opens(), "same resource is a no-op")

	feed.SetResource("session-456")
	assert.True(t, first.Closed(), "old stream torn down before the switch returns")
	assert.Equal(t, "session-456", store.ActiveSession())
	require.Eventually(t, func() bool { return tr.Opens() == 2 }, waitFor, tick)

	// A late event on the old stream never reaches the new session.
	select {
	case first.events <- []byte(`{"type":"session_theme","session_id":"session-123","theme_id":"nord"}`):
	default:
	}
	assert.Never(t, func() bool { return store.ThemeID() != "" }, settle, tick)

	feed.SetResource("")
	assert.Equal(t, "", feed.Resource())
	assert.Equal(t, StreamIdle, feed.State())
	require.Eventually(t, func() bool { return tr.Conn(1).Closed() }, waitFor, tick)
}

func TestExecutionFeed(t *testing.T) {
	client, tr := newFeedClient(t)
	store := NewMemoryStore()
	feed := client.Streams.ExecutionFeed(store, &FeedOptions{Clock: &fakeClock{}})
	t.Cleanup(feed.Close)

	var states []StreamState
	done := make(chan struct{})
	feed.OnStateChange(func(s StreamState) {
		states = append(states, s)
		if s == StreamConnected {
			close(done)
		}
	})
	feed.SetResource("session-123")
	<-done
	assert.Equal(t, []StreamState{StreamConnecting, StreamConnected}, states)

	// The history fetched on open and the server replay land on the same indexes.
	require.Eventually(t, func() bool { return len(store.Snapshot().Timeline) == 2 }, waitFor, tick)
	conn := tr.Conn(0)
	conn.Send(`{"type":"message","index":0,"role":"user","content":"hi"}`)
	conn.Send(`{"type":"message","index":1,"role":"assistant","content":"hello"}`)
	conn.Send(`{"type":"start","task_id":"session-123","agent_name":"build"}`)
	require.Eventually(t, func() bool { return store.Snapshot().Execution.Phase == ExecutionRunning }, waitFor, tick)
	assert.Len(t, store.Snapshot().Timeline, 2)
}
