package agentdesk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreThemeMerge(t *testing.T) {
	store := NewMemoryStore()
	store.SetSession(&Session{ID: "session-123", Title: "Refactor", ThemeID: "dracula"})

	store.UpdateTheme("session-123", "ocean")

	vs := store.Snapshot()
	require.NotNil(t, vs.Session)
	assert.Equal(t, "Refactor", vs.Session.Title)
	assert.Equal(t, "ocean", vs.Session.ThemeID)
	assert.Equal(t, "ocean", vs.ThemeID)
}

func TestMemoryStoreIgnoresOtherSessions(t *testing.T) {
	store := NewMemoryStore()
	store.Select("session-123")
	notified := 0
	store.Subscribe(func() { notified++ })

	store.UpdateTheme("other", "aurora")
	store.SetSession(&Session{ID: "other"})
	store.UpsertMessage("other", TimelineMessage{Index: 0, Content: "x"})
	store.SetExecution("other", ExecutionStatus{Phase: ExecutionRunning})
	store.SetTelemetry(TelemetrySnapshot{SessionID: "other"})

	assert.Equal(t, 0, notified)
	vs := store.Snapshot()
	assert.Empty(t, vs.ThemeID)
	assert.Nil(t, vs.Session)
	assert.Empty(t, vs.Timeline)
	assert.Equal(t, ExecutionIdle, vs.Execution.Phase)
	assert.Nil(t, vs.Telemetry)
}

func TestMemoryStoreAdoptsFirstSession(t *testing.T) {
	store := NewMemoryStore()

	store.UpdateTheme("session-a", "nord")
	store.UpdateTheme("session-b", "dracula")
	store.SetExecution("session-b", ExecutionStatus{Phase: ExecutionRunning})

	vs := store.Snapshot()
	assert.Equal(t, "nord", vs.ThemeID)
	assert.Equal(t, ExecutionIdle, vs.Execution.Phase)
}

func TestMemoryStoreTimeline(t *testing.T) {
	store := NewMemoryStore()
	store.Select("s")

	store.UpsertMessage("s", TimelineMessage{Index: 2, Role: "assistant", Content: "c"})
	store.UpsertMessage("s", TimelineMessage{Index: -1, Role: "system", Content: "live"})
	store.UpsertMessage("s", TimelineMessage{Index: 0, Role: "user", Content: "a"})
	store.UpsertMessage("s", TimelineMessage{Index: 0, Role: "user", Content: "a"})

	assert.Equal(t, []TimelineMessage{
		{Index: 0, Role: "user", Content: "a"},
		{Index: 2, Role: "assistant", Content: "c"},
		{Index: -1, Role: "system", Content: "live"},
	}, store.Snapshot().Timeline)

	store.ReplaceTimeline("s", []TimelineMessage{{Index: 0, Role: "user", Content: "a"}, {Index: 1, Role: "assistant", Content: "b"}})
	assert.Len(t, store.Snapshot().Timeline, 2)
}

func TestMemoryStoreSelect(t *testing.T) {
	store := NewMemoryStore()
	store.SetSession(&Session{ID: "first", ThemeID: "nord"})
	assert.Equal(t, "first", store.ActiveSession())

	store.Select("second")
	vs := store.Snapshot()
	assert.Nil(t, vs.Session)
	assert.Empty(t, vs.ThemeID)
	assert.Equal(t, "second", store.ActiveSession())

	// Selecting the same session keeps its state.
	store.UpdateTheme("second", "gruvbox")
	store.Select("second")
	assert.Equal(t, "gruvbox", store.ThemeID())
}

func TestMemoryStoreSnapshotIsCopy(t *testing.T) {
	store := NewMemoryStore()
	store.SetSession(&Session{ID: "s", Title: "orig"})

	vs := store.Snapshot()
	vs.Session.Title = "changed"
	assert.Equal(t, "orig", store.Snapshot().Session.Title)
}
