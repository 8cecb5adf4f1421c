package agentdesk

import (
	"sort"
	"sync"
)

// ============================================================================
// Sinks
// ============================================================================

// The stream side of the view state only ever writes through these.
// Each feed depends on the narrowest one it needs.

type SessionSink interface {
	SetSession(s *Session)
}

type ThemeSink interface {
	// UpdateTheme merges a theme change into the session record.
	UpdateTheme(sessionID, themeID string)
}

type TimelineSink interface {
	UpsertMessage(sessionID string, msg TimelineMessage)
	ReplaceTimeline(sessionID string, msgs []TimelineMessage)
}

type ExecutionSink interface {
	SetExecution(sessionID string, status ExecutionStatus)
}

type TelemetrySink interface {
	SetTelemetry(snapshot TelemetrySnapshot)
}

// ============================================================================
// View State
// ============================================================================

// TimelineMessage is one rendered entry of the conversation timeline.
type TimelineMessage struct {
	// Index is the server-side position; -1 for entries without one.
	Index   int
	Role    string
	Content string
}

type ExecutionPhase string

const (
	ExecutionIdle     ExecutionPhase = "idle"
	ExecutionRunning  ExecutionPhase = "running"
	ExecutionFinished ExecutionPhase = "finished"
	ExecutionFailed   ExecutionPhase = "failed"
	ExecutionStopped  ExecutionPhase = "stopped"
)

type ExecutionStatus struct {
	Phase     ExecutionPhase
	AgentName string
	Error     string
	Duration  float64
}

// ViewState is a point-in-time copy of everything the UI renders.
type ViewState struct {
	Session   *Session
	ThemeID   string
	Timeline  []TimelineMessage
	Execution ExecutionStatus
	Telemetry *TelemetrySnapshot
}

// ============================================================================
// MemoryStore
// ============================================================================

// MemoryStore is a goroutine-safe in-memory view state container for one
// active session.
type MemoryStore struct {
	mu        sync.RWMutex
	session   *Session
	themeID   string
	sessionID string
	timeline  map[int]TimelineMessage
	unindexed []TimelineMessage
	execution ExecutionStatus
	telemetry *TelemetrySnapshot

	listenersMu sync.RWMutex
	listeners   []func()
}

// NewMemoryStore creates an empty store. Call Select before wiring it to
// feeds: an unselected store adopts the first session written to it.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		timeline:  make(map[int]TimelineMessage),
		execution: ExecutionStatus{Phase: ExecutionIdle},
	}
}

// Subscribe registers fn to be called after every change.
func (s *MemoryStore) Subscribe(fn func()) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *MemoryStore) notify() {
	s.listenersMu.RLock()
	listeners := append([]func(){}, s.listeners...)
	s.listenersMu.RUnlock()
	for _, fn := range listeners {
		fn()
	}
}

// Select makes sessionID the active session, clearing per-session state
// if it changed.
func (s *MemoryStore) Select(sessionID string) {
	s.mu.Lock()
	if s.sessionID == sessionID {
		s.mu.Unlock()
		return
	}
	s.sessionID = sessionID
	s.session = nil
	s.themeID = ""
	s.timeline = make(map[int]TimelineMessage)
	s.unindexed = nil
	s.execution = ExecutionStatus{Phase: ExecutionIdle}
	s.telemetry = nil
	s.mu.Unlock()
	s.notify()
}

// ActiveSession returns the selected session id.
func (s *MemoryStore) ActiveSession() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessionID
}

// ThemeID returns the current theme of the active session.
func (s *MemoryStore) ThemeID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.themeID
}

// Snapshot returns a copy of the current view state.
func (s *MemoryStore) Snapshot() ViewState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vs := ViewState{
		ThemeID:   s.themeID,
		Execution: s.execution,
		Timeline:  s.timelineLocked(),
	}
	if s.session != nil {
		sess := *s.session
		vs.Session = &sess
	}
	if s.telemetry != nil {
		t := *s.telemetry
		vs.Telemetry = &t
	}
	return vs
}

func (s *MemoryStore) timelineLocked() []TimelineMessage {
	out := make([]TimelineMessage, 0, len(s.timeline)+len(s.unindexed))
	for _, m := range s.timeline {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return append(out, s.unindexed...)
}

// acceptsLocked reports whether writes for sessionID apply. An unselected store
// adopts the first session written to it.
func (s *MemoryStore) acceptsLocked(sessionID string) bool {
	if s.sessionID == "" {
		s.sessionID = sessionID
		return true
	}
	return s.sessionID == sessionID
}

// ── Sinks ─────────────────────────────────────────────

func (s *MemoryStore) SetSession(sess *Session) {
	if sess == nil {
		return
	}
	s.mu.Lock()
	if !s.acceptsLocked(sess.ID) {
		s.mu.Unlock()
		return
	}
	cp := *sess
	s.session = &cp
	s.themeID = cp.ThemeID
	s.mu.Unlock()
	s.notify()
}

func (s *MemoryStore) UpdateTheme(sessionID, themeID string) {
	s.mu.Lock()
	if !s.acceptsLocked(sessionID) {
		s.mu.Unlock()
		return
	}
	if s.session != nil {
		cp := *s.session
		cp.ThemeID = themeID
		s.session = &cp
	}
	s.themeID = themeID
	s.mu.Unlock()
	s.notify()
}

func (s *MemoryStore) UpsertMessage(sessionID string, msg TimelineMessage) {
	s.mu.Lock()
	if !s.acceptsLocked(sessionID) {
		s.mu.Unlock()
		return
	}
	if msg.Index >= 0 {
		s.timeline[msg.Index] = msg
	} else {
		s.unindexed = append(s.unindexed, msg)
	}
	s.mu.Unlock()
	s.notify()
}

func (s *MemoryStore) ReplaceTimeline(sessionID string, msgs []TimelineMessage) {
	s.mu.Lock()
	if !s.acceptsLocked(sessionID) {
		s.mu.Unlock()
		return
	}
	s.timeline = make(map[int]TimelineMessage, len(msgs))
	s.unindexed = nil
	for _, m := range msgs {
		if m.Index >= 0 {
			s.timeline[m.Index] = m
		} else {
			s.unindexed = append(s.unindexed, m)
		}
	}
	s.mu.Unlock()
	s.notify()
}

func (s *MemoryStore) SetExecution(sessionID string, status ExecutionStatus) {
	s.mu.Lock()
	if !s.acceptsLocked(sessionID) {
		s.mu.Unlock()
		return
	}
	s.execution = status
	s.mu.Unlock()
	s.notify()
}

func (s *MemoryStore) SetTelemetry(snapshot TelemetrySnapshot) {
	s.mu.Lock()
	if !s.acceptsLocked(snapshot.SessionID) {
		s.mu.Unlock()
		return
	}
	s.telemetry = &snapshot
	s.mu.Unlock()
	s.notify()
}
