package agentdesk

import (
	"log/slog"
	"sync"
	"time"
)

// Stream endpoints. The task stream is keyed by session id.
const (
	ExecutionEndpoint = "/api/v1/tasks/{id}/stream"
	SessionEndpoint   = "/api/v1/sessions/{id}/stream"
)

// Feed names used in log lines.
const (
	FeedExecution = "execution"
	FeedTheme     = "theme"
	FeedTelemetry = "telemetry"
)

// Store capabilities each feed writes through.
type (
	ExecutionStore interface {
		TimelineSink
		ExecutionSink
	}
	ThemeStore interface {
		SessionSink
		ThemeSink
	}
	TelemetryStore interface {
		ThemeSink
		TelemetrySink
	}
)

// ============================================================================
// Dispatchers
// ============================================================================

// NewExecutionDispatcher routes task execution events for sessionID into sink.
func NewExecutionDispatcher(sessionID string, sink ExecutionStore, logger *slog.Logger) *Dispatcher[ExecutionEvent] {
	status := func(phase ExecutionPhase) func(ExecutionEvent) {
		return func(ev ExecutionEvent) {
			sink.SetExecution(sessionID, ExecutionStatus{Phase: phase, AgentName: ev.AgentName, Duration: ev.Duration})
		}
	}
	return NewDispatcher[ExecutionEvent](logger).
		KeepAlive(EventPing, EventConnected, EventDisconnect).
		Handle(EventMessage, func(ev ExecutionEvent) {
			idx := -1
			if ev.Index != nil {
				idx = *ev.Index
			}
			sink.UpsertMessage(sessionID, TimelineMessage{Index: idx, Role: ev.Role, Content: ev.Content})
		}).
		Handle(EventStart, status(ExecutionRunning)).
		Handle(EventFinish, status(ExecutionFinished)).
		Handle(EventStop, status(ExecutionStopped)).
		Handle(EventError, func(ev ExecutionEvent) {
			sink.SetExecution(sessionID, ExecutionStatus{
				Phase:     ExecutionFailed,
				AgentName: ev.AgentName,
				Error:     ev.Message,
				Duration:  ev.Duration,
			})
		})
}

// NewThemeDispatcher applies session_theme events for sessionID as partial
// session updates.
func NewThemeDispatcher(sessionID string, sink ThemeSink, logger *slog.Logger) *Dispatcher[ThemeEvent] {
	return NewDispatcher[ThemeEvent](logger).
		KeepAlive(EventPing).
		Handle(EventSessionTheme, func(ev ThemeEvent) {
			sink.UpdateTheme(sessionID, ev.ThemeID)
		})
}

// NewTelemetryDispatcher routes telemetry snapshots and theme changes for
// sessionID into sink.
func NewTelemetryDispatcher(sessionID string, sink TelemetryStore, logger *slog.Logger) *Dispatcher[TelemetryEvent] {
	return NewDispatcher[TelemetryEvent](logger).
		KeepAlive(EventPing).
		Handle(EventTelemetry, func(ev TelemetryEvent) {
			snap := ev.TelemetrySnapshot
			snap.SessionID = sessionID
			sink.SetTelemetry(snap)
		}).
		Handle(EventSessionTheme, func(ev TelemetryEvent) {
			sink.UpdateTheme(sessionID, ev.ThemeID)
		})
}

// ============================================================================
// StreamsClient
// ============================================================================

// FeedOptions tunes the streams created by StreamsClient. A nil *FeedOptions
// uses the defaults.
type FeedOptions struct {
	MaxRetries int // zero or negative means DefaultMaxRetries
	BaseDelay  time.Duration
	Clock      Clock
}

// StreamsClient creates live session streams bound to the client's base URL,
// transport and logger.
type StreamsClient struct{ c *Client }

// URL returns the absolute stream URL for a resource.
func (s *StreamsClient) URL(endpoint, resourceID string) string {
	return Subscription{ResourceID: resourceID, Endpoint: endpoint}.URL(s.c.baseURL)
}

func (s *StreamsClient) subscribe(endpoint, resourceID string, opts *FeedOptions) Subscription {
	sub := Subscription{ResourceID: resourceID, Endpoint: endpoint}
	if opts != nil {
		sub.MaxRetries = opts.MaxRetries
	}
	return sub
}

func (s *StreamsClient) config(feed string, resync ResyncPolicy, opts *FeedOptions) StreamConfig {
	cfg := StreamConfig{
		BaseURL:   s.c.baseURL,
		Transport: s.c.transport,
		Resync:    resync,
		Logger:    s.c.logger,
		Feed:      feed,
	}
	if opts != nil {
		cfg.BaseDelay = opts.BaseDelay
		cfg.Clock = opts.Clock
	}
	return cfg
}

// ExecutionStream streams task events of a session into store. Each open
// refetches the message history.
func (s *StreamsClient) ExecutionStream(sessionID string, store ExecutionStore, opts *FeedOptions) *StreamClient[ExecutionEvent] {
	resync := &SessionResync{Sessions: s.c.Sessions, Logger: s.c.logger, Timeline: store}
	return NewStreamClient(
		s.subscribe(ExecutionEndpoint, sessionID, opts),
		NewExecutionDispatcher(sessionID, store, s.c.logger),
		s.config(FeedExecution, resync, opts),
	)
}

// ThemeStream keeps the session record and its theme current. Each open
// refetches the session.
func (s *StreamsClient) ThemeStream(sessionID string, store ThemeStore, opts *FeedOptions) *StreamClient[ThemeEvent] {
	resync := &SessionResync{Sessions: s.c.Sessions, Logger: s.c.logger, Session: store}
	return NewStreamClient(
		s.subscribe(SessionEndpoint, sessionID, opts),
		NewThemeDispatcher(sessionID, store, s.c.logger),
		s.config(FeedTheme, resync, opts),
	)
}

// TelemetryStream streams telemetry snapshots of a session into store. The
// server sends a fresh snapshot on connect, so opens only check existence.
func (s *StreamsClient) TelemetryStream(sessionID string, store TelemetryStore, opts *FeedOptions) *StreamClient[TelemetryEvent] {
	resync := &SessionResync{Sessions: s.c.Sessions, Logger: s.c.logger}
	return NewStreamClient(
		s.subscribe(SessionEndpoint, sessionID, opts),
		NewTelemetryDispatcher(sessionID, store, s.c.logger),
		s.config(FeedTelemetry, resync, opts),
	)
}

// selector is implemented by stores that track an active session.
type selector interface {
	Select(sessionID string)
}

func (s *StreamsClient) ExecutionFeed(store ExecutionStore, opts *FeedOptions) *Feed[ExecutionEvent] {
	return newFeed(store, func(id string) *StreamClient[ExecutionEvent] {
		return s.ExecutionStream(id, store, opts)
	})
}

func (s *StreamsClient) ThemeFeed(store ThemeStore, opts *FeedOptions) *Feed[ThemeEvent] {
	return newFeed(store, func(id string) *StreamClient[ThemeEvent] {
		return s.ThemeStream(id, store, opts)
	})
}

func (s *StreamsClient) TelemetryFeed(store TelemetryStore, opts *FeedOptions) *Feed[TelemetryEvent] {
	return newFeed(store, func(id string) *StreamClient[TelemetryEvent] {
		return s.TelemetryStream(id, store, opts)
	})
}

// ============================================================================
// Feed
// ============================================================================

// Feed is a mounted view feature bound to at most one resource at a time.
// Changing the resource tears the old stream down before the new one opens.
type Feed[E Event] struct {
	newClient func(resourceID string) *StreamClient[E]
	store     any

	mu       sync.Mutex
	resource string
	client   *StreamClient[E]
	hooks    []func(StreamState)
}

func newFeed[E Event](store any, newClient func(string) *StreamClient[E]) *Feed[E] {
	return &Feed[E]{newClient: newClient, store: store}
}

// SetResource switches the feed to resourceID. An empty id unmounts it.
// Setting the current id again is a no-op.
func (f *Feed[E]) SetResource(resourceID string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if resourceID == f.resource {
		return
	}
	if f.client != nil {
		f.client.Close()
		f.client = nil
	}
	f.resource = resourceID
	if resourceID == "" {
		return
	}

	if sel, ok := f.store.(selector); ok {
		sel.Select(resourceID)
	}
	c := f.newClient(resourceID)
	for _, h := range f.hooks {
		c.OnStateChange(h)
	}
	f.client = c
	c.Connect()
}

// Resource returns the current resource id, or "" when unmounted.
func (f *Feed[E]) Resource() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resource
}

// State returns the state of the current stream; idle when unmounted.
func (f *Feed[E]) State() StreamState {
	f.mu.Lock()
	c := f.client
	f.mu.Unlock()
	if c == nil {
		return StreamIdle
	}
	return c.State()
}

// Reconnect asks the current stream to connect again after it stopped.
func (f *Feed[E]) Reconnect() {
	f.mu.Lock()
	c := f.client
	f.mu.Unlock()
	if c != nil {
		c.Connect()
	}
}

// OnStateChange registers fn on the current stream and every later one.
func (f *Feed[E]) OnStateChange(fn func(StreamState)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hooks = append(f.hooks, fn)
	if f.client != nil {
		f.client.OnStateChange(fn)
	}
}

// Close unmounts the feed.
func (f *Feed[E]) Close() {
	f.SetResource("")
}
