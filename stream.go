package agentdesk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"sync"
	"time"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("stream client closed")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ============================================================================
// Clock
// ============================================================================

// Clock schedules reconnect timers. Tests substitute a virtual clock.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a pending Clock callback.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// ============================================================================
// Configuration
// ============================================================================

// DefaultMaxRetries is the number of consecutive reconnects attempted before a
// stream gives up.
const DefaultMaxRetries = 5

// Subscription identifies one logical stream.
type Subscription struct {
	ResourceID string
	// Endpoint is the stream path relative to the API base URL, with an
	// "{id}" placeholder for the resource id.
	Endpoint string
	// MaxRetries bounds consecutive reconnects. Zero or negative means
	// DefaultMaxRetries.
	MaxRetries int
}

// URL resolves the subscription endpoint against baseURL.
func (s Subscription) URL(baseURL string) string {
	path := strings.ReplaceAll(s.Endpoint, "{id}", url.PathEscape(s.ResourceID))
	return strings.TrimRight(baseURL, "/") + path
}

// StreamConfig configures a StreamClient.
type StreamConfig struct {
	BaseURL   string
	Transport Transport
	Resync    ResyncPolicy
	// BaseDelay is the first reconnect delay; each further consecutive
	// failure doubles it.
	BaseDelay time.Duration
	Clock     Clock
	Logger    *slog.Logger
	// Feed names the stream in log lines.
	Feed string
}

func (c *StreamConfig) defaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Transport == nil {
		c.Transport = &SSETransport{}
	}
	if c.Resync == nil {
		c.Resync = NoResync{}
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 1 * time.Second
	}
	if c.Clock == nil {
		c.Clock = realClock{}
	}
	if c.Logger == nil {
		c.Logger = discardLogger()
	}
}

// StreamState is the lifecycle state of a StreamClient.
type StreamState string

const (
	StreamIdle         StreamState = "idle"
	StreamConnecting   StreamState = "connecting"
	StreamConnected    StreamState = "connected"
	StreamReconnecting StreamState = "reconnecting"
	StreamStopped      StreamState = "stopped"
)

// ============================================================================
// Loop messages
// ============================================================================

type msgKind int

const (
	msgOpened msgKind = iota
	msgOpenFailed
	msgEvent
	msgReadFailed
	msgResynced
	msgStopCheck
	msgRetry
)

// streamMsg is one transition input. gen ties it to the attempt that
// produced it; the loop drops messages from older generations.
type streamMsg struct {
	kind    msgKind
	gen     uint64
	conn    Conn
	payload []byte
	err     error
	apply   ApplyFunc
	stop    bool
}

// ============================================================================
// StreamClient
// ============================================================================

// StreamClient keeps one live event connection for a Subscription and
// reconnects with exponential backoff when it fails.
//
// Transport callbacks (open, payload, failure), resync results, existence
// checks and timers all post messages to a single loop goroutine, which
// applies them in order. Every transition first checks that the subscription
// is still active and that the message belongs to the current generation.
// Transport errors are logged and retried, never returned.
type StreamClient[E Event] struct {
	sub        Subscription
	url        string
	cfg        StreamConfig
	maxRetries int
	dispatcher *Dispatcher[E]
	logger     *slog.Logger

	msgs      chan streamMsg
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.Mutex
	state      StreamState
	active     bool
	closed     bool
	gen        uint64
	inFlight   bool // an attempt, existence check or backoff timer is pending
	conn       Conn
	ctx        context.Context
	cancel     context.CancelFunc
	timer      Timer
	retryCount int

	// Transitions queue here under mu and reach hooks from one goroutine,
	// in order.
	pendingStates []StreamState
	notify        chan struct{}
	hooksMu       sync.RWMutex
	hooks         []func(StreamState)
}

// NewStreamClient creates a client for sub and starts its loop. It does not
// connect; call Connect. Close releases the loop.
func NewStreamClient[E Event](sub Subscription, dispatcher *Dispatcher[E], cfg StreamConfig) *StreamClient[E] {
	cfg.defaults()
	maxRetries := sub.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	c := &StreamClient[E]{
		sub:        sub,
		url:        sub.URL(cfg.BaseURL),
		cfg:        cfg,
		maxRetries: maxRetries,
		dispatcher: dispatcher,
		logger:     cfg.Logger.With("feed", cfg.Feed, "resource_id", sub.ResourceID),
		msgs:       make(chan streamMsg, 16),
		done:       make(chan struct{}),
		notify:     make(chan struct{}, 1),
		state:      StreamIdle,
	}
	go c.run()
	go c.notifyLoop()
	return c
}

// Subscription returns the subscription this client serves.
func (c *StreamClient[E]) Subscription() Subscription { return c.sub }

// State returns the current lifecycle state.
func (c *StreamClient[E]) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// RetryCount returns the number of consecutive failed attempts since the
// last successful open.
func (c *StreamClient[E]) RetryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retryCount
}

// OnStateChange registers a hook called after every state transition. Hooks
// run on their own goroutine, one transition at a time, in order.
func (c *StreamClient[E]) OnStateChange(fn func(StreamState)) {
	c.hooksMu.Lock()
	defer c.hooksMu.Unlock()
	c.hooks = append(c.hooks, fn)
}

// Connect opens the stream. It is a no-op while a connection is open or an
// attempt, existence check or backoff is pending. Called on a stopped client
// it subscribes afresh with a zero retry count.
func (c *StreamClient[E]) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.conn != nil || c.inFlight {
		c.mu.Unlock()
		return nil
	}
	if !c.active {
		c.active = true
		c.retryCount = 0
	}
	c.startAttemptLocked()
	c.mu.Unlock()
	return nil
}

// Disconnect marks the subscription inactive, closes the connection and
// cancels any pending reconnect. Once it returns, callbacks still in flight
// from the old connection are ignored. Safe to call repeatedly.
func (c *StreamClient[E]) Disconnect() {
	c.mu.Lock()
	changed := c.state != StreamStopped
	conn := c.stopLocked()
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if changed {
		c.logger.Debug("stream disconnected")
	}
}

// Close disconnects and stops the loop goroutine.
func (c *StreamClient[E]) Close() {
	c.Disconnect()
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}

// ============================================================================
// Loop
// ============================================================================

func (c *StreamClient[E]) run() {
	for {
		select {
		case m := <-c.msgs:
			c.handle(m)
		case <-c.done:
			return
		}
	}
}

// post delivers m to the loop. It reports false once the client is closed.
func (c *StreamClient[E]) post(m streamMsg) bool {
	select {
	case c.msgs <- m:
		return true
	case <-c.done:
		return false
	}
}

func (c *StreamClient[E]) handle(m streamMsg) {
	switch m.kind {
	case msgOpened:
		c.handleOpened(m)
	case msgOpenFailed:
		c.handleTransportError(m.gen, m.err, "connect failed")
	case msgEvent:
		c.handleEvent(m)
	case msgReadFailed:
		c.handleTransportError(m.gen, m.err, "stream lost")
	case msgResynced:
		c.handleResynced(m)
	case msgStopCheck:
		c.handleStopCheck(m)
	case msgRetry:
		c.handleRetry(m)
	}
}

// currentLocked is the guard every transition starts with.
func (c *StreamClient[E]) currentLocked(gen uint64) bool {
	return c.active && gen == c.gen
}

func (c *StreamClient[E]) handleOpened(m streamMsg) {
	c.mu.Lock()
	if !c.currentLocked(m.gen) {
		c.mu.Unlock()
		m.conn.Close()
		return
	}
	c.conn = m.conn
	c.inFlight = false
	c.retryCount = 0
	c.setStateLocked(StreamConnected)
	ctx := c.ctx
	c.mu.Unlock()

	c.logger.Info("stream connected")

	go c.readLoop(m.gen, m.conn)
	go func() {
		apply, err := c.cfg.Resync.Resync(ctx, c.sub.ResourceID)
		c.post(streamMsg{kind: msgResynced, gen: m.gen, apply: apply, err: err})
	}()
}

func (c *StreamClient[E]) readLoop(gen uint64, conn Conn) {
	for {
		payload, err := conn.Recv()
		if err != nil {
			c.post(streamMsg{kind: msgReadFailed, gen: gen, err: err})
			return
		}
		if !c.post(streamMsg{kind: msgEvent, gen: gen, payload: payload}) {
			conn.Close()
			return
		}
	}
}

func (c *StreamClient[E]) handleEvent(m streamMsg) {
	c.mu.Lock()
	current := c.currentLocked(m.gen)
	c.mu.Unlock()
	if !current {
		return
	}
	c.dispatcher.Dispatch(c.sub.ResourceID, m.payload)
}

func (c *StreamClient[E]) handleResynced(m streamMsg) {
	c.mu.Lock()
	current := c.currentLocked(m.gen)
	c.mu.Unlock()
	if !current {
		return
	}
	if m.err != nil {
		c.logger.Warn("resync failed", "error", m.err)
		return
	}
	if m.apply != nil {
		m.apply()
	}
}

// handleTransportError discards the failed connection and, while the
// subscription is active, asks the resync policy whether the resource still
// exists before any reconnect is scheduled.
func (c *StreamClient[E]) handleTransportError(gen uint64, err error, msg string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.conn = nil
	if !c.active {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	c.inFlight = true
	c.setStateLocked(StreamReconnecting)
	ctx := c.ctx
	attempt := c.retryCount
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	c.logger.Warn(msg, "error", err, "attempt", attempt)

	go func() {
		stop := c.cfg.Resync.ShouldStopRetrying(ctx, c.sub.ResourceID)
		c.post(streamMsg{kind: msgStopCheck, gen: gen, stop: stop})
	}()
}

func (c *StreamClient[E]) handleStopCheck(m streamMsg) {
	c.mu.Lock()
	if !c.currentLocked(m.gen) {
		c.mu.Unlock()
		return
	}
	if m.stop || c.retryCount >= c.maxRetries {
		conn := c.stopLocked()
		attempts := c.retryCount
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		if m.stop {
			c.logger.Info("resource no longer exists, not reconnecting")
		} else {
			c.logger.Warn("giving up on stream", "attempts", attempts)
		}
		return
	}

	delay := backoffDelay(c.cfg.BaseDelay, c.retryCount)
	c.retryCount++
	attempt := c.retryCount
	gen := c.gen
	c.timer = c.cfg.Clock.AfterFunc(delay, func() {
		c.post(streamMsg{kind: msgRetry, gen: gen})
	})
	c.mu.Unlock()

	c.logger.Info("reconnecting", "attempt", attempt, "delay", delay)
}

func (c *StreamClient[E]) handleRetry(m streamMsg) {
	c.mu.Lock()
	if !c.currentLocked(m.gen) {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.startAttemptLocked()
	c.mu.Unlock()
}

// backoffDelay returns base * 2^retry, saturating at the largest Duration
// instead of wrapping.
func backoffDelay(base time.Duration, retry int) time.Duration {
	if retry >= 63 || base > time.Duration(math.MaxInt64>>uint(retry)) {
		return time.Duration(math.MaxInt64)
	}
	return base << uint(retry)
}

// startAttemptLocked begins a new connection attempt under a new generation.
func (c *StreamClient[E]) startAttemptLocked() {
	if c.cancel != nil {
		c.cancel()
	}
	c.gen++
	c.inFlight = true
	c.setStateLocked(StreamConnecting)
	ctx, cancel := context.WithCancel(context.Background())
	c.ctx, c.cancel = ctx, cancel

	gen := c.gen
	c.logger.Debug("opening stream", "url", c.url)
	go func() {
		conn, err := c.cfg.Transport.Open(ctx, c.url)
		if err != nil {
			c.post(streamMsg{kind: msgOpenFailed, gen: gen, err: err})
			return
		}
		if !c.post(streamMsg{kind: msgOpened, gen: gen, conn: conn}) {
			conn.Close()
		}
	}()
}

// stopLocked moves to stopped and invalidates everything in flight. The
// returned connection, if any, must be closed after unlocking.
func (c *StreamClient[E]) stopLocked() Conn {
	c.active = false
	c.gen++
	c.inFlight = false
	c.setStateLocked(StreamStopped)
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	conn := c.conn
	c.conn = nil
	return conn
}

func (c *StreamClient[E]) setStateLocked(s StreamState) {
	if c.state == s {
		return
	}
	c.state = s
	c.pendingStates = append(c.pendingStates, s)
	select {
	case c.notify <- struct{}{}:
	default:
	}
}

func (c *StreamClient[E]) notifyLoop() {
	for {
		select {
		case <-c.notify:
			c.flushStates()
		case <-c.done:
			c.flushStates()
			return
		}
	}
}

func (c *StreamClient[E]) flushStates() {
	c.mu.Lock()
	states := c.pendingStates
	c.pendingStates = nil
	c.mu.Unlock()
	if len(states) == 0 {
		return
	}

	c.hooksMu.RLock()
	hooks := append([]func(StreamState){}, c.hooks...)
	c.hooksMu.RUnlock()
	for _, s := range states {
		for _, h := range hooks {
			h(s)
		}
	}
}
