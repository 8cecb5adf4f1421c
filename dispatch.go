package agentdesk

import (
	"encoding/json"
	"log/slog"
)

// Event is a decoded stream payload.
type Event interface {
	EventType() string
	// CorrelationID is the resource the event belongs to, or "" if untagged.
	CorrelationID() string
}

// DispatchResult describes what happened to one inbound payload.
type DispatchResult int

const (
	Applied DispatchResult = iota
	KeepAlive
	Stale
	Malformed
	Unrecognized
)

func (r DispatchResult) String() string {
	switch r {
	case Applied:
		return "applied"
	case KeepAlive:
		return "keep-alive"
	case Stale:
		return "stale"
	case Malformed:
		return "malformed"
	case Unrecognized:
		return "unrecognized"
	default:
		return "unknown"
	}
}

// Dispatcher decodes payloads into E and routes them by type.
// It is not safe for concurrent use; a StreamClient only calls it from its loop.
type Dispatcher[E Event] struct {
	keepAlive map[string]bool
	handlers  map[string]func(E)
	logger    *slog.Logger
}

// NewDispatcher returns an empty Dispatcher. A nil logger discards.
func NewDispatcher[E Event](logger *slog.Logger) *Dispatcher[E] {
	if logger == nil {
		logger = discardLogger()
	}
	return &Dispatcher[E]{
		keepAlive: make(map[string]bool),
		handlers:  make(map[string]func(E)),
		logger:    logger,
	}
}

// KeepAlive marks event types that only prove liveness.
func (d *Dispatcher[E]) KeepAlive(types ...string) *Dispatcher[E] {
	for _, t := range types {
		d.keepAlive[t] = true
	}
	return d
}

// Handle registers the update handler for an event type, replacing any previous one.
func (d *Dispatcher[E]) Handle(eventType string, h func(E)) *Dispatcher[E] {
	d.handlers[eventType] = h
	return d
}

// Dispatch decodes payload and applies it if it belongs to resourceID.
func (d *Dispatcher[E]) Dispatch(resourceID string, payload []byte) DispatchResult {
	var ev E
	if err := json.Unmarshal(payload, &ev); err != nil {
		d.logger.Warn("dropping malformed stream event",
			"resource_id", resourceID, "error", err, "bytes", len(payload))
		return Malformed
	}

	typ := ev.EventType()
	if d.keepAlive[typ] {
		return KeepAlive
	}
	h, ok := d.handlers[typ]
	if !ok {
		if typ == "" {
			d.logger.Warn("dropping stream event without type", "resource_id", resourceID)
			return Malformed
		}
		d.logger.Debug("ignoring unrecognized stream event", "resource_id", resourceID, "type", typ)
		return Unrecognized
	}
	if cid := ev.CorrelationID(); cid != "" && cid != resourceID {
		d.logger.Debug("dropping stale stream event",
			"resource_id", resourceID, "type", typ, "correlation_id", cid)
		return Stale
	}

	h(ev)
	return Applied
}
