package agentdesk

import (
	"context"
	"log/slog"
)

// ApplyFunc applies a fetched snapshot to the view state. A StreamClient runs
// it on its loop, and only while the connection it was fetched for is current.
type ApplyFunc func()

// ResyncPolicy decides how a stream recovers state across reconnects.
type ResyncPolicy interface {
	// Resync fetches the authoritative state of the resource after a
	// connection opens. A nil ApplyFunc means there is nothing to apply.
	Resync(ctx context.Context, resourceID string) (ApplyFunc, error)
	// ShouldStopRetrying reports whether the resource is gone for good.
	ShouldStopRetrying(ctx context.Context, resourceID string) bool
}

// NoResync never fetches and never stops retrying.
type NoResync struct{}

func (NoResync) Resync(context.Context, string) (ApplyFunc, error)  { return nil, nil }
func (NoResync) ShouldStopRetrying(context.Context, string) bool { return false }

// SessionResync checks and refetches the session backing a stream.
type SessionResync struct {
	Sessions *SessionsClient
	Logger   *slog.Logger

	// Session, when set, receives a fresh session record on every open.
	Session SessionSink
	// Timeline, when set, receives the full message history on every open.
	Timeline TimelineSink
}

func (r *SessionResync) Resync(ctx context.Context, sessionID string) (ApplyFunc, error) {
	var (
		sess *Session
		msgs []TimelineMessage
	)
	if r.Session != nil {
		s, err := r.Sessions.Get(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		sess = s
	}
	if r.Timeline != nil {
		history, err := r.Sessions.Messages(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		msgs = make([]TimelineMessage, len(history.Messages))
		for i, m := range history.Messages {
			msgs[i] = TimelineMessage{Index: i, Role: m.Role, Content: m.Content}
		}
	}
	if sess == nil && msgs == nil {
		return nil, nil
	}
	return func() {
		if sess != nil {
			r.Session.SetSession(sess)
		}
		if msgs != nil {
			r.Timeline.ReplaceTimeline(sessionID, msgs)
		}
	}, nil
}

// ShouldStopRetrying is true only when the backend reports the session as
// missing. Network errors and other statuses keep the stream retrying.
func (r *SessionResync) ShouldStopRetrying(ctx context.Context, sessionID string) bool {
	_, err := r.Sessions.Get(ctx, sessionID)
	if err == nil {
		return false
	}
	if IsNotFound(err) {
		return true
	}
	if r.Logger != nil {
		r.Logger.Debug("session existence check failed", "resource_id", sessionID, "error", err)
	}
	return false
}
