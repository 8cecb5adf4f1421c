package agentdesk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Shared Types
// ============================================================================

// APIError represents a non-2xx response from the backend.
type APIError struct {
	StatusCode int    `json:"-"`
	Detail     string `json:"detail"`
}

func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

// IsNotFound reports whether err is (or wraps) a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// ============================================================================
// Session Types
// ============================================================================

// Session is the authoritative session record.
type Session struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Version   string `json:"version,omitempty"`
	ThemeID   string `json:"theme_id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type SessionList struct {
	Sessions []Session `json:"sessions"`
	Count    int       `json:"count"`
}

type CreateSessionOptions struct {
	Title   string `json:"title"`
	Version string `json:"version,omitempty"`
	ThemeID string `json:"theme_id,omitempty"`
}

type DeleteSessionResult struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// SessionMessage is one entry of a session's conversation history.
type SessionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SessionMessages struct {
	Messages []SessionMessage `json:"messages"`
	Count    int              `json:"count"`
}

// ============================================================================
// Execution Types
// ============================================================================

type ExecuteOptions struct {
	AgentName   string         `json:"agent_name"`
	UserMessage string         `json:"user_message"`
	Options     map[string]any `json:"options,omitempty"`
}

// ExecuteResult is the synchronous result of running an agent in a session.
type ExecuteResult struct {
	SessionID string   `json:"session_id"`
	AgentName string   `json:"agent_name"`
	Response  string   `json:"response"`
	ToolsUsed []string `json:"tools_used"`
	Duration  float64  `json:"duration"`
	Error     *string  `json:"error"`
}

type AgentExecuteOptions struct {
	Message string         `json:"message"`
	Options map[string]any `json:"options,omitempty"`
}

// AgentTask is returned when an agent run is accepted for background execution.
type AgentTask struct {
	TaskID    string `json:"task_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
}

// ============================================================================
// Catalog Types
// ============================================================================

type Agent struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Category    string   `json:"category,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type Model struct {
	Name       string `json:"name"`
	ProviderID string `json:"provider_id"`
	Model      string `json:"model"`
	IsDefault  bool   `json:"is_default"`
}

type Skill struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Location    string `json:"location"`
}

type Tool struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Category    *string  `json:"category"`
	Tags        []string `json:"tags"`
}

// ============================================================================
// Account Types
// ============================================================================

type AccountConfig struct {
	ProviderID  string         `json:"provider_id"`
	Model       string         `json:"model"`
	BaseURL     *string        `json:"base_url,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
	Description *string        `json:"description,omitempty"`
}

// Account is a provider configuration. API keys are never returned.
type Account struct {
	Name      string        `json:"name"`
	Config    AccountConfig `json:"config"`
	IsDefault bool          `json:"is_default"`
}

type AccountOptions struct {
	Name        string `json:"name,omitempty"`
	ProviderID  string `json:"provider_id"`
	Model       string `json:"model"`
	APIKey      string `json:"api_key,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	Description string `json:"description,omitempty"`
	IsDefault   bool   `json:"is_default"`
}

type AccountRemoved struct {
	Message string `json:"message"`
	Name    string `json:"name"`
}

// ============================================================================
// Service Types
// ============================================================================

type HealthStatus struct {
	Status   string `json:"status"`
	Database bool   `json:"database"`
}

type APIInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
}

// ============================================================================
// Stream Event Types
// ============================================================================

// ExecutionEvent is an event on a task execution stream.
type ExecutionEvent struct {
	Type      string  `json:"type"`
	TaskID    string  `json:"task_id,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	AgentName string  `json:"agent_name,omitempty"`
	Index     *int    `json:"index,omitempty"`
	Role      string  `json:"role,omitempty"`
	Content   string  `json:"content,omitempty"`
	Message   string  `json:"message,omitempty"`
	Duration  float64 `json:"duration,omitempty"`
}

func (e ExecutionEvent) EventType() string { return e.Type }

// CorrelationID prefers the session id; task-only events come from the task
// stream, whose task id is the session id.
func (e ExecutionEvent) CorrelationID() string {
	if e.SessionID != "" {
		return e.SessionID
	}
	return e.TaskID
}

// ThemeEvent is an event on a session theme stream.
type ThemeEvent struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	ThemeID   string `json:"theme_id,omitempty"`
}

func (e ThemeEvent) EventType() string     { return e.Type }
func (e ThemeEvent) CorrelationID() string { return e.SessionID }

// TelemetrySnapshot is the live status block of a session.
type TelemetrySnapshot struct {
	SessionID    string         `json:"session_id"`
	Git          map[string]any `json:"git"`
	Tools        map[string]any `json:"tools"`
	EffortInputs map[string]any `json:"effort_inputs"`
	EffortScore  int            `json:"effort_score"`
}

// TelemetryEvent is an event on a session telemetry stream. It carries either
// a telemetry snapshot or a theme change.
type TelemetryEvent struct {
	Type string `json:"type"`
	TelemetrySnapshot
	ThemeID string `json:"theme_id,omitempty"`
}

func (e TelemetryEvent) EventType() string     { return e.Type }
func (e TelemetryEvent) CorrelationID() string { return e.SessionID }

// Stream event type names.
const (
	EventMessage      = "message"
	EventStart        = "start"
	EventStop         = "stop"
	EventError        = "error"
	EventFinish       = "finish"
	EventPing         = "ping"
	EventConnected    = "connected"
	EventDisconnect   = "disconnect"
	EventSessionTheme = "session_theme"
	EventTelemetry    = "telemetry"
)

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}
