// Package agentdesk is a Go client for the coding-agent WebApp API.
//
// It covers the REST surface (sessions, agents, models, skills, tools,
// accounts) and the live event streams (task execution, session theme,
// session telemetry) with automatic reconnection.
//
// Example:
//
//	client := agentdesk.NewClient(agentdesk.WithBaseURL("http://localhost:8000"))
//
//	sessions, _ := client.Sessions.List(ctx)
//	task, _ := client.Agents.Execute(ctx, "build", &agentdesk.AgentExecuteOptions{Message: "fix the tests"})
//
//	store := agentdesk.NewMemoryStore()
//	store.Select(task.SessionID)
//	feed := client.Streams.ExecutionFeed(store, nil)
//	feed.SetResource(task.SessionID)
//	defer feed.Close()
package agentdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// Environment
// ============================================================================

type Environment string

const (
	Local Environment = "local"
)

var environments = map[Environment]string{
	Local: "http://localhost:8000",
}

const (
	DefaultBaseURL = "http://localhost:8000"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	transport  Transport

	Sessions *SessionsClient
	Agents   *AgentsClient
	Models   *ModelsClient
	Skills   *SkillsClient
	Tools    *ToolsClient
	Accounts *AccountsClient
	Streams  *StreamsClient
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithEnvironment(env Environment) ClientOption {
	return func(c *Client) {
		if u, ok := environments[env]; ok {
			c.baseURL = u
		}
	}
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

// WithLogger sets the logger used by the client and every stream it creates.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithTransport sets the transport used for live streams. Defaults to SSE.
func WithTransport(t Transport) ClientOption {
	return func(c *Client) { c.transport = t }
}

// NewClient creates a new WebApp API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = discardLogger()
	}
	if c.transport == nil {
		// Streams are long-lived; the REST client's timeout would cut them off.
		c.transport = &SSETransport{HTTPClient: &http.Client{Transport: c.httpClient.Transport}}
	}

	c.Sessions = &SessionsClient{c: c}
	c.Agents = &AgentsClient{c: c}
	c.Models = &ModelsClient{c: c}
	c.Skills = &SkillsClient{c: c}
	c.Tools = &ToolsClient{c: c}
	c.Accounts = &AccountsClient{c: c}
	c.Streams = &StreamsClient{c: c}
	return c
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, newAPIError(resp.StatusCode, data)
	}
	return data, nil
}

func newAPIError(status int, body []byte) *APIError {
	apiErr := &APIError{StatusCode: status}
	// FastAPI validation errors carry a list in detail; keep the raw text then.
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &payload) == nil && len(payload.Detail) > 0 {
		var s string
		if json.Unmarshal(payload.Detail, &s) == nil {
			apiErr.Detail = s
		} else {
			apiErr.Detail = string(payload.Detail)
		}
	} else if len(body) > 0 {
		apiErr.Detail = strings.TrimSpace(string(body))
	}
	return apiErr
}

func get[T any](ctx context.Context, c *Client, path string) (*T, error) {
	data, err := c.doRequest(ctx, "GET", path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[T](data)
}

func send[T any](ctx context.Context, c *Client, method, path string, body interface{}) (*T, error) {
	data, err := c.doRequest(ctx, method, path, body, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[T](data)
}

func list[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	items, err := get[[]T](ctx, c, path)
	if err != nil {
		return nil, err
	}
	return *items, nil
}

// Health checks backend health.
func (c *Client) Health(ctx context.Context) (*HealthStatus, error) {
	return get[HealthStatus](ctx, c, "/health")
}

// Info returns API name, version and status.
func (c *Client) Info(ctx context.Context) (*APIInfo, error) {
	return get[APIInfo](ctx, c, "/api/v1/info")
}

// withTaskID returns a copy of options carrying a task_id, generating one if absent.
func withTaskID(options map[string]any) (map[string]any, string) {
	out := make(map[string]any, len(options)+1)
	for k, v := range options {
		out[k] = v
	}
	if id, ok := out["task_id"].(string); ok && id != "" {
		return out, id
	}
	id := uuid.NewString()
	out["task_id"] = id
	return out, id
}

// ============================================================================
// Sub-Clients
// ============================================================================

// SessionsClient handles session management and in-session execution.
type SessionsClient struct{ c *Client }

// List returns all sessions.
func (s *SessionsClient) List(ctx context.Context) (*SessionList, error) {
	return get[SessionList](ctx, s.c, "/api/v1/sessions")
}

// Get returns one session.
func (s *SessionsClient) Get(ctx context.Context, sessionID string) (*Session, error) {
	return get[Session](ctx, s.c, "/api/v1/sessions/"+url.PathEscape(sessionID))
}

// Create starts a session. A title is required.
func (s *SessionsClient) Create(ctx context.Context, opts *CreateSessionOptions) (*Session, error) {
	if opts == nil || strings.TrimSpace(opts.Title) == "" {
		return nil, fmt.Errorf("session title is required")
	}
	return send[Session](ctx, s.c, "POST", "/api/v1/sessions", opts)
}

// Delete removes a session and its messages.
func (s *SessionsClient) Delete(ctx context.Context, sessionID string) (*DeleteSessionResult, error) {
	return send[DeleteSessionResult](ctx, s.c, "DELETE", "/api/v1/sessions/"+url.PathEscape(sessionID), nil)
}

// UpdateTheme changes a session's theme. Subscribers of the session stream
// receive a session_theme event.
func (s *SessionsClient) UpdateTheme(ctx context.Context, sessionID, themeID string) (*Session, error) {
	return send[Session](ctx, s.c, "PUT", "/api/v1/sessions/"+url.PathEscape(sessionID), map[string]string{"theme_id": themeID})
}

// Messages returns the conversation history of a session.
func (s *SessionsClient) Messages(ctx context.Context, sessionID string) (*SessionMessages, error) {
	return get[SessionMessages](ctx, s.c, "/api/v1/sessions/"+url.PathEscape(sessionID)+"/messages")
}

// Execute runs an agent inside an existing session and waits for the result.
// The returned task id is the one the server tags execution events with.
func (s *SessionsClient) Execute(ctx context.Context, sessionID string, opts *ExecuteOptions) (*ExecuteResult, string, error) {
	if opts == nil || strings.TrimSpace(opts.UserMessage) == "" {
		return nil, "", fmt.Errorf("user message is required")
	}
	body := *opts
	var taskID string
	body.Options, taskID = withTaskID(opts.Options)
	res, err := send[ExecuteResult](ctx, s.c, "POST", "/api/v1/sessions/"+url.PathEscape(sessionID)+"/execute", &body)
	if err != nil {
		return nil, taskID, err
	}
	return res, taskID, nil
}

// AgentsClient handles agent discovery and background execution.
type AgentsClient struct{ c *Client }

// List returns the available agents.
func (a *AgentsClient) List(ctx context.Context) ([]Agent, error) {
	return list[Agent](ctx, a.c, "/api/v1/agents")
}

// Execute starts an agent in a new session. It returns as soon as the backend
// accepts the task.
func (a *AgentsClient) Execute(ctx context.Context, agentID string, opts *AgentExecuteOptions) (*AgentTask, error) {
	if opts == nil || strings.TrimSpace(opts.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}
	return send[AgentTask](ctx, a.c, "POST", "/api/v1/agents/"+url.PathEscape(agentID)+"/execute", opts)
}

// ModelsClient lists configured models.
type ModelsClient struct{ c *Client }

// List returns the configured models.
func (m *ModelsClient) List(ctx context.Context) ([]Model, error) {
	return list[Model](ctx, m.c, "/api/v1/models")
}

// SkillsClient lists installed skills.
type SkillsClient struct{ c *Client }

// List returns the installed skills.
func (s *SkillsClient) List(ctx context.Context) ([]Skill, error) {
	return list[Skill](ctx, s.c, "/api/v1/skills")
}

// ToolsClient lists the tools agents can call.
type ToolsClient struct{ c *Client }

// List returns the registered tools.
func (t *ToolsClient) List(ctx context.Context) ([]Tool, error) {
	return list[Tool](ctx, t.c, "/api/v1/tools")
}

// AccountsClient handles provider account configuration.
type AccountsClient struct{ c *Client }

// List returns the provider accounts.
func (a *AccountsClient) List(ctx context.Context) ([]Account, error) {
	return list[Account](ctx, a.c, "/api/v1/accounts")
}

// Create adds a provider account. A name is required.
func (a *AccountsClient) Create(ctx context.Context, opts *AccountOptions) (*Account, error) {
	if opts == nil || strings.TrimSpace(opts.Name) == "" {
		return nil, fmt.Errorf("account name is required")
	}
	return send[Account](ctx, a.c, "POST", "/api/v1/accounts", opts)
}

// Update changes the account called name. The name itself is not changed.
func (a *AccountsClient) Update(ctx context.Context, name string, opts *AccountOptions) (*Account, error) {
	if opts == nil {
		return nil, fmt.Errorf("account options are required")
	}
	body := *opts
	body.Name = ""
	return send[Account](ctx, a.c, "PUT", "/api/v1/accounts/"+url.PathEscape(name), &body)
}

// Delete removes the account called name.
func (a *AccountsClient) Delete(ctx context.Context, name string) (*AccountRemoved, error) {
	return send[AccountRemoved](ctx, a.c, "DELETE", "/api/v1/accounts/"+url.PathEscape(name), nil)
}

// SetDefault makes the account called name the default.
func (a *AccountsClient) SetDefault(ctx context.Context, name string) (*Account, error) {
	return send[Account](ctx, a.c, "POST", "/api/v1/accounts/"+url.PathEscape(name)+"/default", nil)
}
