package agentdesk

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"nhooyr.io/websocket"
)

// ============================================================================
// Transport
// ============================================================================

// Transport opens live event connections.
type Transport interface {
	Open(ctx context.Context, url string) (Conn, error)
}

// Conn is one open event connection. Recv blocks until the next event
// payload arrives; any error ends the connection.
type Conn interface {
	Recv() ([]byte, error)
	Close() error
}

// ============================================================================
// SSE
// ============================================================================

// SSETransport reads text/event-stream responses.
type SSETransport struct {
	HTTPClient *http.Client
	Header     http.Header
}

func (t *SSETransport) Open(ctx context.Context, url string) (Conn, error) {
	ctx, cancel := context.WithCancel(ctx)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vs := range t.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	hc := t.HTTPClient
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("SSE connect: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		cancel()
		return nil, newAPIError(resp.StatusCode, body)
	}
	return &sseConn{body: resp.Body, reader: bufio.NewReader(resp.Body), cancel: cancel}, nil
}

type sseConn struct {
	body      io.ReadCloser
	reader    *bufio.Reader
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Recv returns the data field of the next complete event. Comment lines are
// keep-alives and never surface.
func (c *sseConn) Recv() ([]byte, error) {
	var data []string
	hasData := false
	for {
		line, err := c.reader.ReadString('\n')
		if err != nil {
			// An event not terminated by a blank line is discarded at EOF.
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				return []byte(strings.Join(data, "\n")), nil
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		// event, id and retry fields are ignored: the payload carries its own type.
		if field == "data" {
			data = append(data, value)
			hasData = true
		}
	}
}

func (c *sseConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.body.Close()
	})
	return err
}

// ============================================================================
// WebSocket
// ============================================================================

// WebSocketTransport reads the same event feeds over a WebSocket. HTTP(S)
// URLs are rewritten to WS(S).
type WebSocketTransport struct {
	HTTPClient *http.Client
	Header     http.Header
}

func (t *WebSocketTransport) Open(ctx context.Context, url string) (Conn, error) {
	wsURL := strings.Replace(url, "https://", "wss://", 1)
	wsURL = strings.Replace(wsURL, "http://", "ws://", 1)

	conn, resp, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: t.HTTPClient,
		HTTPHeader: t.Header,
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &APIError{StatusCode: resp.StatusCode, Detail: err.Error()}
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}
	// Event payloads are small JSON objects; message history replays can be larger.
	conn.SetReadLimit(1 << 20)

	readCtx, cancel := context.WithCancel(context.Background())
	return &wsConn{conn: conn, ctx: readCtx, cancel: cancel}, nil
}

type wsConn struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *wsConn) Recv() ([]byte, error) {
	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			return nil, err
		}
		if typ == websocket.MessageText {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	c.cancel()
	return c.conn.Close(websocket.StatusNormalClosure, "client disconnect")
}
