// Package testhelpers provides common utilities and helper functions for testing the room chat server.
//
// It wraps test server setup, plain HTTP requests and an event-aware WebSocket
// client that understands the {"event","data"} envelopes the server sends,
// including frames that batch several envelopes separated by newlines.
package testhelpers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/roomchat/internal/server"
)

// TestOrigin is the origin test clients present; it is on the default allowlist.
const TestOrigin = "http://localhost:8080"

// DefaultWait bounds how long helpers wait for an expected event.
const DefaultWait = 2 * time.Second

// StartChatServer runs a fresh hub behind an httptest server using cfg, or
// the defaults when cfg is nil. Everything is torn down with the test.
func StartChatServer(t *testing.T, cfg *server.Config) (*server.Hub, *httptest.Server) {
	t.Helper()

	if cfg == nil {
		cfg = server.NewConfig()
	}
	if cfg.UploadDir == "" || cfg.UploadDir == server.NewConfig().UploadDir {
		cfg.UploadDir = t.TempDir()
	}
	server.SetConfig(cfg)

	hub := server.NewHub()
	go hub.Run()

	ts := httptest.NewServer(server.NewRouter(hub))
	t.Cleanup(func() {
		ts.Close()
		_ = hub.Shutdown(2 * time.Second)
		server.SetConfig(nil)
	})
	return hub, ts
}

// WebSocketURL turns an http test server URL into its /ws endpoint.
func WebSocketURL(serverURL string) string {
	return "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
}

// AssertStatusCode checks if the HTTP response has the expected status code.
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

// AssertContentType checks that the Content-Type header starts with expected.
func AssertContentType(t *testing.T, resp *http.Response, expected string) {
	t.Helper()
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, expected) {
		t.Errorf("Expected content type %s, got %s", expected, contentType)
	}
}

// MakeRequest creates and executes an HTTP request, returning the response.
// It includes a 5-second timeout and fails the test if the request cannot be
// created or executed successfully.
func MakeRequest(t *testing.T, method, url string) *http.Response {
	t.Helper()

	client := &http.Client{
		Timeout: 5 * time.Second,
	}

	req, err := http.NewRequest(method, url, http.NoBody)
	if err != nil {
		t.Fatalf("Failed to create request: %v", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}

	return resp
}

// ConnectWebSocket dials url presenting the given Origin header. An empty
// origin sends no header at all.
func ConnectWebSocket(url, origin string) (*websocket.Conn, *http.Response, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 5 * time.Second,
	}

	headers := http.Header{}
	if origin != "" {
		headers.Set("Origin", origin)
	}

	conn, resp, err := dialer.Dial(url, headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	return conn, resp, err
}

// Envelope is a received server event with its payload left undecoded.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Decode unmarshals the payload into v.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Data, v)
}

// Text returns the payload as a string, for events whose data is a bare string.
func (e Envelope) Text() string {
	var s string
	_ = json.Unmarshal(e.Data, &s)
	return s
}

// ChatClient is a test client speaking the event envelope protocol.
type ChatClient struct {
	Conn    *websocket.Conn
	pending []Envelope
}

// DialChat connects to the chat endpoint with the test origin and registers
// the connection for cleanup.
func DialChat(t *testing.T, serverURL string) *ChatClient {
	t.Helper()

	conn, _, err := ConnectWebSocket(WebSocketURL(serverURL), TestOrigin)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &ChatClient{Conn: conn}
}

// Emit sends one event with the given payload.
func (c *ChatClient) Emit(t *testing.T, event string, data any) {
	t.Helper()

	frame := map[string]any{"event": event}
	if data != nil {
		frame["data"] = data
	}
	if err := c.Conn.WriteJSON(frame); err != nil {
		t.Fatalf("Failed to send %s: %v", event, err)
	}
}

// Next returns the next envelope, reading a new frame when nothing is
// buffered. A read error leaves the connection unusable.
func (c *ChatClient) Next(timeout time.Duration) (Envelope, error) {
	for len(c.pending) == 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
			return Envelope{}, err
		}
		_, raw, err := c.Conn.ReadMessage()
		if err != nil {
			return Envelope{}, err
		}
		for _, line := range bytes.Split(raw, []byte{'\n'}) {
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			var env Envelope
			if err := json.Unmarshal(line, &env); err != nil {
				return Envelope{}, fmt.Errorf("decode frame %q: %w", line, err)
			}
			c.pending = append(c.pending, env)
		}
	}

	env := c.pending[0]
	c.pending = c.pending[1:]
	return env, nil
}

// WaitFor skips envelopes until one named event satisfies match (nil matches
// anything) and returns it. Skipped envelopes are returned as the second value.
func (c *ChatClient) WaitFor(t *testing.T, event string, match func(Envelope) bool) (Envelope, []Envelope) {
	t.Helper()

	var skipped []Envelope
	deadline := time.Now().Add(DefaultWait)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			t.Fatalf("Timed out waiting for %s", event)
		}
		env, err := c.Next(remaining)
		if err != nil {
			t.Fatalf("Failed while waiting for %s: %v", event, err)
		}
		if env.Event == event && (match == nil || match(env)) {
			return env, skipped
		}
		skipped = append(skipped, env)
	}
}

// WaitForText waits for an event whose string payload equals text.
func (c *ChatClient) WaitForText(t *testing.T, event, text string) Envelope {
	t.Helper()
	env, _ := c.WaitFor(t, event, func(e Envelope) bool { return e.Text() == text })
	return env
}

// CloseWebSocket gracefully closes a WebSocket connection.
func CloseWebSocket(conn *websocket.Conn) error {
	err := conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return err
	}
	return conn.Close()
}
