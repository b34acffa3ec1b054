package server

import (
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

var (
	hub     *Hub
	hubOnce sync.Once
)

// GetHub returns the process-wide hub, creating it on first use.
func GetHub() *Hub {
	hubOnce.Do(func() {
		hub = NewHub()
	})
	return hub
}

// ServeWS upgrades the request to a WebSocket and registers the resulting
// client with h. Non-GET requests are refused with 405.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, h, r.RemoteAddr)

	// The hub launches the pump goroutines once the client is registered.
	select {
	case h.register <- client:
	case <-h.ctx.Done():
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		_ = conn.Close()
	}
}

// WebSocketHandler serves WebSocket upgrades against the process-wide hub.
func WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	GetHub().ServeWS(w, r)
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Room chat server is running!")
}
