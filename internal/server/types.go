package server

import (
	"strings"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// InboundMessage is a decoded event from a client, queued for the hub loop.
type InboundMessage struct {
	Sender *Client
	Event  chat.Inbound
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
