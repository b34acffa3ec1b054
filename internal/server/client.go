package server

import (
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/roomchat/internal/chat"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	sendBuffer = 256
)

// Client represents a WebSocket client connection in the chat system.
// It carries the connection id the coordinator knows it by, the outgoing
// frame queue and the per-connection rate limiter.
type Client struct {
	id             chat.ConnID
	conn           *websocket.Conn
	send           chan []byte
	hub            *Hub
	addr           string
	closed         bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// NewClient creates a new Client with a fresh connection id. The client's
// send channel is buffered to handle message queuing.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}

	return &Client{
		id:             chat.ConnID(uuid.NewString()),
		conn:           conn,
		send:           make(chan []byte, sendBuffer),
		hub:            hub,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval),
		rateLimit:      cfg.RateLimit,
	}
}

// ID returns the connection id used by the chat coordinator.
func (c *Client) ID() chat.ConnID {
	return c.id
}

// GetSendChan returns the client's send channel for reading outgoing frames.
func (c *Client) GetSendChan() <-chan []byte {
	return c.send
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Warn().Err(err).Str("addr", c.addr).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the read failure at a level matching its cause. Any
// read error ends the read loop.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Warn().Str("addr", c.addr).Int64("limit", c.maxMessageSize).Msg("message exceeded maximum size")
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Info().Str("addr", c.addr).Err(err).Msg("client disconnected")
	case errors.Is(err, io.EOF) || isExpectedCloseError(err):
		log.Info().Str("addr", c.addr).Err(err).Msg("client connection closed")
	case websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig):
		log.Warn().Str("addr", c.addr).Err(err).Msg("unexpected websocket close")
	default:
		log.Warn().Str("addr", c.addr).Err(err).Msg("websocket read error")
	}
}

func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		log.Warn().
			Str("addr", c.addr).
			Int("burst", c.rateLimit.Burst).
			Dur("interval", c.rateLimit.RefillInterval).
			Msg("rate limit exceeded; discarding message")
		return false
	}
	return true
}

// processMessage decodes a raw frame into an event envelope and queues it on
// the hub. It returns false when the frame was dropped.
func (c *Client) processMessage(rawMessage []byte) bool {
	var in chat.Inbound
	if err := json.Unmarshal(rawMessage, &in); err != nil {
		log.Warn().Str("addr", c.addr).Err(err).Msg("invalid event frame")
		return false
	}
	if in.Event == "" {
		log.Warn().Str("addr", c.addr).Msg("event frame without a name")
		return false
	}
	// disconnect is raised by the transport itself when the socket closes.
	if in.Event == chat.EventDisconnect {
		return false
	}

	log.Debug().Str("addr", c.addr).Str("event", in.Event).Msg("received event")
	select {
	case c.hub.inbound <- InboundMessage{Sender: c, Event: in}:
		return true
	case <-c.hub.ctx.Done():
		return false
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Warn().Err(err).Str("addr", c.addr).Msg("error closing connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.checkRateLimit() {
			continue
		}

		c.processMessage(rawMessage)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.closeConnection()
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when the
// pump should stop processing.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleMessage(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error closing connection in writePump")
	}
}

// handleMessage writes an outgoing frame and returns false if the connection
// should be closed
func (c *Client) handleMessage(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error setting write deadline")
		return false
	}

	if !ok {
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			log.Warn().Err(err).Str("addr", c.addr).Msg("error writing close message")
		}
		return false
	}

	return c.writeTextMessage(message)
}

// writeTextMessage writes one event plus whatever else is already queued into
// a single frame, newline separated.
func (c *Client) writeTextMessage(message []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error creating writer")
		return false
	}

	if _, err := w.Write(message); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error writing message")
		return false
	}

	n := len(c.send)
	for i := 0; i < n; i++ {
		queued, ok := <-c.send
		if !ok {
			break
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			log.Warn().Err(err).Str("addr", c.addr).Msg("error writing separator")
			return false
		}
		if _, err := w.Write(queued); err != nil {
			log.Warn().Err(err).Str("addr", c.addr).Msg("error writing queued message")
			return false
		}
	}

	if err := w.Close(); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error closing writer")
		return false
	}
	return true
}

func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		log.Warn().Err(err).Str("addr", c.addr).Msg("error writing ping")
		return false
	}
	return true
}
