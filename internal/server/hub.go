package server

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// Hub owns every WebSocket client and the room membership index. Its Run
// loop is the only goroutine that drives the chat coordinator, so
// registration, inbound events and disconnects are handled one at a time.
// The client and room maps are guarded by a mutex because the delivery
// helpers and stats readers look at them from other goroutines.
type Hub struct {
	clients    map[*Client]bool
	byID       map[chat.ConnID]*Client
	rooms      map[string]map[*Client]struct{}
	inbound    chan InboundMessage
	register   chan *Client
	unregister chan *Client
	router     *chat.Router
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub with its own chat coordinator. The returned Hub is
// ready to manage WebSocket connections once Run is started.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		clients:    make(map[*Client]bool),
		byID:       make(map[chat.ConnID]*Client),
		rooms:      make(map[string]map[*Client]struct{}),
		inbound:    make(chan InboundMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	coordinator := chat.NewCoordinator(h, log.Logger)
	h.router = chat.NewRouterContext(ctx, coordinator, chat.LogSink(log.Logger))
	return h
}

// GetRegisterChan returns the channel used for registering new clients to the hub.
func (h *Hub) GetRegisterChan() chan<- *Client {
	return h.register
}

// GetUnregisterChan returns the channel used for unregistering clients from the hub.
func (h *Hub) GetUnregisterChan() chan<- *Client {
	return h.unregister
}

// GetInboundChan returns the channel client pumps use to queue decoded events.
func (h *Hub) GetInboundChan() chan<- InboundMessage {
	return h.inbound
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.handleRegister(client)

		case client := <-h.unregister:
			if client == nil {
				continue
			}
			h.handleUnregister(client)

		case msg := <-h.inbound:
			if msg.Sender == nil || !h.isRegistered(msg.Sender) {
				continue
			}
			h.router.Dispatch(msg.Sender.id, msg.Event)
		}
	}
}

func (h *Hub) handleRegister(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	h.byID[client.id] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()
	log.Info().Str("addr", client.addr).Str("conn", string(client.id)).Int("clients", clientCount).Msg("client registered")

	if client.conn != nil {
		h.wg.Add(2)
		go func() {
			defer h.wg.Done()
			client.writePump()
		}()
		go func() {
			defer h.wg.Done()
			client.readPump()
		}()
	}

	h.router.Connect(client.id)
}

func (h *Hub) handleUnregister(client *Client) {
	h.mutex.Lock()
	_, ok := h.clients[client]
	if ok {
		h.detachLocked(client)
	}
	clientCount := len(h.clients)
	h.mutex.Unlock()

	if ok {
		close(client.send)
		log.Info().Str("addr", client.addr).Str("conn", string(client.id)).Int("clients", clientCount).Msg("client unregistered")
	}

	// The coordinator keeps the user's room, so the departure is announced
	// to the remaining members only. Clients dropped earlier for a full
	// buffer come through here too.
	h.router.Disconnect(client.id)
}

// detachLocked removes client from every index. Callers hold h.mutex.
func (h *Hub) detachLocked(client *Client) {
	delete(h.clients, client)
	delete(h.byID, client.id)
	for room, members := range h.rooms {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	client.closed = true
}

func (h *Hub) isRegistered(client *Client) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.clients[client]
	return ok
}

// Send delivers env to a single connection.
func (h *Hub) Send(to chat.ConnID, env chat.Envelope) {
	h.mutex.RLock()
	client, ok := h.byID[to]
	h.mutex.RUnlock()
	if !ok {
		return
	}
	h.deliver([]*Client{client}, env)
}

// SendRoom delivers env to every member of room except the given connection.
func (h *Hub) SendRoom(room string, env chat.Envelope, except chat.ConnID) {
	h.deliver(h.getRoomSnapshot(room, except), env)
}

// SendAll delivers env to every registered connection.
func (h *Hub) SendAll(env chat.Envelope) {
	h.deliver(h.getClientSnapshot(), env)
}

// JoinRoom adds the connection to room's membership.
func (h *Hub) JoinRoom(id chat.ConnID, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.byID[id]
	if !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[client] = struct{}{}
}

// LeaveRoom removes the connection from room's membership.
func (h *Hub) LeaveRoom(id chat.ConnID, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	client, ok := h.byID[id]
	if !ok {
		return
	}
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// RoomSize returns the number of connections currently in room.
func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// Stats reports the number of non-empty rooms and registered clients.
func (h *Hub) Stats() (rooms, clients int) {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms), len(h.clients)
}

func (h *Hub) deliver(clients []*Client, env chat.Envelope) {
	if len(clients) == 0 {
		return
	}
	payload, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", env.Event).Msg("failed to encode outbound event")
		return
	}

	log.Debug().Str("event", env.Event).Int("targets", len(clients)).Msg("delivering event")
	clientsToRemove := h.broadcastToClients(clients, payload)
	h.removeFailedClients(clientsToRemove)
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("recovered from panic in safeSend")
		}
	}()

	// Hold the lock during the entire send operation so the channel cannot
	// be closed underneath us.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// getClientSnapshot returns a thread-safe snapshot of all current clients
func (h *Hub) getClientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// getRoomSnapshot returns the members of room, minus the excluded connection
func (h *Hub) getRoomSnapshot(room string, except chat.ConnID) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.rooms[room]
	clients := make([]*Client, 0, len(members))
	for client := range members {
		if except != "" && client.id == except {
			continue
		}
		clients = append(clients, client)
	}
	return clients
}

// broadcastToClients queues the payload on every client and returns the ones
// whose buffers were full
func (h *Hub) broadcastToClients(clients []*Client, payload []byte) []*Client {
	var clientsToRemove []*Client

	for _, client := range clients {
		if !h.safeSend(client, payload) {
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	return clientsToRemove
}

// removeFailedClients drops clients that could not keep up. Closing the send
// channel makes the write pump close the socket, which ends the read pump
// and brings the client back through unregister for the disconnect event.
func (h *Hub) removeFailedClients(clientsToRemove []*Client) {
	if len(clientsToRemove) == 0 {
		return
	}

	h.mutex.Lock()
	var channelsToClose []chan []byte
	for _, client := range clientsToRemove {
		if _, exists := h.clients[client]; exists {
			h.detachLocked(client)
			channelsToClose = append(channelsToClose, client.send)
			log.Warn().Str("addr", client.addr).Str("conn", string(client.id)).Msg("client removed due to full send buffer")
		}
	}
	h.mutex.Unlock()

	for _, ch := range channelsToClose {
		close(ch)
	}
}

// shutdownClients detaches every client and closes its send channel, which
// makes each write pump send a close frame and exit. Closing the socket as
// well ends the read pumps.
func (h *Hub) shutdownClients() {
	log.Info().Msg("shutting down all client connections")

	h.mutex.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		h.detachLocked(client)
		clients = append(clients, client)
	}
	h.mutex.Unlock()

	for _, client := range clients {
		close(client.send)
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			log.Warn().Err(err).Str("addr", client.addr).Msg("error closing client connection")
		}
	}

	log.Info().Int("clients", len(clients)).Msg("closed client connections")
}

// Shutdown stops the event loop, closes every client and waits for the pump
// goroutines, giving up after timeout.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
