package chat

import (
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// Coordinator is the presence and room registry. It maps connections to
// users and tracks which room names are active; membership itself lives in
// the Transport.
type Coordinator struct {
	transport Transport
	users     map[ConnID]*User
	rooms     map[string]struct{}
	nextSeq   uint64
	logger    zerolog.Logger
}

// NewCoordinator returns an empty coordinator that delivers through t.
func NewCoordinator(t Transport, logger zerolog.Logger) *Coordinator {
	return &Coordinator{
		transport: t,
		users:     make(map[ConnID]*User),
		rooms:     make(map[string]struct{}),
		logger:    logger.With().Str("component", "coordinator").Logger(),
	}
}

// Connect pushes the initial state to a freshly connected client.
func (c *Coordinator) Connect(id ConnID) {
	c.transport.Send(id, Envelope{Event: EventRoomList, Data: c.RoomCounts()})
	c.broadcastUsers()
}

// SetName binds username to the connection with a new color and no room.
func (c *Coordinator) SetName(id ConnID, username string) {
	name := Sanitize(strings.TrimSpace(username))
	if name == "" {
		c.sendError(id, "Choose a username.")
		return
	}

	left := false
	if prev := c.users[id]; prev != nil && prev.Room != "" {
		c.leaveRoom(id, prev, true)
		left = true
	}

	c.users[id] = c.newUser(name)
	c.logger.Debug().Str("conn", string(id)).Str("username", name).Msg("name set")
	if left {
		c.broadcastRooms()
	}
	c.broadcastUsers()
}

// Join places the connection in room, replacing whatever room it was in.
// For private rooms target names the invitee; when empty it is recovered
// from the room name.
func (c *Coordinator) Join(id ConnID, username, room string, private bool, target string) {
	name := Sanitize(strings.TrimSpace(username))
	cleanRoom := Sanitize(strings.TrimSpace(room))
	if name == "" || cleanRoom == "" {
		c.sendError(id, "Choose a username and room.")
		return
	}

	var invitee string
	if private {
		invitee = Sanitize(strings.TrimSpace(target))
		if invitee == "" {
			invitee = privateTarget(cleanRoom, name)
		}
		if invitee == "" {
			c.sendError(id, "Choose someone to chat with.")
			return
		}
		cleanRoom = NewPrivateRoom(name, invitee).Name()
	}

	prev := c.users[id]
	if prev != nil && prev.Room != "" && prev.Room != cleanRoom {
		c.leaveRoom(id, prev, false)
	}

	created := c.transport.RoomSize(cleanRoom) == 0

	user := c.newUser(name)
	if prev != nil {
		user.seq = prev.seq
	}
	user.Room = cleanRoom
	user.Private = private
	c.users[id] = user
	c.rooms[cleanRoom] = struct{}{}
	c.transport.JoinRoom(id, cleanRoom)

	c.transport.Send(id, systemMessage("Joined room: "+cleanRoom))
	c.transport.SendRoom(cleanRoom, systemMessage(name+" joined."), id)
	c.logger.Info().Str("conn", string(id)).Str("username", name).Str("room", cleanRoom).Msg("joined room")

	if private && created {
		c.notifyInvitee(id, name, invitee)
	}

	c.broadcastRooms()
	c.broadcastUsers()
}

// Leave takes the connection out of its room. The user record is kept with
// no room so the name stays listed until disconnect.
func (c *Coordinator) Leave(id ConnID) {
	user := c.users[id]
	if user == nil || user.Room == "" {
		return
	}
	c.leaveRoom(id, user, true)
	c.broadcastRooms()
	c.broadcastUsers()
}

// Disconnect forgets the connection. Calling it again for the same id does
// nothing.
func (c *Coordinator) Disconnect(id ConnID) {
	user := c.users[id]
	if user == nil {
		return
	}

	if room := user.Room; room != "" {
		c.transport.SendRoom(room, systemMessage(user.Username+" left."), id)
		c.transport.LeaveRoom(id, room)
		c.pruneRoom(room)
	}
	delete(c.users, id)
	c.logger.Info().Str("conn", string(id)).Str("username", user.Username).Msg("user disconnected")

	c.broadcastRooms()
	c.broadcastUsers()
}

// User returns a copy of the user bound to id.
func (c *Coordinator) User(id ConnID) (User, bool) {
	u, ok := c.users[id]
	if !ok {
		return User{}, false
	}
	return *u, true
}

// Rooms returns the active room names in sorted order.
func (c *Coordinator) Rooms() []string {
	names := make([]string, 0, len(c.rooms))
	for name := range c.rooms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Users returns the connections with a user record, oldest first.
func (c *Coordinator) Users() []ConnID {
	ids := make([]ConnID, 0, len(c.users))
	for id := range c.users {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		return c.users[ids[i]].seq < c.users[ids[j]].seq
	})
	return ids
}

// lookup finds the oldest connection bound to username, skipping exclude.
func (c *Coordinator) lookup(username string, exclude ConnID) (ConnID, bool) {
	for _, id := range c.Users() {
		if id != exclude && c.users[id].Username == username {
			return id, true
		}
	}
	return "", false
}

func (c *Coordinator) leaveRoom(id ConnID, user *User, announceToSelf bool) {
	room := user.Room
	if announceToSelf {
		c.transport.Send(id, systemMessage("You left the chat room."))
	}
	c.transport.SendRoom(room, systemMessage(user.Username+" left."), id)
	c.transport.LeaveRoom(id, room)
	c.pruneRoom(room)

	user.Room = ""
	user.Private = false
	c.logger.Info().Str("conn", string(id)).Str("username", user.Username).Str("room", room).Msg("left room")
}

func (c *Coordinator) pruneRoom(room string) {
	if c.transport.RoomSize(room) == 0 {
		delete(c.rooms, room)
	}
}

func (c *Coordinator) newUser(name string) *User {
	c.nextSeq++
	return &User{Username: name, Color: RandomColor(), seq: c.nextSeq}
}

func (c *Coordinator) sendError(id ConnID, msg string) {
	c.transport.Send(id, Envelope{Event: EventErrorMessage, Data: msg})
}

func systemMessage(msg string) Envelope {
	return Envelope{Event: EventMessage, Data: ChatMessage{Username: SystemName, Message: msg}}
}
