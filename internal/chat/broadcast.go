package chat

import (
	"fmt"
	"net/url"
	"strings"
)

// SendMessage fans a chat message out to every member of the sender's room,
// the sender included.
func (c *Coordinator) SendMessage(id ConnID, text string) {
	user := c.users[id]
	switch {
	case user == nil:
		c.sendError(id, "Choose a username first.")
		return
	case user.Room == "":
		c.sendError(id, "Join a room first.")
		return
	}

	message := Sanitize(text)
	if strings.TrimSpace(message) == "" {
		c.sendError(id, "Write a message first.")
		return
	}

	c.fanOut(user, message)
}

// SendFileMessage announces an uploaded file to the sender's room as a
// download link.
func (c *Coordinator) SendFileMessage(id ConnID, filename, originalName string) {
	user := c.users[id]
	if user == nil || user.Room == "" {
		c.sendError(id, "Choose a username and room first.")
		return
	}

	cleanFile := Sanitize(strings.TrimSpace(filename))
	if cleanFile == "" {
		c.sendError(id, "Choose a file before sending.")
		return
	}
	cleanOriginal := Sanitize(strings.TrimSpace(originalName))
	if cleanOriginal == "" {
		cleanOriginal = cleanFile
	}

	link := fmt.Sprintf(`<a href="/uploads/%s" download="%s">%s</a>`,
		url.PathEscape(cleanFile), cleanOriginal, cleanOriginal)
	c.fanOut(user, link)
}

// StartTyping tells the other members of room that the sender is typing.
func (c *Coordinator) StartTyping(id ConnID, room string) {
	c.relayTyping(id, room, EventTyping)
}

// StopTyping tells the other members of room that the sender stopped.
func (c *Coordinator) StopTyping(id ConnID, room string) {
	c.relayTyping(id, room, EventStopTyping)
}

// RoomCounts reports the member count of every active room.
func (c *Coordinator) RoomCounts() map[string]int {
	counts := make(map[string]int, len(c.rooms))
	for room := range c.rooms {
		counts[room] = c.transport.RoomSize(room)
	}
	return counts
}

// UserList lists every known username, oldest first.
func (c *Coordinator) UserList() []UserEntry {
	ids := c.Users()
	list := make([]UserEntry, 0, len(ids))
	for _, id := range ids {
		list = append(list, UserEntry{Username: c.users[id].Username})
	}
	return list
}

func (c *Coordinator) fanOut(user *User, message string) {
	c.transport.SendRoom(user.Room, Envelope{
		Event: EventMessage,
		Data:  ChatMessage{Username: user.Username, Message: message, Color: user.Color},
	}, "")
}

func (c *Coordinator) relayTyping(id ConnID, room, event string) {
	cleanRoom := Sanitize(strings.TrimSpace(room))
	if cleanRoom == "" {
		return
	}
	if user := c.users[id]; user != nil && IsPrivateRoom(cleanRoom) {
		if peer := privateTarget(cleanRoom, user.Username); peer != "" {
			cleanRoom = NewPrivateRoom(user.Username, peer).Name()
		}
	}
	c.transport.SendRoom(cleanRoom, Envelope{Event: event}, id)
}

func (c *Coordinator) broadcastRooms() {
	c.transport.SendAll(Envelope{Event: EventRoomList, Data: c.RoomCounts()})
}

func (c *Coordinator) broadcastUsers() {
	c.transport.SendAll(Envelope{Event: EventUserList, Data: c.UserList()})
}
