package chat

import "encoding/json"

// ConnID identifies a single client session. The transport assigns it when
// the connection is established and it is never reused.
type ConnID string

// Inbound event names.
const (
	EventSetName         = "set-name"
	EventJoinRoom        = "join-room"
	EventLeaveRoom       = "leave-room"
	EventDisconnect      = "disconnect"
	EventSendMessage     = "send-message"
	EventSendFileMessage = "send-file-message"
	EventDeclinePrivate  = "decline-private-chat"
)

// Outbound event names. EventTyping and EventStopTyping travel both ways.
const (
	EventMessage             = "message"
	EventErrorMessage        = "error-message"
	EventRoomList            = "room-list"
	EventUserList            = "user-list"
	EventPrivateNotification = "private-notification"
	EventTyping              = "typing"
	EventStopTyping          = "stop-typing"
)

// SystemName is the username attached to coordinator-generated messages.
const SystemName = "System"

// User is the presence record bound to a connection.
type User struct {
	Username string
	Color    string
	Room     string
	Private  bool

	seq uint64
}

// Envelope is a named outbound event with an optional payload.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Inbound is a named event received from a connection. Data is decoded by
// the handler bound to Event.
type Inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ChatMessage is the payload of a "message" event.
type ChatMessage struct {
	Username string `json:"username"`
	Message  string `json:"message"`
	Color    string `json:"color,omitempty"`
}

// UserEntry is one element of a "user-list" event.
type UserEntry struct {
	Username string `json:"username"`
}

type setNamePayload struct {
	Username string `json:"username"`
}

type joinRoomPayload struct {
	Username string `json:"username"`
	Room     string `json:"room"`
	Private  bool   `json:"private,omitempty"`
	Target   string `json:"target,omitempty"`
}

type sendMessagePayload struct {
	Message string `json:"message"`
}

type fileMessagePayload struct {
	Filename     string `json:"filename"`
	OriginalName string `json:"originalname"`
}

type typingPayload struct {
	Room string `json:"room"`
}

// declinePayload accepts both field names; browser clients in the wild send
// "inviter" while the protocol documents "sender".
type declinePayload struct {
	Sender  string `json:"sender"`
	Inviter string `json:"inviter"`
}

// Transport delivers envelopes to connections and owns room membership.
// An empty except ConnID excludes nobody.
type Transport interface {
	Send(to ConnID, env Envelope)
	SendRoom(room string, env Envelope, except ConnID)
	SendAll(env Envelope)
	JoinRoom(id ConnID, room string)
	LeaveRoom(id ConnID, room string)
	RoomSize(room string) int
}
