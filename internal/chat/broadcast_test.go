package chat

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoordinator_SendMessageWithoutUser(t *testing.T) {
	c, tr := newTestCoordinator("x", "y")
	c.Join("y", "amy", "general", false, "")
	tr.reset()

	c.SendMessage("x", "hello")

	assert.Equal(t, []Envelope{{Event: EventErrorMessage, Data: "Choose a username first."}}, tr.inbox["x"])
	assert.Empty(t, tr.inbox["y"])
}

func TestCoordinator_SendMessageValidation(t *testing.T) {
	c, tr := newTestCoordinator("x")
	c.SetName("x", "bob")
	tr.reset()

	c.SendMessage("x", "hello")
	c.Join("x", "bob", "general", false, "")
	tr.reset()
	c.SendMessage("x", "   ")

	errs := tr.events("x", EventErrorMessage)
	require.Len(t, errs, 1)
	assert.Equal(t, "Write a message first.", errs[0].Data)
	assert.Empty(t, tr.events("x", EventMessage))
}

func TestCoordinator_SendMessageWithoutRoom(t *testing.T) {
	c, tr := newTestCoordinator("x")
	c.SetName("x", "bob")
	tr.reset()

	c.SendMessage("x", "hello")

	assert.Equal(t, []Envelope{{Event: EventErrorMessage, Data: "Join a room first."}}, tr.inbox["x"])
}

func TestCoordinator_SendMessageReachesWholeRoom(t *testing.T) {
	c, tr := newTestCoordinator("x", "y", "z")
	c.SetName("x", "bob")
	c.Join("x", "bob", "general", false, "")
	c.SetName("y", "amy")
	c.Join("y", "amy", "general", false, "")
	c.Join("z", "eve", "elsewhere", false, "")
	tr.reset()

	c.SendMessage("x", "hi")

	bob, _ := c.User("x")
	want := Envelope{Event: EventMessage, Data: ChatMessage{Username: "bob", Message: "hi", Color: bob.Color}}
	assert.Equal(t, []Envelope{want}, tr.inbox["x"])
	assert.Equal(t, []Envelope{want}, tr.inbox["y"])
	assert.Empty(t, tr.inbox["z"])
}

func TestCoordinator_SendMessageSanitizes(t *testing.T) {
	c, tr := newTestCoordinator("x")
	c.Join("x", "bob", "general", false, "")
	tr.reset()

	c.SendMessage("x", "<script>document.cookie</script>hey <b>you</b>")

	msgs := tr.events("x", EventMessage)
	require.Len(t, msgs, 1)
	body := msgs[0].Data.(ChatMessage).Message
	assert.NotContains(t, body, "<script")
	assert.Equal(t, "hey you", body)
}

func TestCoordinator_SendFileMessage(t *testing.T) {
	c, tr := newTestCoordinator("x", "y")
	c.Join("x", "bob", "files", false, "")
	c.Join("y", "amy", "files", false, "")
	tr.reset()

	c.SendFileMessage("x", "3f2a", `report"><script>x</script>.pdf`)

	msgs := tr.events("y", EventMessage)
	require.Len(t, msgs, 1)
	body := msgs[0].Data.(ChatMessage).Message
	assert.True(t, strings.HasPrefix(body, `<a href="/uploads/3f2a" download="`), body)
	assert.NotContains(t, body, "<script")
	assert.Equal(t, "bob", msgs[0].Data.(ChatMessage).Username)
	assert.Len(t, tr.events("x", EventMessage), 1)
}

func TestCoordinator_SendFileMessageValidation(t *testing.T) {
	c, tr := newTestCoordinator("x")

	c.SendFileMessage("x", "abc", "a.txt")
	c.Join("x", "bob", "files", false, "")
	tr.reset()
	c.SendFileMessage("x", "", "a.txt")

	assert.Equal(t, []Envelope{{Event: EventErrorMessage, Data: "Choose a file before sending."}}, tr.inbox["x"])
}

func TestCoordinator_Typing(t *testing.T) {
	c, tr := newTestCoordinator("x", "y", "z")
	c.Join("x", "bob", "general", false, "")
	c.Join("y", "amy", "general", false, "")
	c.Join("z", "eve", "other", false, "")
	tr.reset()

	c.StartTyping("x", "general")
	c.StopTyping("x", "general")
	c.StartTyping("x", "")

	assert.Empty(t, tr.inbox["x"])
	assert.Empty(t, tr.inbox["z"])
	assert.Equal(t, []Envelope{{Event: EventTyping}, {Event: EventStopTyping}}, tr.inbox["y"])
}

func TestCoordinator_TypingInPrivateRoomUsesCanonicalName(t *testing.T) {
	c, tr := newTestCoordinator("b", "a")
	c.SetName("a", "anna")
	c.Join("b", "zed", "private-zed-anna", true, "")
	c.Join("a", "anna", "private-zed-anna", true, "")
	tr.reset()

	c.StartTyping("b", "private-zed-anna")

	assert.Equal(t, []Envelope{{Event: EventTyping}}, tr.inbox["a"])
}

func TestCoordinator_RoomCounts(t *testing.T) {
	c, _ := newTestCoordinator("x", "y", "z")
	c.Join("x", "a", "one", false, "")
	c.Join("y", "b", "one", false, "")
	c.Join("z", "c", "two", false, "")

	assert.Equal(t, map[string]int{"one": 2, "two": 1}, c.RoomCounts())
}
