package chat

import (
	"sort"
	"testing"

	"github.com/rs/zerolog"
)

// recordingTransport keeps per-connection inboxes and a room index, the way
// the hub does, without any sockets.
type recordingTransport struct {
	conns []ConnID
	inbox map[ConnID][]Envelope
	rooms map[string]map[ConnID]struct{}
}

func newRecordingTransport(ids ...ConnID) *recordingTransport {
	t := &recordingTransport{
		inbox: make(map[ConnID][]Envelope),
		rooms: make(map[string]map[ConnID]struct{}),
	}
	for _, id := range ids {
		t.connect(id)
	}
	return t
}

func (t *recordingTransport) connect(id ConnID) {
	t.conns = append(t.conns, id)
	t.inbox[id] = nil
}

func (t *recordingTransport) Send(to ConnID, env Envelope) {
	if _, ok := t.inbox[to]; ok {
		t.inbox[to] = append(t.inbox[to], env)
	}
}

func (t *recordingTransport) SendRoom(room string, env Envelope, except ConnID) {
	members := make([]string, 0, len(t.rooms[room]))
	for id := range t.rooms[room] {
		members = append(members, string(id))
	}
	sort.Strings(members)
	for _, id := range members {
		if ConnID(id) != except {
			t.Send(ConnID(id), env)
		}
	}
}

func (t *recordingTransport) SendAll(env Envelope) {
	for _, id := range t.conns {
		t.Send(id, env)
	}
}

func (t *recordingTransport) JoinRoom(id ConnID, room string) {
	if t.rooms[room] == nil {
		t.rooms[room] = make(map[ConnID]struct{})
	}
	t.rooms[room][id] = struct{}{}
}

func (t *recordingTransport) LeaveRoom(id ConnID, room string) {
	delete(t.rooms[room], id)
	if len(t.rooms[room]) == 0 {
		delete(t.rooms, room)
	}
}

func (t *recordingTransport) RoomSize(room string) int {
	return len(t.rooms[room])
}

// drop simulates the socket going away: membership disappears at once.
func (t *recordingTransport) drop(id ConnID) {
	for room := range t.rooms {
		t.LeaveRoom(id, room)
	}
}

func (t *recordingTransport) reset() {
	for id := range t.inbox {
		t.inbox[id] = nil
	}
}

func (t *recordingTransport) events(id ConnID, event string) []Envelope {
	var out []Envelope
	for _, env := range t.inbox[id] {
		if env.Event == event {
			out = append(out, env)
		}
	}
	return out
}

func (t *recordingTransport) lastRoomList(tb testing.TB, id ConnID) map[string]int {
	tb.Helper()
	lists := t.events(id, EventRoomList)
	if len(lists) == 0 {
		tb.Fatalf("connection %s received no room-list", id)
	}
	return lists[len(lists)-1].Data.(map[string]int)
}

func newTestCoordinator(ids ...ConnID) (*Coordinator, *recordingTransport) {
	tr := newRecordingTransport(ids...)
	return NewCoordinator(tr, zerolog.Nop()), tr
}
