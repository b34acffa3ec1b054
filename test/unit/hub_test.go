// Package unit contains black-box unit tests for the room chat server.
//
// These tests exercise exported pieces of the server package in isolation,
// without a listening HTTP server. Clients are created without a socket so
// the hub never starts pump goroutines for them and their queued frames can
// be read straight from the send channel.
package unit

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Tyrowin/roomchat/internal/chat"
	"github.com/Tyrowin/roomchat/internal/server"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// nextFrame reads one queued frame from the client or fails after a second.
func nextFrame(t *testing.T, client *server.Client) frame {
	t.Helper()
	select {
	case raw, ok := <-client.GetSendChan():
		if !ok {
			t.Fatal("send channel closed")
		}
		var f frame
		if err := json.Unmarshal(raw, &f); err != nil {
			t.Fatalf("Failed to decode frame %q: %v", raw, err)
		}
		return f
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for a frame")
	}
	return frame{}
}

// waitForEvent skips frames until one named event arrives.
func waitForEvent(t *testing.T, client *server.Client, event string) frame {
	t.Helper()
	for i := 0; i < 32; i++ {
		if f := nextFrame(t, client); f.Event == event {
			return f
		}
	}
	t.Fatalf("Event %s never arrived", event)
	return frame{}
}

func emit(t *testing.T, hub *server.Hub, client *server.Client, event string, data any) {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("Failed to encode payload: %v", err)
	}
	select {
	case hub.GetInboundChan() <- server.InboundMessage{Sender: client, Event: chat.Inbound{Event: event, Data: raw}}:
	case <-time.After(time.Second):
		t.Fatalf("Hub did not accept %s", event)
	}
}

func startHub(t *testing.T) *server.Hub {
	t.Helper()
	hub := server.NewHub()
	go hub.Run()
	t.Cleanup(func() {
		if err := hub.Shutdown(time.Second); err != nil {
			t.Errorf("Hub shutdown failed: %v", err)
		}
	})
	return hub
}

// TestNewHub verifies that NewHub returns a hub with usable channels.
func TestNewHub(t *testing.T) {
	hub := server.NewHub()

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.GetRegisterChan() == nil || hub.GetUnregisterChan() == nil || hub.GetInboundChan() == nil {
		t.Error("Hub channels must not be nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("Expected a new hub to have no clients, got %d", hub.ClientCount())
	}
}

// TestHubIgnoresNilRegistration verifies that a nil registration does not
// stop the event loop.
func TestHubIgnoresNilRegistration(t *testing.T) {
	hub := startHub(t)

	select {
	case hub.GetRegisterChan() <- nil:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Hub did not accept nil registration")
	}

	client := server.NewClient(nil, hub, "127.0.0.1:1")
	hub.GetRegisterChan() <- client
	if f := nextFrame(t, client); f.Event != chat.EventRoomList {
		t.Errorf("Expected room-list after registering, got %s", f.Event)
	}
}

// TestHubRoomConversation drives two registered clients through naming,
// joining and chatting and checks what each one receives.
func TestHubRoomConversation(t *testing.T) {
	hub := startHub(t)
	bob := server.NewClient(nil, hub, "127.0.0.1:1")
	amy := server.NewClient(nil, hub, "127.0.0.1:2")
	hub.GetRegisterChan() <- bob
	hub.GetRegisterChan() <- amy

	emit(t, hub, bob, chat.EventJoinRoom, map[string]string{"username": "bob", "room": "general"})
	emit(t, hub, amy, chat.EventJoinRoom, map[string]string{"username": "amy", "room": "general"})

	var joined chat.ChatMessage
	if err := json.Unmarshal(waitForEvent(t, bob, chat.EventMessage).Data, &joined); err != nil {
		t.Fatal(err)
	}
	if joined.Message != "Joined room: general" {
		t.Errorf("Expected join confirmation, got %q", joined.Message)
	}
	if err := json.Unmarshal(waitForEvent(t, bob, chat.EventMessage).Data, &joined); err != nil {
		t.Fatal(err)
	}
	if joined.Message != "amy joined." {
		t.Errorf("Expected join announcement, got %q", joined.Message)
	}

	emit(t, hub, bob, chat.EventSendMessage, map[string]string{"message": "hi"})

	for _, client := range []*server.Client{bob, amy} {
		for {
			f := waitForEvent(t, client, chat.EventMessage)
			var msg chat.ChatMessage
			if err := json.Unmarshal(f.Data, &msg); err != nil {
				t.Fatal(err)
			}
			if msg.Username == chat.SystemName {
				continue
			}
			if msg.Username != "bob" || msg.Message != "hi" || msg.Color == "" {
				t.Errorf("Unexpected chat message %+v", msg)
			}
			break
		}
	}

	if rooms, clients := hub.Stats(); rooms != 1 || clients != 2 {
		t.Errorf("Expected 1 room and 2 clients, got %d and %d", rooms, clients)
	}
}

// TestHubUnregisterClosesSendChannel verifies that unregistering a client
// closes its queue and updates the count.
func TestHubUnregisterClosesSendChannel(t *testing.T) {
	hub := startHub(t)
	client := server.NewClient(nil, hub, "127.0.0.1:1")
	hub.GetRegisterChan() <- client
	hub.GetUnregisterChan() <- client

	deadline := time.After(time.Second)
	for {
		select {
		case _, ok := <-client.GetSendChan():
			if !ok {
				if hub.ClientCount() != 0 {
					t.Errorf("Expected no clients, got %d", hub.ClientCount())
				}
				return
			}
		case <-deadline:
			t.Fatal("Send channel was not closed")
		}
	}
}

// TestHubShutdownStopsRun verifies that Run returns once Shutdown is called.
func TestHubShutdownStopsRun(t *testing.T) {
	hub := server.NewHub()

	stopped := make(chan struct{})
	go func() {
		hub.Run()
		close(stopped)
	}()

	if err := hub.Shutdown(time.Second); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}

	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Shutdown")
	}
}

// TestConcurrentInbound verifies that many goroutines can queue events at
// once without racing the coordinator.
func TestConcurrentInbound(t *testing.T) {
	hub := startHub(t)

	clients := make([]*server.Client, 10)
	for i := range clients {
		clients[i] = server.NewClient(nil, hub, "127.0.0.1:1")
		hub.GetRegisterChan() <- clients[i]
	}

	done := make(chan struct{}, len(clients))
	for _, client := range clients {
		go func(client *server.Client) {
			defer func() { done <- struct{}{} }()
			raw, _ := json.Marshal(map[string]string{"username": "user", "room": "busy"})
			hub.GetInboundChan() <- server.InboundMessage{Sender: client, Event: chat.Inbound{Event: chat.EventJoinRoom, Data: raw}}
		}(client)
	}

	for range clients {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Concurrent inbound events timed out")
		}
	}
}
