package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownEvent is reported for inbound events with no binding.
var ErrUnknownEvent = errors.New("unknown event")

// Router dispatches inbound events to coordinator operations. Every binding
// is wrapped with Contain.
type Router struct {
	ctx      context.Context
	coord    *Coordinator
	sink     FaultSink
	handlers map[string]Handler
}

// NewRouter binds the inbound events to coord.
func NewRouter(coord *Coordinator, sink FaultSink) *Router {
	return NewRouterContext(context.Background(), coord, sink)
}

// NewRouterContext is NewRouter with deferred handler outcomes watched only
// until ctx ends.
func NewRouterContext(ctx context.Context, coord *Coordinator, sink FaultSink) *Router {
	r := &Router{
		ctx:      ctx,
		coord:    coord,
		sink:     sink,
		handlers: make(map[string]Handler),
	}

	r.bind(EventSetName, r.setName)
	r.bind(EventJoinRoom, r.joinRoom)
	r.bind(EventLeaveRoom, r.leaveRoom)
	r.bind(EventDisconnect, r.disconnect)
	r.bind(EventSendMessage, r.sendMessage)
	r.bind(EventSendFileMessage, r.sendFileMessage)
	r.bind(EventTyping, r.typing)
	r.bind(EventStopTyping, r.stopTyping)
	r.bind(EventDeclinePrivate, r.declinePrivate)

	return r
}

// Coordinator returns the coordinator the router drives.
func (r *Router) Coordinator() *Coordinator {
	return r.coord
}

// Connect runs the new-connection snapshot push.
func (r *Router) Connect(id ConnID) {
	ContainContext(r.ctx, "connect", func(id ConnID, _ json.RawMessage) Result {
		r.coord.Connect(id)
		return Done()
	}, r.sink)(id, nil)
}

// Disconnect dispatches the transport-generated disconnect event.
func (r *Router) Disconnect(id ConnID) {
	r.Dispatch(id, Inbound{Event: EventDisconnect})
}

// Dispatch runs the handler bound to in.Event.
func (r *Router) Dispatch(id ConnID, in Inbound) {
	h, ok := r.handlers[in.Event]
	if !ok {
		r.sink(in.Event, id, fmt.Errorf("%w: %q", ErrUnknownEvent, in.Event))
		return
	}
	h(id, in.Data)
}

func (r *Router) bind(event string, h Handler) {
	r.handlers[event] = ContainContext(r.ctx, event, h, r.sink)
}

func decode[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

func (r *Router) setName(id ConnID, data json.RawMessage) Result {
	p, err := decode[setNamePayload](data)
	if err != nil {
		return Failed(err)
	}
	r.coord.SetName(id, p.Username)
	return Done()
}

func (r *Router) joinRoom(id ConnID, data json.RawMessage) Result {
	p, err := decode[joinRoomPayload](data)
	if err != nil {
		return Failed(err)
	}
	r.coord.Join(id, p.Username, p.Room, p.Private, p.Target)
	return Done()
}

func (r *Router) leaveRoom(id ConnID, _ json.RawMessage) Result {
	r.coord.Leave(id)
	return Done()
}

func (r *Router) disconnect(id ConnID, _ json.RawMessage) Result {
	r.coord.Disconnect(id)
	return Done()
}

func (r *Router) sendMessage(id ConnID, data json.RawMessage) Result {
	p, err := decode[sendMessagePayload](data)
	if err != nil {
		return Failed(err)
	}
	r.coord.SendMessage(id, p.Message)
	return Done()
}

func (r *Router) sendFileMessage(id ConnID, data json.RawMessage) Result {
	p, err := decode[fileMessagePayload](data)
	if err != nil {
		return Failed(err)
	}
	r.coord.SendFileMessage(id, p.Filename, p.OriginalName)
	return Done()
}

func (r *Router) typing(id ConnID, data json.RawMessage) Result {
	p, err := decode[typingPayload](data)
	if err != nil {
		return Failed(err)
	}
	r.coord.StartTyping(id, p.Room)
	return Done()
}

func (r *Router) stopTyping(id ConnID, data json.RawMessage) Result {
	p, err := decode[typingPayload](data)
	if err != nil {
		return Failed(err)
	}
	r.coord.StopTyping(id, p.Room)
	return Done()
}

func (r *Router) declinePrivate(id ConnID, data json.RawMessage) Result {
	p, err := decode[declinePayload](data)
	if err != nil {
		return Failed(err)
	}
	inviter := p.Sender
	if inviter == "" {
		inviter = p.Inviter
	}
	r.coord.DeclinePrivate(id, inviter)
	return Done()
}
