package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrHandlerPanic wraps the value recovered from a panicking handler.
	ErrHandlerPanic = errors.New("handler panicked")
	// ErrOutcomeAbandoned is reported when a deferred outcome was still
	// outstanding as its context ended.
	ErrOutcomeAbandoned = errors.New("deferred outcome abandoned")
)

// Result is the outcome of a Handler. A handler either finishes synchronously,
// with or without an error, or hands back a channel that will report the
// outcome of work it started in the background.
type Result struct {
	err     error
	pending <-chan error
}

// Done reports synchronous success.
func Done() Result { return Result{} }

// Failed reports a synchronous failure.
func Failed(err error) Result { return Result{err: err} }

// Pending reports work that completes later. The channel should deliver at
// most one value; a nil value or a closed channel means success. Under
// Contain a channel that is never written or closed keeps its watcher
// alive forever; use ContainContext to bound it.
func Pending(ch <-chan error) Result { return Result{pending: ch} }

// Err returns the synchronous error, if any.
func (r Result) Err() error { return r.err }

// IsPending reports whether the outcome is deferred.
func (r Result) IsPending() bool { return r.pending != nil }

// Handler processes one inbound event for one connection.
type Handler func(id ConnID, data json.RawMessage) Result

// FaultSink receives handler failures that were contained.
type FaultSink func(event string, id ConnID, err error)

// Contain wraps h so that panics, synchronous errors and deferred errors are
// passed to sink instead of propagating. The returned handler always
// reports Done.
func Contain(event string, h Handler, sink FaultSink) Handler {
	return ContainContext(context.Background(), event, h, sink)
}

// ContainContext is Contain with deferred outcomes watched only until ctx
// ends. A watch cut short is reported to sink as an error wrapping
// ctx.Err().
func ContainContext(ctx context.Context, event string, h Handler, sink FaultSink) Handler {
	return func(id ConnID, data json.RawMessage) (res Result) {
		defer func() {
			if r := recover(); r != nil {
				sink(event, id, fmt.Errorf("%w: %v", ErrHandlerPanic, r))
				res = Done()
			}
		}()

		out := h(id, data)
		switch {
		case out.err != nil:
			sink(event, id, out.err)
		case out.pending != nil:
			go func(ch <-chan error) {
				select {
				case err, ok := <-ch:
					if ok && err != nil {
						sink(event, id, err)
					}
				case <-ctx.Done():
					sink(event, id, fmt.Errorf("%w: %w", ErrOutcomeAbandoned, ctx.Err()))
				}
			}(out.pending)
		}
		return Done()
	}
}

// LogSink returns a FaultSink that logs every fault at error level.
func LogSink(logger zerolog.Logger) FaultSink {
	return func(event string, id ConnID, err error) {
		logger.Error().
			Err(err).
			Str("event", event).
			Str("conn", string(id)).
			Msg("event handler failed")
	}
}
