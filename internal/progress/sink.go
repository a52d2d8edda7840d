package progress

import (
	"context"
	"sync"
)

// Sink consumes batches of progress events. Implementations must be safe for
// repeated calls, honor ctx deadlines, and may be invoked concurrently.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events. Hub and SSEWriter both satisfy it so
// the pipeline stays agnostic about where events end up.
type Emitter interface {
	Emit(evt Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(Event)

// Emit calls f(evt).
func (f EmitterFunc) Emit(evt Event) { f(evt) }

type nopEmitter struct{}

func (nopEmitter) Emit(Event) {}

// Nop discards every event.
var Nop Emitter = nopEmitter{}

// Multi fans each event out to every non-nil emitter in order.
func Multi(emitters ...Emitter) Emitter {
	out := make([]Emitter, 0, len(emitters))
	for _, e := range emitters {
		if e != nil {
			out = append(out, e)
		}
	}
	return multiEmitter(out)
}

type multiEmitter []Emitter

func (m multiEmitter) Emit(evt Event) {
	for _, e := range m {
		e.Emit(evt)
	}
}

type ctxKey struct{}

// WithEmitter attaches e to ctx so providers deep in the call chain can
// report progress without threading an argument through every layer.
func WithEmitter(ctx context.Context, e Emitter) context.Context {
	return context.WithValue(ctx, ctxKey{}, e)
}

// FromContext returns the emitter stored in ctx or Nop.
func FromContext(ctx context.Context) Emitter {
	if e, ok := ctx.Value(ctxKey{}).(Emitter); ok && e != nil {
		return e
	}
	return Nop
}

// Recorder keeps every emitted event in memory. It is used by the CLI and
// tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends evt.
func (r *Recorder) Emit(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Names returns the recorded event names in order.
func (r *Recorder) Names() []Name {
	events := r.Events()
	names := make([]Name, len(events))
	for i, evt := range events {
		names[i] = evt.Name
	}
	return names
}

type runKey struct{}

// WithRunID tags ctx with the id of the discovery run it belongs to.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runKey{}, runID)
}

// RunIDFromContext returns the run id stored in ctx, if any.
func RunIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(runKey{}).(string)
	return id
}
