// File: internal/events/bus.go
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/handsfree/api/schemas"
)

// DefaultHistorySize bounds the ring buffer of recently emitted events.
const DefaultHistorySize = 100

// Subscription identifies a registered handler so it can be removed again.
// Function values are not comparable in Go, so Subscribe hands out a token
// instead of matching on the handler itself.
type Subscription uint64

// Bus is a synchronous publish/subscribe dispatcher. Emit invokes every
// matching handler in subscription order on the caller's goroutine before
// returning; there is no queue and no worker pool. A slow handler therefore
// stalls the emitter, which is a deliberate property: the core is a fully
// serialized consumer of asynchronously produced events.
type Bus struct {
	logger *zap.Logger

	mu       sync.Mutex
	nextSub  Subscription
	handlers map[Type][]entry
	global   []entry

	histMu      sync.Mutex
	history     []Event
	historySize int
}

type entry struct {
	id Subscription
	fn Handler
}

// Option configures a Bus.
type Option func(*Bus)

// WithHistorySize overrides the bounded history length.
func WithHistorySize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.historySize = n
		}
	}
}

// NewBus creates a bus. A nil logger is replaced with a no-op logger.
func NewBus(logger *zap.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	b := &Bus{
		logger:      logger.Named("event_bus"),
		handlers:    make(map[Type][]entry),
		historySize: DefaultHistorySize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for one event type and returns a token for
// Unsubscribe.
func (b *Bus) Subscribe(t Type, h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	b.handlers[t] = append(b.handlers[t], entry{id: b.nextSub, fn: h})
	return b.nextSub
}

// SubscribeAll registers a handler for every event. Global handlers run after
// the type-specific ones, in subscription order.
func (b *Bus) SubscribeAll(h Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	b.global = append(b.global, entry{id: b.nextSub, fn: h})
	return b.nextSub
}

// Unsubscribe removes a handler previously registered for t. Unknown tokens
// are ignored.
func (b *Bus) Unsubscribe(t Type, sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[t] = remove(b.handlers[t], sub)
	b.global = remove(b.global, sub)
}

func remove(entries []entry, sub Subscription) []entry {
	for i, e := range entries {
		if e.id == sub {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// Emit records the event in the bounded history and then synchronously
// invokes every handler registered for its type plus all global handlers. A
// panicking handler is caught and logged; dispatch continues with the
// remaining handlers. The handler-list lock is held only while copying the
// lists, never during invocation, so handlers may subscribe or emit
// reentrantly without deadlocking.
func (b *Bus) Emit(ev Event) {
	b.histMu.Lock()
	b.history = append(b.history, ev)
	if len(b.history) > b.historySize {
		b.history = b.history[len(b.history)-b.historySize:]
	}
	b.histMu.Unlock()

	b.mu.Lock()
	targets := make([]entry, 0, len(b.handlers[ev.Type])+len(b.global))
	targets = append(targets, b.handlers[ev.Type]...)
	targets = append(targets, b.global...)
	b.mu.Unlock()

	for _, e := range targets {
		b.dispatch(e, ev)
	}
}

func (b *Bus) dispatch(e entry, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("event_type", string(ev.Type)),
				zap.String("event_id", ev.ID),
				zap.Any("panic", r))
		}
	}()
	e.fn(ev)
}

// EmitSimple builds and emits an event in one call, returning it.
func (b *Bus) EmitSimple(t Type, source string, data schemas.Params) Event {
	ev := New(t, source, data)
	b.Emit(ev)
	return ev
}

// History returns a copy of the retained events, optionally filtered by type.
func (b *Bus) History(types ...Type) []Event {
	b.histMu.Lock()
	defer b.histMu.Unlock()
	if len(types) == 0 {
		out := make([]Event, len(b.history))
		copy(out, b.history)
		return out
	}
	var out []Event
	for _, ev := range b.history {
		for _, t := range types {
			if ev.Type == t {
				out = append(out, ev)
				break
			}
		}
	}
	return out
}
