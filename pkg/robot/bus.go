package robot

import (
	"sync"

	"github.com/keepmind9/cqbot/pkg/event"
)

// Handler receives a canonical event
type Handler func(event.Event)

// EventBus maps an event name to a single handler. Registering a name twice
// replaces the previous handler.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewEventBus returns an empty bus
func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[string]Handler)}
}

// On binds fn to name
func (b *EventBus) On(name string, fn Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = fn
}

// Un unbinds name
func (b *EventBus) Un(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, name)
}

// Fire invokes the handler bound to name, if any, and reports whether one ran
func (b *EventBus) Fire(name string, ev event.Event) bool {
	b.mu.RLock()
	fn := b.handlers[name]
	b.mu.RUnlock()

	if fn == nil {
		return false
	}
	fn(ev)
	return true
}
