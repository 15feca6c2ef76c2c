// Package bus is the typed event bus fanning watcher events out to SSE
// subscribers, adapted from the teacher's internal/bus
// EventPublisher/Subscribe/Broadcast shape.
package bus

import (
	"sync"

	"github.com/nextlevelbuilder/agentsd/pkg/protocol"
)

// EventHandler handles one broadcast event.
type EventHandler func(protocol.Event)

// EventPublisher abstracts event broadcast + subscription, letting the
// HTTP/SSE layer and any other consumer decouple from the concrete Bus.
type EventPublisher interface {
	Subscribe(id string, handler EventHandler)
	Unsubscribe(id string)
	Broadcast(event protocol.Event)
}

// Bus is an in-process pub/sub fanning protocol.Event values to named
// subscribers (one per SSE connection, typically).
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]EventHandler
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]EventHandler)}
}

// Subscribe registers handler under id, replacing any existing handler
// with the same id.
func (b *Bus) Subscribe(id string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[id] = handler
}

// Unsubscribe removes the handler registered under id, if any.
func (b *Bus) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subscribers, id)
}

// Broadcast invokes every registered handler with event. Handlers run
// synchronously on the caller's goroutine; SSE handlers are expected to do a
// non-blocking channel send internally.
func (b *Bus) Broadcast(event protocol.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.subscribers {
		h(event)
	}
}

var _ EventPublisher = (*Bus)(nil)
