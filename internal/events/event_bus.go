package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryBus implements Bus with in-process delivery.
type InMemoryBus struct {
	mu          sync.RWMutex
	subscribers map[string]subscription // subscriptionID -> subscription
	store       Store
}

type subscription struct {
	handler Handler
	types   map[Type]bool // empty means all types
}

// NewBus creates a new InMemoryBus with an optional audit store.
func NewBus(store Store) *InMemoryBus {
	return &InMemoryBus{
		subscribers: make(map[string]subscription),
		store:       store,
	}
}

// Publish delivers the event to every matching subscriber. Missing IDs and
// timestamps are filled in; publication never fails.
func (b *InMemoryBus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	if b.store != nil {
		b.store.Append(event)
	}

	b.mu.RLock()
	// Copy handlers to avoid holding the lock during delivery
	handlers := make([]Handler, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if len(sub.types) == 0 || sub.types[event.Type] {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Subscribe registers a handler for the given event types.
func (b *InMemoryBus) Subscribe(handler Handler, types ...Type) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	typeSet := make(map[Type]bool, len(types))
	for _, t := range types {
		typeSet[t] = true
	}

	subscriptionID := uuid.New().String()
	b.subscribers[subscriptionID] = subscription{handler: handler, types: typeSet}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, subscriptionID)
	}
}

// SubscriberCount returns the number of active subscriptions.
// Useful for testing and monitoring.
func (b *InMemoryBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
