/*
events.go - In-process event bus for mutation notifications

PURPOSE:
  Every successful mutation publishes a named event carrying the affected
  record(s). Consumers are external collaborators (UI, indexes, search
  caches) - the engine itself never reacts to its own events.

  Batched mutations coalesce into a single batch event so consumers are
  not hammered once per item.

SUBSCRIPTIONS:
  Subscribe accepts glob patterns ("transaction:*") matched with the same
  semantics the cache uses for invalidation.
*/
package ledger

import (
	"path"
	"sync"
)

// Event names published by the engine.
const (
	EventTransactionAdded   = "transaction:added"
	EventTransactionUpdated = "transaction:updated"
	EventTransactionDeleted = "transaction:deleted"

	EventTransactionBatchAdded   = "transaction:batch-added"
	EventTransactionBatchDeleted = "transaction:batch-deleted"
)

// Event is one published notification.
type Event struct {
	Name    string
	Payload any
}

// Bus is a process-local publish/subscribe hub. Handlers run synchronously
// in Publish order on the publisher's goroutine.
type Bus struct {
	mu   sync.RWMutex
	subs []subscription
}

type subscription struct {
	pattern string
	handler func(Event)
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// Subscribe registers a handler for every event whose name matches the
// glob pattern.
func (b *Bus) Subscribe(pattern string, handler func(Event)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, subscription{pattern: pattern, handler: handler})
}

// Publish delivers the event to every matching subscriber.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if ok, err := path.Match(s.pattern, e.Name); err == nil && ok {
			s.handler(e)
		}
	}
}
