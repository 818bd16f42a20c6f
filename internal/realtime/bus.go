package realtime

import (
	"context"
	"sync"
)

// Action is the kind of table change carried by an event
type Action string

const (
	ActionInsert Action = "INSERT"
	ActionUpdate Action = "UPDATE"
)

// Event describes one row change on a watched table. Payload is the row as
// it will be rendered to the client.
type Event struct {
	Table   string      `json:"table"`
	Action  Action      `json:"action"`
	UserID  string      `json:"user_id"`
	Payload interface{} `json:"payload"`
}

// Bus fans row-change events out to per-user subscribers. There is no replay:
// a subscriber only sees events published while it is attached.
type Bus interface {
	Publish(ctx context.Context, event Event)
	// Subscribe returns a channel of events for the given user and a cancel
	// function that must be called when the consumer goes away.
	Subscribe(ctx context.Context, userID string) (<-chan Event, func())
	Close() error
}

// subscriberBuffer is the per-subscriber channel capacity. Events beyond it
// are dropped rather than blocking the publisher.
const subscriberBuffer = 16

// MemoryBus is the in-process Bus used when no Redis address is configured.
type MemoryBus struct {
	mu   sync.RWMutex
	subs map[string]map[chan Event]struct{}
}

// NewMemoryBus creates an in-process event bus
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		subs: make(map[string]map[chan Event]struct{}),
	}
}

// Publish delivers the event to every subscriber of event.UserID. Slow
// subscribers have the event dropped instead of holding up the writer.
func (b *MemoryBus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.UserID] {
		select {
		case ch <- event:
		default:
		}
	}
}

// Subscribe attaches a new consumer for the given user
func (b *MemoryBus) Subscribe(ctx context.Context, userID string) (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	if b.subs[userID] == nil {
		b.subs[userID] = make(map[chan Event]struct{})
	}
	b.subs[userID][ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[userID], ch)
			if len(b.subs[userID]) == 0 {
				delete(b.subs, userID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}

// Close implements Bus; the in-process bus has nothing to release
func (b *MemoryBus) Close() error {
	return nil
}
