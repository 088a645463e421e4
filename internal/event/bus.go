package event

import (
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"

	"github.com/boardwave/boardsync/internal/logging"
)

// Handler is a function that handles an event.
type Handler func(Event)

// subscription represents a registered event handler.
type subscription struct {
	id      string
	name    Name
	handler Handler
}

// Bus is a simple synchronous pub-sub event bus.
// It allows components to communicate without direct dependencies.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[Name][]subscription
	nextID        atomic.Uint64
	logger        *logging.Logger
}

// Option configures a Bus.
type Option func(*Bus)

// WithLogger sets the logger used to report handler panics.
func WithLogger(logger *logging.Logger) Option {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// NewBus creates a new event bus.
func NewBus(opts ...Option) *Bus {
	b := &Bus{
		subscriptions: make(map[Name][]subscription),
		logger:        logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers a handler for a specific event name.
// The same handler may be registered more than once and is then called once
// per registration. Returns a subscription ID that can be used to unsubscribe.
func (b *Bus) Subscribe(name Name, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.generateID()
	b.subscriptions[name] = append(b.subscriptions[name], subscription{
		id:      id,
		name:    name,
		handler: handler,
	})
	return id
}

// SubscribeAll registers a handler for all event names.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(nameAll, handler)
}

// On registers a handler that receives events of concrete type T published
// under name. Events of any other type are logged and skipped.
func On[T Event](b *Bus, name Name, fn func(T)) string {
	return b.Subscribe(name, func(e Event) {
		typed, ok := e.(T)
		if !ok {
			b.logger.Warn("event payload type mismatch",
				"event", string(name),
				"got", fmt.Sprintf("%T", e))
			return
		}
		fn(typed)
	})
}

// Unsubscribe removes a subscription by ID.
// Returns true if the subscription was found and removed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for name, subs := range b.subscriptions {
		for i, sub := range subs {
			if sub.id == id {
				// Copy so that in-flight Publish snapshots are unaffected
				next := make([]subscription, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				next = append(next, subs[i+1:]...)
				b.subscriptions[name] = next
				return true
			}
		}
	}
	return false
}

// Publish dispatches an event to all registered handlers.
// Specific handlers are called first, followed by wildcard handlers.
// Within each group, handlers are called in registration order.
// If a handler panics, the panic is logged, recovered, and publishing
// continues to remaining handlers.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	name := event.EventType()

	specificSubs := make([]subscription, len(b.subscriptions[name]))
	copy(specificSubs, b.subscriptions[name])

	wildcardSubs := make([]subscription, len(b.subscriptions[nameAll]))
	copy(wildcardSubs, b.subscriptions[nameAll])

	b.mu.RUnlock()

	for _, sub := range specificSubs {
		b.safeCall(sub.handler, event)
	}

	for _, sub := range wildcardSubs {
		b.safeCall(sub.handler, event)
	}
}

// safeCall invokes a handler and recovers from any panics.
func (b *Bus) safeCall(handler Handler, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", string(event.EventType()),
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()))
		}
	}()
	handler(event)
}

// generateID creates a unique subscription ID.
func (b *Bus) generateID() string {
	return fmt.Sprintf("sub-%d", b.nextID.Add(1))
}

// Clear removes all subscriptions.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscriptions = make(map[Name][]subscription)
}

// SubscriptionCount returns the total number of active subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, subs := range b.subscriptions {
		count += len(subs)
	}
	return count
}
