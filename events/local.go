package events

import "sync"

// LocalBus is an in-process bus delivering events synchronously to all
// handlers subscribed to the event's subject. Handlers must return
// quickly; they may be invoked concurrently when publishers run on
// multiple goroutines.
type LocalBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[string]map[int]func(Event)
}

// NewLocalBus creates an empty in-process bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[string]map[int]func(Event))}
}

// Publish implements Bus.
func (b *LocalBus) Publish(e Event) {
	b.mu.RLock()
	subscribed := make([]func(Event), 0, len(b.handlers[e.Subject()]))
	for _, fn := range b.handlers[e.Subject()] {
		subscribed = append(subscribed, fn)
	}
	b.mu.RUnlock()

	for _, fn := range subscribed {
		fn(e)
	}
}

// Subscribe registers a handler for the given subject and returns its
// unsubscribe function.
func (b *LocalBus) Subscribe(subject string, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handlers[subject] == nil {
		b.handlers[subject] = make(map[int]func(Event))
	}
	id := b.nextID
	b.nextID++
	b.handlers[subject][id] = fn

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[subject], id)
	}
}
