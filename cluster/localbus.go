package cluster

import (
	"context"
	"sync"
)

// LocalBus is an in-process fan-out bus for single-process clusters and
// tests. Delivery is synchronous: when Publish returns, every subscriber
// has seen the messages, in publish order.
type LocalBus struct {
	mu       sync.RWMutex
	next     int
	handlers map[int]Handler
}

// Interface assertions.
var (
	_ Bus        = (*LocalBus)(nil)
	_ Membership = (*LocalBus)(nil)
)

// NewLocalBus creates an empty local bus.
func NewLocalBus() *LocalBus {
	return &LocalBus{handlers: make(map[int]Handler)}
}

// Publish delivers the messages to every subscriber in order. It never
// fails; the error return satisfies the Bus contract.
func (b *LocalBus) Publish(_ context.Context, msgs ...Message) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers))
	for i := 0; i < b.next; i++ {
		if h, ok := b.handlers[i]; ok {
			handlers = append(handlers, h)
		}
	}
	b.mu.RUnlock()

	for _, msg := range msgs {
		for _, h := range handlers {
			h(msg)
		}
	}
	return nil
}

// Subscribe registers a handler and returns its cancel function.
func (b *LocalBus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.next
	b.next++
	b.handlers[id] = h
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

// MemberCount implements Membership as the number of live subscribers.
func (b *LocalBus) MemberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers)
}
