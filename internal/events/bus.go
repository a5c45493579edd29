// Package events carries in-process invalidation signals from the service to
// every view that derives data from the transaction set.
package events

import (
	"context"
	"sync"

	"finviz/internal/core"
)

// Bus fans invalidations out to subscribers. Each subscriber has a one-slot
// buffer: while a signal is pending, further signals are coalesced into it,
// since any pending signal already means "re-fetch everything".
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan core.Invalidation
	nextID int
	closed bool
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan core.Invalidation)}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it
// and closes the channel; it is safe to call more than once.
func (b *Bus) Subscribe() (<-chan core.Invalidation, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan core.Invalidation, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// Notify implements ports.Notifier. It never blocks.
func (b *Bus) Notify(_ context.Context, inv core.Invalidation) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- inv:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscriber channel. Later Notify calls are no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
