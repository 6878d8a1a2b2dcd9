// Package feed ingests normalized wallet-transaction events from the
// per-chain watcher service and buffers them between ingestion cycles.
package feed

import (
	"context"
	"sync"

	"copy-trader-lab/internal/domain"
)

// EventSource streams normalized transaction events. The channel closes when
// the source shuts down for good.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan *domain.TransactionEvent, error)
	Close() error
}

// Buffer accumulates streamed events between ingestion cycles. Bounded: once
// full, the oldest events are dropped first, which is acceptable because a
// missed event only means a missed copy, never corrupted state.
type Buffer struct {
	mu       sync.Mutex
	events   []*domain.TransactionEvent
	capacity int
	dropped  int64
}

// NewBuffer creates a buffer holding at most capacity events.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{capacity: capacity}
}

// Push appends an event, evicting the oldest when full.
func (b *Buffer) Push(ev *domain.TransactionEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.events) >= b.capacity {
		b.events = b.events[1:]
		b.dropped++
	}
	b.events = append(b.events, ev)
}

// Drain removes and returns every buffered event.
func (b *Buffer) Drain() []*domain.TransactionEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := b.events
	b.events = nil
	return out
}

// Len returns the number of buffered events.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.events)
}

// Dropped returns how many events were evicted unread.
func (b *Buffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

// Pump copies events from a subscription channel into the buffer until the
// context ends or the channel closes.
func Pump(ctx context.Context, ch <-chan *domain.TransactionEvent, buf *Buffer) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			buf.Push(ev)
		}
	}
}
