package feed

import (
	"context"

	"copy-trader-lab/internal/domain"
)

// StaticSource replays a fixed event slice once, then closes the channel.
// Used by the offline replay command and tests.
type StaticSource struct {
	events []*domain.TransactionEvent
}

var _ EventSource = (*StaticSource)(nil)

// NewStaticSource creates a source over events.
func NewStaticSource(events []*domain.TransactionEvent) *StaticSource {
	return &StaticSource{events: events}
}

// Subscribe streams the events in order.
func (s *StaticSource) Subscribe(ctx context.Context) (<-chan *domain.TransactionEvent, error) {
	ch := make(chan *domain.TransactionEvent)
	go func() {
		defer close(ch)
		for _, ev := range s.events {
			select {
			case <-ctx.Done():
				return
			case ch <- ev:
			}
		}
	}()
	return ch, nil
}

// Close is a no-op.
func (s *StaticSource) Close() error { return nil }
