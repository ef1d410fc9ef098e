package events

import (
	"log/slog"
	"sync"
)

// Bus is a small fan-out event bus. Publish never blocks: a subscriber whose
// buffer is full misses the event, which is acceptable for live progress
// feeds where the next snapshot supersedes the last.
type Bus struct {
	mu     sync.RWMutex
	subs   map[int]chan any
	nextID int
	logger *slog.Logger
}

func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{subs: make(map[int]chan any), logger: logger}
}

// Publish delivers the event to every subscriber without blocking.
func (b *Bus) Publish(event any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Debug("event dropped, subscriber buffer full", slog.Int("subscriber", id))
		}
	}
}

// Subscribe registers a new consumer. The returned cancel func removes the
// subscription and closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan any, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan any, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}
	return ch, cancel
}
