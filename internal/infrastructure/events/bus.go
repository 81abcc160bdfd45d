package events

import (
	"context"
	"sync"

	"github.com/keladiary/core/internal/infrastructure/logger"
	"github.com/keladiary/core/internal/ports"
)

type subscription struct {
	id      uint64
	handler ports.EventHandler
}

// Bus is a synchronous in-process publisher. Publish runs every handler for
// the topic on the caller's goroutine, in subscription order, before returning.
// Handlers must not publish on the topic they are handling.
type Bus struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[ports.Topic][]subscription
	logger *logger.Logger
}

// NewBus creates an empty bus.
func NewBus(log *logger.Logger) *Bus {
	return &Bus{
		subs:   make(map[ports.Topic][]subscription),
		logger: log.WithComponent("events"),
	}
}

// Subscribe registers h for topic and returns a function that removes it.
func (b *Bus) Subscribe(topic ports.Topic, h ports.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[topic] = append(b.subs[topic], subscription{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers evt to every subscriber of its topic. A panicking handler
// is logged and does not prevent delivery to the others.
func (b *Bus) Publish(ctx context.Context, evt ports.Event) {
	b.mu.RLock()
	subs := make([]subscription, len(b.subs[evt.Topic]))
	copy(subs, b.subs[evt.Topic])
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, evt)
	}
}

func (b *Bus) deliver(ctx context.Context, s subscription, evt ports.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Errorw("Event handler panicked", "topic", evt.Topic, "panic", r)
		}
	}()
	s.handler(ctx, evt)
}

// Subscribers reports how many handlers are registered for topic.
func (b *Bus) Subscribers(topic ports.Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
