package broker

import (
	"errors"
	"sync"
)

var ErrNoSubscribers = errors.New("broker: no subscribers")

// Broker implements a simple fan-out message broker. Messages are delivered in publish order;
// subscribers whose buffer is full miss the message instead of blocking the publisher.
type Broker[T any] struct {
	mu          sync.Mutex
	subscribers map[string]chan T
	dropped     map[string]uint64
	closed      bool
}

func NewBroker[T any]() *Broker[T] {
	return &Broker[T]{
		subscribers: make(map[string]chan T),
		dropped:     make(map[string]uint64),
	}
}

// Subscribe registers a new subscriber with the given name and channel buffer size.
// It returns a receive-only channel that will receive published messages. Subscribing again
// with the same name closes the previous channel. Subscribing to a closed broker returns a
// closed channel.
func (b *Broker[T]) Subscribe(name string, size int) <-chan T {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan T, size)
	if b.closed {
		close(ch)
		return ch
	}

	if previous, ok := b.subscribers[name]; ok {
		close(previous)
	}
	b.subscribers[name] = ch
	b.dropped[name] = 0

	return ch
}

// Unsubscribe removes the subscriber and closes its channel.
func (b *Broker[T]) Unsubscribe(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subscribers[name]; ok {
		close(ch)
		delete(b.subscribers, name)
		delete(b.dropped, name)
	}
}

// Publish sends a message to all registered subscribers without blocking.
func (b *Broker[T]) Publish(t T) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.subscribers) == 0 {
		return ErrNoSubscribers
	}

	for name, ch := range b.subscribers {
		select {
		case ch <- t:
		default:
			b.dropped[name]++
		}
	}

	return nil
}

// Dropped returns how many messages the named subscriber missed because its buffer was full.
func (b *Broker[T]) Dropped(name string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped[name]
}

// Close closes all subscriber channels, signaling that no more messages will be published.
func (b *Broker[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		close(ch)
	}

	b.subscribers = make(map[string]chan T)
	b.dropped = make(map[string]uint64)
	b.closed = true
}
