// Package notify provides a small observer registry.
//
// A Notifier delivers values of a single type to every registered observer.
// It backs the panel's "content changed" notifications and the configuration
// reload notifications.
package notify

import (
	"slices"
	"sync"
)

// Observer is called with each notified value.
type Observer[T any] func(value T)

// Subscription represents an active observer registration.
type Subscription[T any] struct {
	id       uint64
	notifier *Notifier[T]
}

// Unsubscribe removes this subscription. It is safe to call more than once.
func (s *Subscription[T]) Unsubscribe() {
	if s != nil && s.notifier != nil {
		s.notifier.unsubscribe(s.id)
	}
}

// Notifier manages observer subscriptions for values of type T.
//
// Observers are called synchronously on the goroutine that calls Notify,
// in subscription order, outside the internal lock, so an observer may
// subscribe or unsubscribe while being notified.
type Notifier[T any] struct {
	mu        sync.RWMutex
	observers map[uint64]Observer[T]
	nextID    uint64
	closed    bool
}

// New creates a new Notifier.
func New[T any]() *Notifier[T] {
	return &Notifier[T]{
		observers: make(map[uint64]Observer[T]),
	}
}

// Subscribe registers an observer for all notifications.
func (n *Notifier[T]) Subscribe(observer Observer[T]) *Subscription[T] {
	n.mu.Lock()
	defer n.mu.Unlock()

	id := n.nextID
	n.nextID++
	n.observers[id] = observer

	return &Subscription[T]{id: id, notifier: n}
}

// Notify sends value to all current observers.
// Notify on a closed notifier is a no-op.
func (n *Notifier[T]) Notify(value T) {
	n.mu.RLock()
	if n.closed {
		n.mu.RUnlock()
		return
	}
	ids := make([]uint64, 0, len(n.observers))
	for id := range n.observers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	observers := make([]Observer[T], 0, len(ids))
	for _, id := range ids {
		observers = append(observers, n.observers[id])
	}
	n.mu.RUnlock()

	for _, obs := range observers {
		obs(value)
	}
}

// Len returns the number of active subscriptions.
func (n *Notifier[T]) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.observers)
}

// Close drops all observers and rejects further notifications.
// It is safe to call Close multiple times.
func (n *Notifier[T]) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.closed = true
	clear(n.observers)
}

func (n *Notifier[T]) unsubscribe(id uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.observers, id)
}
