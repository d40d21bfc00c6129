// Package buffer provides a bounded ring used to cache recent chat lines.
package buffer

import (
	"sync"
)

// Ring is a thread-safe circular list that stores the most recent items
// up to a specified capacity. When the ring is full, the oldest item is
// discarded to make room for the new one.
//
// The client uses it for the live message list and the server uses it to
// keep recent messages in memory in front of the history store.
type Ring[T any] struct {
	items    []T
	start    int
	capacity int
	mu       sync.RWMutex
}

// NewRing creates a new Ring with the specified capacity.
// The capacity must be greater than 0; if not, it defaults to 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Ring[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
	}
}

// Push appends items to the ring, discarding the oldest ones on overflow.
func (r *Ring[T]) Push(items ...T) {
	if len(items) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Only the last 'capacity' items can survive
	if len(items) > r.capacity {
		items = items[len(items)-r.capacity:]
	}

	for _, item := range items {
		if len(r.items) < r.capacity {
			r.items = append(r.items, item)
			continue
		}
		r.items[r.start] = item
		r.start = (r.start + 1) % r.capacity
	}
}

// Items returns a copy of the items in insertion order, oldest first.
func (r *Ring[T]) Items() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.items) == 0 {
		return nil
	}

	result := make([]T, 0, len(r.items))
	result = append(result, r.items[r.start:]...)
	result = append(result, r.items[:r.start]...)
	return result
}

// Replace drops the current content and pushes items.
func (r *Ring[T]) Replace(items []T) {
	r.Clear()
	r.Push(items...)
}

// Clear removes all items from the ring.
func (r *Ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.items = r.items[:0]
	r.start = 0
}

// Len returns the current number of items in the ring.
func (r *Ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

// Cap returns the capacity of the ring.
func (r *Ring[T]) Cap() int {
	return r.capacity
}
