package events

import "sync"

// ring keeps the last cap values in insertion order.
type ring[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	n     int
}

func newRing[T any](capacity int) *ring[T] {
	return &ring[T]{items: make([]T, capacity)}
}

func (r *ring[T]) Add(v T) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[r.next] = v
	r.next = (r.next + 1) % len(r.items)
	if r.n < len(r.items) {
		r.n++
	}
}

// Snapshot returns the held values, oldest first.
func (r *ring[T]) Snapshot() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]T, 0, r.n)
	start := (r.next - r.n + len(r.items)) % len(r.items)
	for i := 0; i < r.n; i++ {
		out = append(out, r.items[(start+i)%len(r.items)])
	}
	return out
}

func (r *ring[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.n
}

func (r *ring[T]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.items)
	r.next, r.n = 0, 0
}
