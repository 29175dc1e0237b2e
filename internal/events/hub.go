package events

import "sync"

// Hub fans values out to subscriber channels. Publishing never blocks: a
// subscriber whose buffer is full misses the value.
type Hub[T any] struct {
	mu   sync.RWMutex
	size int
	subs map[<-chan T]chan T
}

// NewHub returns a hub whose subscriber channels buffer size values.
func NewHub[T any](size int) *Hub[T] {
	return &Hub[T]{size: size, subs: make(map[<-chan T]chan T)}
}

// Subscribe registers a new subscriber.
func (h *Hub[T]) Subscribe() <-chan T {
	ch := make(chan T, h.size)
	h.mu.Lock()
	h.subs[ch] = ch
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber. Unknown or already closed
// channels are ignored.
func (h *Hub[T]) Unsubscribe(sub <-chan T) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(ch)
	}
}

// Publish delivers v to every subscriber with room for it.
func (h *Hub[T]) Publish(v T) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- v:
		default:
		}
	}
}

// CloseAll removes and closes every subscriber.
func (h *Hub[T]) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub, ch := range h.subs {
		delete(h.subs, sub)
		close(ch)
	}
}

// Len returns the number of subscribers.
func (h *Hub[T]) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var hub = NewHub[Event](64)

// Subscribe returns a channel receiving every emitted event.
func Subscribe() <-chan Event { return hub.Subscribe() }

// Unsubscribe removes and closes an event subscription.
func Unsubscribe(sub <-chan Event) { hub.Unsubscribe(sub) }

// CloseAllSubscribers closes every event subscription so stream writers
// exit on shutdown.
func CloseAllSubscribers() { hub.CloseAll() }

// SubscriberCount returns the number of event subscribers.
func SubscriberCount() int { return hub.Len() }

// RecentEvents returns the last n buffered events, or all of them when n is
// zero or exceeds the buffer.
func RecentEvents(n int) []Event {
	all := buffer.Snapshot()
	if n <= 0 || n >= len(all) {
		return all
	}
	return all[len(all)-n:]
}
