// Package events broadcasts the payload-free "auth changed" signal to the
// parts of the gateway that cache member state.
package events

import "sync"

// Publisher emits an auth-changed signal.
type Publisher interface {
	Publish()
}

// Hub fans a signal out to every subscriber. Each subscriber channel holds
// at most one pending signal; publishing to a full channel is a no-op
// since the pending signal already means "re-check now".
type Hub struct {
	mu   sync.Mutex
	subs map[uint64]chan struct{}
	next uint64
}

// NewHub returns a hub with no subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan struct{})}
}

// Subscribe registers a subscriber. The returned cancel func unregisters
// it and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish signals every subscriber without blocking.
func (h *Hub) Publish() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
