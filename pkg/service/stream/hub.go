package stream

import (
	"sync"

	"github.com/rivulet-lab/rivulet/pkg/domain/types"
)

// Hub fans out per-stream wakeup signals. Writers call Notify after every
// registry write; subscribers wait on their signal channel and re-read the
// registry snapshot. The registry stays the single source of truth, so a
// dropped signal only delays a subscriber until the next one.
type Hub struct {
	mu      sync.Mutex
	waiters map[types.StreamID]map[int]chan struct{}
	nextID  int
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		waiters: make(map[types.StreamID]map[int]chan struct{}),
	}
}

// Subscribe registers a wakeup channel for the stream ID. The returned
// cancel function must be called when the subscriber is done.
func (h *Hub) Subscribe(id types.StreamID) (<-chan struct{}, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.waiters[id]; !exists {
		h.waiters[id] = make(map[int]chan struct{})
	}

	h.nextID++
	key := h.nextID
	ch := make(chan struct{}, 1)
	h.waiters[id][key] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if bucket, exists := h.waiters[id]; exists {
			delete(bucket, key)
			if len(bucket) == 0 {
				delete(h.waiters, id)
			}
		}
	}
	return ch, cancel
}

// Notify wakes all subscribers of the stream ID. The signal channels carry
// no payload and have capacity one, so notifying never blocks.
func (h *Hub) Notify(id types.StreamID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.waiters[id] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions for the stream ID
func (h *Hub) Subscribers(id types.StreamID) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.waiters[id])
}
