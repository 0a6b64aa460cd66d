package swarm

import (
	"sync"

	"github.com/amonks/swarmboard/status"
	"github.com/google/uuid"
)

// subscriberBuffer is the number of snapshots a subscriber may fall behind
// before older ones are discarded.
const subscriberBuffer = 1

// Subscription receives snapshots until it is unsubscribed.
type Subscription struct {
	ID string
	C  <-chan status.Snapshot
}

// Hub fans snapshots out to subscribers. A subscriber that cannot keep up
// loses its oldest pending snapshot, never the newest, and never slows
// delivery to anyone else.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan status.Snapshot
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan status.Snapshot)}
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() Subscription {
	ch := make(chan status.Snapshot, subscriberBuffer)
	id := uuid.NewString()
	h.mu.Lock()
	h.subscribers[id] = ch
	h.mu.Unlock()
	return Subscription{ID: id, C: ch}
}

// Unsubscribe removes a subscriber and closes its channel. Unknown or
// already removed ids are ignored.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	ch, ok := h.subscribers[id]
	if !ok {
		return
	}
	delete(h.subscribers, id)
	close(ch)
}

// Broadcast offers snapshot to every subscriber without blocking and
// returns the number of subscribers it reached.
func (h *Hub) Broadcast(snapshot status.Snapshot) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- snapshot:
			continue
		default:
		}
		// Full: drop the stale snapshot and queue the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snapshot:
		default:
		}
	}
	return len(h.subscribers)
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}
