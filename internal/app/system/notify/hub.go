// Package notify fans out party status changes to waiting clients.
//
// It is the push half of the status-watch capability: the watch feature
// subscribes WebSocket clients here, while the status feature serves the
// polling half from the database. Push delivery is best-effort — a client
// that misses an event (dropped connection, full buffer) still converges
// through polling, and clients de-duplicate with a one-shot completion flag
// on their side.
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// StatusEvent is one status change for a party.
type StatusEvent struct {
	Code   string `json:"code"`
	Status string `json:"status"`
}

// Hub tracks subscribers per party code and broadcasts status events to
// them. Subscriber channels are buffered; a subscriber that cannot keep up
// is skipped rather than blocking the publisher.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan StatusEvent]struct{}
	log  *zap.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[chan StatusEvent]struct{}),
		log:  logger,
	}
}

// Subscribe registers interest in a party's status changes. The returned
// cancel function must be called when the subscriber goes away.
func (h *Hub) Subscribe(code string) (<-chan StatusEvent, func()) {
	ch := make(chan StatusEvent, 4)

	h.mu.Lock()
	set, ok := h.subs[code]
	if !ok {
		set = make(map[chan StatusEvent]struct{})
		h.subs[code] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if set, ok := h.subs[code]; ok {
			delete(set, ch)
			if len(set) == 0 {
				delete(h.subs, code)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Publish broadcasts a status change to every subscriber of the party.
func (h *Hub) Publish(code, status string) {
	ev := StatusEvent{Code: code, Status: status}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[code] {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; polling covers it.
			h.log.Warn("dropped status event for slow subscriber",
				zap.String("party_code", code),
				zap.String("status", status))
		}
	}
}

// SubscriberCount returns the number of active subscribers for a party.
func (h *Hub) SubscriberCount(code string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[code])
}
