// Package broadcast fans telemetry events out to connected observers.
//
// The hub is an explicitly constructed object owned by the composition
// root and handed to both the websocket endpoint (connect/disconnect)
// and the telemetry simulator (publish). Delivery is best-effort: a
// failed send never reaches the publisher, it only evicts the stale
// subscriber.
package broadcast

import (
	"encoding/json"
	"log"
	"sync"
)

// Subscriber receives broadcast messages. The production implementation
// wraps a websocket connection; tests use in-memory fakes.
type Subscriber interface {
	// Send delivers one message. An error marks the subscriber stale.
	Send(data []byte) error
	// Close releases the subscriber's resources.
	Close() error
}

// Hub tracks the live subscriber set and publishes to all of it.
type Hub struct {
	mu     sync.Mutex
	subs   map[Subscriber]string // subscriber -> client label, for logs
	logger *log.Logger
}

// NewHub creates an empty hub. A nil logger falls back to the default.
func NewHub(logger *log.Logger) *Hub {
	if logger == nil {
		logger = log.Default()
	}
	return &Hub{
		subs:   make(map[Subscriber]string),
		logger: logger,
	}
}

// Register adds a subscriber. The clientID is only used for logging.
func (h *Hub) Register(sub Subscriber, clientID string) {
	h.mu.Lock()
	h.subs[sub] = clientID
	total := len(h.subs)
	h.mu.Unlock()

	h.logger.Printf("Client %s connected. Total connections: %d", clientID, total)
}

// Unregister removes a subscriber, if present. Safe to call twice.
func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	clientID, ok := h.subs[sub]
	if ok {
		delete(h.subs, sub)
	}
	total := len(h.subs)
	h.mu.Unlock()

	if ok {
		h.logger.Printf("Client %s disconnected. Total connections: %d", clientID, total)
	}
}

// Count returns the number of live subscribers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Publish serializes v to JSON and sends it to every subscriber.
// A per-subscriber send failure is logged and that subscriber is pruned;
// the remaining subscribers still receive the message. Publish never
// reports an error to the caller.
func (h *Hub) Publish(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		h.logger.Printf("Broadcast marshal failed: %v", err)
		return
	}

	// Snapshot under lock, write outside it: a slow subscriber must not
	// block connect/disconnect.
	h.mu.Lock()
	targets := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.Unlock()

	var stale []Subscriber
	for _, sub := range targets {
		if err := sub.Send(data); err != nil {
			h.logger.Printf("Broadcast to a client failed: %v. Removing stale connection.", err)
			stale = append(stale, sub)
		}
	}

	for _, sub := range stale {
		h.Unregister(sub)
		sub.Close()
	}
}

// CloseAll disconnects every subscriber. Used during shutdown.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	targets := make([]Subscriber, 0, len(h.subs))
	for sub := range h.subs {
		targets = append(targets, sub)
	}
	h.subs = make(map[Subscriber]string)
	h.mu.Unlock()

	for _, sub := range targets {
		sub.Close()
	}
}
