// Package hub fans broadcast events out to the connections subscribed to a
// retrospective. Delivery per subscriber is FIFO; publishing never blocks.
package hub

import (
	"sync"

	"github.com/louisbranch/retroboard/internal/retro/event"
)

// subscriberBuffer is how many undelivered events a subscriber may lag
// behind before it is evicted.
const subscriberBuffer = 64

// Hub routes events to subscribers keyed by retrospective ID. Sessions are
// isolated; a publish for one retrospective never reaches another's
// subscribers.
type Hub struct {
	mu       sync.Mutex
	sessions map[string]map[*Subscription]struct{}
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{sessions: make(map[string]map[*Subscription]struct{})}
}

// Subscription is one connection's ordered event feed. The channel closes
// when the subscription is closed or the subscriber falls too far behind.
type Subscription struct {
	hub     *Hub
	retroID string
	ch      chan event.Event
	closed  bool // guarded by hub.mu
}

// Subscribe registers a feed for a retrospective.
func (h *Hub) Subscribe(retroID string) *Subscription {
	sub := &Subscription{
		hub:     h,
		retroID: retroID,
		ch:      make(chan event.Event, subscriberBuffer),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	subs, ok := h.sessions[retroID]
	if !ok {
		subs = make(map[*Subscription]struct{})
		h.sessions[retroID] = subs
	}
	subs[sub] = struct{}{}
	return sub
}

// Events returns the subscriber's feed. A closed channel means the
// subscription ended; the reader should resync from a fresh snapshot.
func (s *Subscription) Events() <-chan event.Event {
	return s.ch
}

// Close unsubscribes and closes the feed. Safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.dropLocked(s)
}

// dropLocked removes a subscription and closes its channel. Callers hold
// the hub mutex.
func (h *Hub) dropLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)

	if subs, ok := h.sessions[s.retroID]; ok {
		delete(subs, s)
		if len(subs) == 0 {
			delete(h.sessions, s.retroID)
		}
	}
}

// Publish delivers events to every subscriber of their retrospective, in
// the order given. A subscriber whose buffer is full is evicted rather
// than letting it stall the session.
func (h *Hub) Publish(events ...event.Event) {
	if len(events) == 0 {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, e := range events {
		for sub := range h.sessions[e.RetrospectiveID] {
			select {
			case sub.ch <- e:
			default:
				h.dropLocked(sub)
			}
		}
	}
}

// SubscriberCount reports how many feeds a retrospective currently has.
func (h *Hub) SubscriberCount(retroID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions[retroID])
}
