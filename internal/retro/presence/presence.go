// Package presence tracks connection liveness per participant and turns it
// into session commands. A disconnect starts a grace window; only when the
// window expires without a reconnect does the session consider the
// participant gone for role purposes.
package presence

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultGrace is the reconnect window before inactivity handling kicks in.
const DefaultGrace = 15 * time.Second

// Sessions is the slice of the session registry presence needs.
type Sessions interface {
	Connect(ctx context.Context, retroID, participantID string) error
	Disconnect(ctx context.Context, retroID, participantID string) error
	HandleInactivity(ctx context.Context, retroID, participantID string) error
}

// Tracker owns one pending inactivity timer per participant.
type Tracker struct {
	sessions Sessions
	grace    time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewTracker builds a tracker. A non-positive grace falls back to
// DefaultGrace.
func NewTracker(sessions Sessions, grace time.Duration) *Tracker {
	if grace <= 0 {
		grace = DefaultGrace
	}
	return &Tracker{
		sessions: sessions,
		grace:    grace,
		timers:   make(map[string]*time.Timer),
	}
}

func timerKey(retroID, participantID string) string {
	return retroID + "/" + participantID
}

// Connected cancels any pending inactivity timer and marks the participant
// online.
func (t *Tracker) Connected(ctx context.Context, retroID, participantID string) error {
	key := timerKey(retroID, participantID)
	t.mu.Lock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
		delete(t.timers, key)
	}
	t.mu.Unlock()

	return t.sessions.Connect(ctx, retroID, participantID)
}

// Disconnected marks the participant offline and schedules the inactivity
// check. A second disconnect for the same participant resets the window.
func (t *Tracker) Disconnected(ctx context.Context, retroID, participantID string) error {
	if err := t.sessions.Disconnect(ctx, retroID, participantID); err != nil {
		return err
	}

	key := timerKey(retroID, participantID)
	t.mu.Lock()
	defer t.mu.Unlock()
	if timer, ok := t.timers[key]; ok {
		timer.Stop()
	}
	t.timers[key] = time.AfterFunc(t.grace, func() {
		t.expire(retroID, participantID)
	})
	return nil
}

// expire runs when a grace window lapses. The session decides whether a
// handoff is due; a participant who reconnected meanwhile makes it a no-op
// there as well.
func (t *Tracker) expire(retroID, participantID string) {
	key := timerKey(retroID, participantID)
	t.mu.Lock()
	delete(t.timers, key)
	t.mu.Unlock()

	if err := t.sessions.HandleInactivity(context.Background(), retroID, participantID); err != nil {
		log.Printf("board: inactivity check for %s in %s: %v", participantID, retroID, err)
	}
}

// Stop cancels every pending timer. Used on shutdown.
func (t *Tracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for key, timer := range t.timers {
		timer.Stop()
		delete(t.timers, key)
	}
}
