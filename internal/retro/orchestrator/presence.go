package orchestrator

import (
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// Connect marks a participant logged in. If the connecting participant is
// the session's original (earliest-joined) member and someone else holds
// the facilitator role, the role returns to them.
func Connect(s State, participantID string) Decision {
	idx := s.participantIndex(participantID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}

	next := s.clone()
	next.Participants[idx].LoggedIn = true
	changes := []storage.Change{storage.PutParticipant{Participant: next.Participants[idx]}}

	original, hasOriginal := domain.OriginalParticipant(next.Participants)
	reclaim := hasOriginal && original.ID == participantID && !next.Retro.IsFacilitator(participantID)

	var events []event.Event
	if reclaim {
		displacedID := next.Retro.FacilitatorID
		next.Retro.FacilitatorID = participantID
		changes = append(changes, storage.PutRetrospective{Retrospective: next.Retro})

		events = append(events, event.New(next.Retro.ID, event.ActionFacilitatorChanged,
			event.FacilitatorChangedParams{Participant: next.profileOf(next.Participants[idx])}))
		if displacedIdx := next.participantIndex(displacedID); displacedIdx >= 0 {
			events = append(events, event.New(next.Retro.ID, event.ActionParticipantRefreshed,
				event.ParticipantRefreshedParams{Participant: next.profileOf(next.Participants[displacedIdx])}))
		}
	} else {
		events = append(events, event.New(next.Retro.ID, event.ActionParticipantRefreshed,
			event.ParticipantRefreshedParams{Participant: next.profileOf(next.Participants[idx])}))
	}

	return Decision{State: next, Changes: changes, Events: events}
}

// Disconnect marks a participant logged out. Facilitator handoff is not
// immediate; the presence tracker schedules HandleInactivity after a grace
// window to tolerate transient reconnects.
func Disconnect(s State, participantID string) Decision {
	idx := s.participantIndex(participantID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}

	next := s.clone()
	next.Participants[idx].LoggedIn = false
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutParticipant{Participant: next.Participants[idx]}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionParticipantRefreshed,
			event.ParticipantRefreshedParams{Participant: next.profileOf(next.Participants[idx])})},
	}
}

// HandleInactivity runs after the disconnect grace window. If the
// participant came back meanwhile it does nothing. If a facilitator stayed
// away, the role passes to the most senior participant still logged in;
// with nobody logged in the role stays put and facilitator commands remain
// no-ops until someone reconnects.
func HandleInactivity(s State, participantID string) Decision {
	idx := s.participantIndex(participantID)
	if idx < 0 {
		return noop(s)
	}
	if s.Participants[idx].LoggedIn {
		return noop(s)
	}
	if !s.Retro.IsFacilitator(participantID) {
		return noop(s)
	}

	var successor *domain.Participant
	for _, p := range domain.SortParticipantsByJoin(s.Participants) {
		if p.ID != participantID && p.LoggedIn {
			candidate := p
			successor = &candidate
			break
		}
	}
	if successor == nil {
		return noop(s)
	}

	next := s.clone()
	next.Retro.FacilitatorID = successor.ID

	events := []event.Event{event.New(next.Retro.ID, event.ActionFacilitatorChanged,
		event.FacilitatorChangedParams{Participant: next.profileOf(*successor)})}
	events = append(events, event.New(next.Retro.ID, event.ActionParticipantRefreshed,
		event.ParticipantRefreshedParams{Participant: next.profileOf(next.Participants[idx])}))

	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutRetrospective{Retrospective: next.Retro}},
		Events:  events,
	}
}
