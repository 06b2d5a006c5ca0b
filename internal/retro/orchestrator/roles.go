package orchestrator

import (
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// ElectRevealer hands the revealer token to a participant. Facilitator
// only. The outgoing revealer's refresh is emitted before the incoming
// one's so clients never observe two revealers.
func ElectRevealer(s State, requesterID, targetID string) Decision {
	if !s.Retro.IsFacilitator(requesterID) {
		return noop(s)
	}
	targetIdx := s.participantIndex(targetID)
	if targetIdx < 0 {
		return reject(s, storage.ErrNotFound)
	}

	previousID := s.Retro.RevealerID
	next := s.clone()
	next.Retro.RevealerID = targetID

	var events []event.Event
	if previousID != "" && previousID != targetID {
		if prevIdx := next.participantIndex(previousID); prevIdx >= 0 {
			events = append(events, event.New(next.Retro.ID, event.ActionParticipantRefreshed,
				event.ParticipantRefreshedParams{Participant: next.profileOf(next.Participants[prevIdx])}))
		}
	}
	events = append(events, event.New(next.Retro.ID, event.ActionParticipantRefreshed,
		event.ParticipantRefreshedParams{Participant: next.profileOf(next.Participants[targetIdx])}))

	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutRetrospective{Retrospective: next.Retro}},
		Events:  events,
	}
}

// RevealReflection flips a reflection visible. Revealer only; setting the
// flag is idempotent.
func RevealReflection(s State, requesterID, reflectionID string) Decision {
	if !s.Retro.IsRevealer(requesterID) {
		return noop(s)
	}
	idx := s.reflectionIndex(reflectionID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}

	next := s.clone()
	next.Reflections[idx].Revealed = true
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutReflection{Reflection: next.Reflections[idx]}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionItemRevealed,
			event.ItemRevealedParams{Reflection: domain.ViewOfReflection(next.Reflections[idx])})},
	}
}

// DropRevealerToken releases the revealer slot. Revealer only.
func DropRevealerToken(s State, requesterID string) Decision {
	if !s.Retro.IsRevealer(requesterID) {
		return noop(s)
	}

	next := s.clone()
	next.Retro.RevealerID = ""

	events := []event.Event{}
	if idx := next.participantIndex(requesterID); idx >= 0 {
		events = append(events, event.New(next.Retro.ID, event.ActionParticipantRefreshed,
			event.ParticipantRefreshedParams{Participant: next.profileOf(next.Participants[idx])}))
	}
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutRetrospective{Retrospective: next.Retro}},
		Events:  events,
	}
}
