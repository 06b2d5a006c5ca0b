// Package orchestrator holds the pure state transitions for a live
// retrospective. Every operation takes the current state and returns a
// Decision: the next state, the broadcast events it produced, and the
// storage changes that must persist before the state is adopted.
// Persistence and broadcast are independent consumers of a Decision, which
// keeps the transition logic testable without a live store or hub.
package orchestrator

import (
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// State is the authoritative in-memory state of one retrospective.
type State struct {
	Retro        domain.Retrospective
	Participants []domain.Participant
	Zones        []domain.Zone
	Reflections  []domain.Reflection
	Topics       []domain.Topic
	Reactions    []domain.Reaction
	Tasks        []domain.Task
}

// StateFromBundle builds live state from a persisted bundle.
func StateFromBundle(bundle storage.Bundle) State {
	return State{
		Retro:        bundle.Retrospective,
		Participants: bundle.Participants,
		Zones:        bundle.Zones,
		Reflections:  bundle.Reflections,
		Topics:       bundle.Topics,
		Reactions:    bundle.Reactions,
		Tasks:        bundle.Tasks,
	}
}

// Decision is the outcome of applying one command to a state.
//
// A zero Events/Changes/Err decision is a silent no-op: nothing persists,
// nothing broadcasts, the issuer receives no error. Err is reported to the
// issuing connection only and implies no state change.
type Decision struct {
	State   State
	Events  []event.Event
	Changes []storage.Change
	Reply   any
	Err     error
}

func noop(s State) Decision {
	return Decision{State: s}
}

func reject(s State, err error) Decision {
	return Decision{State: s, Err: err}
}

// clone copies the state so transitions never mutate their input.
func (s State) clone() State {
	return State{
		Retro:        s.Retro,
		Participants: append([]domain.Participant(nil), s.Participants...),
		Zones:        append([]domain.Zone(nil), s.Zones...),
		Reflections:  append([]domain.Reflection(nil), s.Reflections...),
		Topics:       append([]domain.Topic(nil), s.Topics...),
		Reactions:    append([]domain.Reaction(nil), s.Reactions...),
		Tasks:        append([]domain.Task(nil), s.Tasks...),
	}
}

func (s State) participantIndex(participantID string) int {
	for i, p := range s.Participants {
		if p.ID == participantID {
			return i
		}
	}
	return -1
}

func (s State) participantByAccount(accountID string) (domain.Participant, bool) {
	for _, p := range s.Participants {
		if p.AccountID == accountID {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (s State) reflectionIndex(reflectionID string) int {
	for i, r := range s.Reflections {
		if r.ID == reflectionID {
			return i
		}
	}
	return -1
}

func (s State) topicIndex(topicID string) int {
	for i, t := range s.Topics {
		if t.ID == topicID {
			return i
		}
	}
	return -1
}

func (s State) zoneIndex(zoneID string) int {
	for i, z := range s.Zones {
		if z.ID == zoneID {
			return i
		}
	}
	return -1
}

func (s State) taskIndex(taskID string) int {
	for i, t := range s.Tasks {
		if t.ID == taskID {
			return i
		}
	}
	return -1
}

func (s State) profileOf(p domain.Participant) domain.Profile {
	return domain.ProfileOf(s.Retro, p)
}

// votesForReflection counts votes on a reflection plus votes on its topic.
func (s State) votesForReflection(r domain.Reflection) int {
	votes := 0
	for _, reaction := range s.Reactions {
		if reaction.Kind != domain.ReactionKindVote {
			continue
		}
		switch reaction.TargetKind {
		case domain.TargetReflection:
			if reaction.TargetID == r.ID {
				votes++
			}
		case domain.TargetTopic:
			if r.TopicID != "" && reaction.TargetID == r.TopicID {
				votes++
			}
		}
	}
	return votes
}

// visibleViews builds the broadcast payload collections for the current
// step using the shared visibility rules.
func (s State) visibleViews() ([]domain.ReflectionView, []domain.ReactionView) {
	var reflections []domain.ReflectionView
	for _, r := range domain.VisibleReflections(s.Retro.Step, s.Reflections, "") {
		reflections = append(reflections, domain.ViewOfReflection(r))
	}
	var reactions []domain.ReactionView
	for _, r := range domain.VisibleReactions(s.Retro.Step, s.Reactions, "") {
		reactions = append(reactions, domain.ViewOfReaction(r))
	}
	return reflections, reactions
}
