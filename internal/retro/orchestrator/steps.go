package orchestrator

import (
	"sort"
	"time"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// AdvanceStep moves the retrospective to its next step. Only the
// facilitator can steer; anyone else is silently ignored. Advancing past
// the terminal step is a no-op.
func AdvanceStep(s State, requesterID string, now time.Time) Decision {
	if !s.Retro.IsFacilitator(requesterID) {
		return noop(s)
	}
	nextStep, ok := domain.NextStep(s.Retro.Step)
	if !ok {
		return noop(s)
	}

	next := s.clone()
	next.Retro.Step = nextStep
	next.Retro.UpdatedAt = now.UTC()

	var discussedView *domain.ReflectionView
	if discussed, found := defaultDiscussedReflection(next); found {
		next.Retro.DiscussedReflectionID = discussed.ID
		view := domain.ViewOfReflection(discussed)
		discussedView = &view
	}

	reflections, reactions := next.visibleViews()
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutRetrospective{Retrospective: next.Retro}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionPhaseAdvanced, event.PhaseAdvancedParams{
			Step:                next.Retro.Step,
			VisibleReflections:  reflections,
			VisibleReactions:    reactions,
			DiscussedReflection: discussedView,
		})},
	}
}

// defaultDiscussedReflection picks the reflection to open the new step on:
// most votes first (counting votes on the reflection and on its topic),
// then the earliest reflection of the earliest-joined owner. Unrevealed
// reflections win zero-vote ties so the reveal flow starts at the top.
func defaultDiscussedReflection(s State) (domain.Reflection, bool) {
	if len(s.Reflections) == 0 {
		return domain.Reflection{}, false
	}

	joinOrder := make(map[string]int, len(s.Participants))
	for i, p := range domain.SortParticipantsByJoin(s.Participants) {
		joinOrder[p.ID] = i
	}

	candidates := append([]domain.Reflection(nil), s.Reflections...)
	sort.SliceStable(candidates, func(i, j int) bool {
		votesI, votesJ := s.votesForReflection(candidates[i]), s.votesForReflection(candidates[j])
		if votesI != votesJ {
			return votesI > votesJ
		}
		if votesI == 0 && candidates[i].Revealed != candidates[j].Revealed {
			return !candidates[i].Revealed
		}
		ownerI, ownerJ := joinOrder[candidates[i].OwnerID], joinOrder[candidates[j].OwnerID]
		if ownerI != ownerJ {
			return ownerI < ownerJ
		}
		return candidates[i].CreatedAt.Before(candidates[j].CreatedAt)
	})
	return candidates[0], true
}

// SetDiscussedReflection changes the reflection under discussion.
// Facilitator only; a reflection outside the session fails with NotFound.
func SetDiscussedReflection(s State, requesterID, reflectionID string) Decision {
	if !s.Retro.IsFacilitator(requesterID) {
		return noop(s)
	}
	idx := s.reflectionIndex(reflectionID)
	if idx < 0 {
		return reject(s, storage.ErrNotFound)
	}

	next := s.clone()
	next.Retro.DiscussedReflectionID = reflectionID
	view := domain.ViewOfReflection(next.Reflections[idx])
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutRetrospective{Retrospective: next.Retro}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionDiscussedItemChanged,
			event.DiscussedItemChangedParams{Reflection: view})},
	}
}

// SetDiscussedTopic points the discussion at a topic by selecting its
// earliest reflection.
func SetDiscussedTopic(s State, requesterID, topicID string) Decision {
	if !s.Retro.IsFacilitator(requesterID) {
		return noop(s)
	}
	if s.topicIndex(topicID) < 0 {
		return reject(s, storage.ErrNotFound)
	}

	var first *domain.Reflection
	for i := range s.Reflections {
		r := s.Reflections[i]
		if r.TopicID != topicID {
			continue
		}
		if first == nil || r.CreatedAt.Before(first.CreatedAt) {
			first = &s.Reflections[i]
		}
	}
	if first == nil {
		return reject(s, storage.ErrNotFound)
	}
	return SetDiscussedReflection(s, requesterID, first.ID)
}

// StartTimer sets an absolute countdown deadline. Facilitator only.
func StartTimer(s State, requesterID string, duration time.Duration, now time.Time) Decision {
	if !s.Retro.IsFacilitator(requesterID) {
		return noop(s)
	}
	if duration <= 0 {
		return reject(s, apperrors.New(apperrors.CodeTimerInvalidDuration, "timer duration must be positive"))
	}

	endAt := now.UTC().Add(duration)
	next := s.clone()
	next.Retro.TimerEndAt = &endAt
	return Decision{
		State:   next,
		Changes: []storage.Change{storage.PutRetrospective{Retrospective: next.Retro}},
		Events: []event.Event{event.New(next.Retro.ID, event.ActionTimerSet,
			event.TimerSetParams{TimerEndAt: endAt})},
	}
}
