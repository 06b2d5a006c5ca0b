// Package event defines the broadcast event contract: the action names and
// parameter payloads every subscribed connection receives.
package event

import (
	"time"

	"github.com/louisbranch/retroboard/internal/retro/domain"
)

// Action tags an event on the wire.
type Action string

// Broadcast actions.
const (
	ActionParticipantRefreshed Action = "participantRefreshed"
	ActionFacilitatorChanged   Action = "facilitatorChanged"
	ActionTimerSet             Action = "timerSet"
	ActionItemRevealed         Action = "itemRevealed"
	ActionDiscussedItemChanged Action = "discussedItemChanged"
	ActionPhaseAdvanced        Action = "phaseAdvanced"
	ActionColorChanged         Action = "colorChanged"
	ActionReflectionGrouped    Action = "reflectionGrouped"
	ActionReactionAdded        Action = "reactionAdded"
	ActionReactionRemoved      Action = "reactionRemoved"
	ActionTaskChanged          Action = "taskChanged"
)

// Event is one ordered broadcast message scoped to a retrospective.
type Event struct {
	RetrospectiveID string
	Action          Action
	Params          any
}

// New builds an event for a retrospective.
func New(retroID string, action Action, params any) Event {
	return Event{RetrospectiveID: retroID, Action: action, Params: params}
}

// ParticipantRefreshedParams carries a participant's refreshed profile.
type ParticipantRefreshedParams struct {
	Participant domain.Profile `json:"participant"`
}

// FacilitatorChangedParams announces the new facilitator.
type FacilitatorChangedParams struct {
	Participant domain.Profile `json:"participant"`
}

// TimerSetParams carries the absolute timer deadline. Clients compute the
// remaining duration locally to avoid clock-skew drift.
type TimerSetParams struct {
	TimerEndAt time.Time `json:"timerEndAt"`
}

// ItemRevealedParams carries a newly revealed reflection.
type ItemRevealedParams struct {
	Reflection domain.ReflectionView `json:"reflection"`
}

// DiscussedItemChangedParams carries the reflection now under discussion.
type DiscussedItemChangedParams struct {
	Reflection domain.ReflectionView `json:"reflection"`
}

// PhaseAdvancedParams carries the new step and the collections it makes
// visible, filtered with the same rules as snapshots.
type PhaseAdvancedParams struct {
	Step                Step                    `json:"step"`
	VisibleReflections  []domain.ReflectionView `json:"visibleReflections"`
	VisibleReactions    []domain.ReactionView   `json:"visibleReactions,omitempty"`
	DiscussedReflection *domain.ReflectionView  `json:"discussedReflection,omitempty"`
}

// Step aliases the domain step for wire payloads.
type Step = domain.Step

// ColorChangedParams carries a recolored profile and the remaining palette.
type ColorChangedParams struct {
	Participant     domain.Profile `json:"participant"`
	AvailableColors []string       `json:"availableColors"`
}

// ReflectionGroupedParams carries a reflection after topic assignment.
type ReflectionGroupedParams struct {
	Reflection domain.ReflectionView `json:"reflection"`
}

// ReactionAddedParams carries a newly visible reaction.
type ReactionAddedParams struct {
	Reaction domain.ReactionView `json:"reaction"`
}

// ReactionRemovedParams identifies a withdrawn reaction.
type ReactionRemovedParams struct {
	ReactionID string `json:"reactionId"`
	TargetID   string `json:"targetId"`
}

// TaskChangedParams carries a created/updated task, or its ID when deleted.
type TaskChangedParams struct {
	Task    *domain.TaskView `json:"task,omitempty"`
	TaskID  string           `json:"taskId"`
	Deleted bool             `json:"deleted,omitempty"`
}
