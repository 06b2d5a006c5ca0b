// Package domain defines the retrospective entities and the rules that are
// independent of transport and storage: step ordering, phase-gated
// visibility, the participant color palette, and reaction constraints.
package domain

import (
	"strings"
	"time"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/platform/id"
)

// Kind names the activity template a retrospective runs.
type Kind string

// Supported activity templates.
const (
	KindKDS           Kind = "kds"
	KindKALM          Kind = "kalm"
	KindDAKI          Kind = "daki"
	KindStarfish      Kind = "starfish"
	KindPMI           Kind = "pmi"
	KindGladSadMad    Kind = "glad_sad_mad"
	KindFourL         Kind = "four_l"
	KindSailboat      Kind = "sailboat"
	KindTruthsLie     Kind = "truths_lie"
	KindTwitter       Kind = "twitter"
	KindTimeline      Kind = "timeline"
	KindTrafficLights Kind = "traffic_lights"
	KindOscarsGerards Kind = "oscars_gerards"
	KindStarWars      Kind = "star_wars"
	KindDayZ          Kind = "day_z"
	KindDixit         Kind = "dixit"
	KindPostcard      Kind = "postcard"
)

// IsValid reports whether the kind is a supported template.
func (k Kind) IsValid() bool {
	switch k {
	case KindKDS, KindKALM, KindDAKI, KindStarfish, KindPMI, KindGladSadMad,
		KindFourL, KindSailboat, KindTruthsLie, KindTwitter, KindTimeline,
		KindTrafficLights, KindOscarsGerards, KindStarWars, KindDayZ,
		KindDixit, KindPostcard:
		return true
	default:
		return false
	}
}

// zoneTemplates maps kinds to the zones created with the retrospective.
// Kinds without an entry get a single free-form zone.
var zoneTemplates = map[Kind][]string{
	KindKDS:        {"Keep", "Drop", "Start"},
	KindKALM:       {"Keep", "Add", "Less", "More"},
	KindDAKI:       {"Drop", "Add", "Keep", "Improve"},
	KindStarfish:   {"Keep", "Less", "More", "Start", "Stop"},
	KindPMI:        {"Plus", "Minus", "Interesting"},
	KindGladSadMad: {"Glad", "Sad", "Mad"},
	KindFourL:      {"Liked", "Learned", "Lacked", "Longed for"},
	KindSailboat:   {"Wind", "Anchor", "Rocks", "Island"},
}

// ZoneNames returns the zone names created for a kind.
func ZoneNames(kind Kind) []string {
	if names, ok := zoneTemplates[kind]; ok {
		return append([]string(nil), names...)
	}
	return []string{"Notes"}
}

// Step is one stage of the retrospective lifecycle.
type Step string

// Lifecycle steps, in order. StepDone is terminal.
const (
	StepGathering Step = "gathering"
	StepThinking  Step = "thinking"
	StepGrouping  Step = "grouping"
	StepVoting    Step = "voting"
	StepActions   Step = "actions"
	StepDone      Step = "done"
)

var stepOrder = []Step{StepGathering, StepThinking, StepGrouping, StepVoting, StepActions, StepDone}

// StepIndex returns the position of a step in the lifecycle, or -1.
func StepIndex(step Step) int {
	for i, s := range stepOrder {
		if s == step {
			return i
		}
	}
	return -1
}

// NextStep returns the step after the given one. The second return is false
// when the step is terminal or unknown.
func NextStep(step Step) (Step, bool) {
	idx := StepIndex(step)
	if idx < 0 || idx >= len(stepOrder)-1 {
		return step, false
	}
	return stepOrder[idx+1], true
}

// StepReached reports whether current is at or past the target step.
func StepReached(current, target Step) bool {
	currentIdx := StepIndex(current)
	targetIdx := StepIndex(target)
	return currentIdx >= 0 && targetIdx >= 0 && currentIdx >= targetIdx
}

// Retrospective is one live retrospective instance, the unit of isolation
// for all state and broadcast.
type Retrospective struct {
	ID                    string
	Name                  string
	Kind                  Kind
	Step                  Step
	FacilitatorID         string
	RevealerID            string
	DiscussedReflectionID string
	TimerEndAt            *time.Time // nil when no timer has been started
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// IsFacilitator reports whether the participant currently steers the session.
func (r Retrospective) IsFacilitator(participantID string) bool {
	return participantID != "" && r.FacilitatorID == participantID
}

// IsRevealer reports whether the participant holds the revealer token.
func (r Retrospective) IsRevealer(participantID string) bool {
	return participantID != "" && r.RevealerID == participantID
}

// TimerPending reports whether a started timer has not yet expired.
func (r Retrospective) TimerPending(now time.Time) bool {
	return r.TimerEndAt != nil && r.TimerEndAt.After(now)
}

// CreateRetrospectiveInput describes the metadata needed to create a retrospective.
type CreateRetrospectiveInput struct {
	Name string
	Kind Kind
}

// CreateRetrospective builds a new retrospective in the initial step, with
// zones derived from the kind's template.
func CreateRetrospective(input CreateRetrospectiveInput, now func() time.Time, idGenerator func() (string, error)) (Retrospective, []Zone, error) {
	if now == nil {
		now = time.Now
	}
	if idGenerator == nil {
		idGenerator = id.NewID
	}

	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return Retrospective{}, nil, apperrors.New(apperrors.CodeRetrospectiveNameEmpty, "retrospective name is required")
	}
	if !input.Kind.IsValid() {
		return Retrospective{}, nil, apperrors.New(apperrors.CodeRetrospectiveInvalidKind, "retrospective kind is not supported")
	}

	retroID, err := idGenerator()
	if err != nil {
		return Retrospective{}, nil, err
	}

	createdAt := now().UTC()
	retro := Retrospective{
		ID:        retroID,
		Name:      input.Name,
		Kind:      input.Kind,
		Step:      StepGathering,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}

	var zones []Zone
	for _, name := range ZoneNames(input.Kind) {
		zoneID, err := idGenerator()
		if err != nil {
			return Retrospective{}, nil, err
		}
		zones = append(zones, Zone{
			ID:              zoneID,
			RetrospectiveID: retroID,
			Name:            name,
		})
	}
	return retro, zones, nil
}
