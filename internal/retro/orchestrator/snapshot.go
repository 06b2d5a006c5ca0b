package orchestrator

import (
	"time"

	"github.com/louisbranch/retroboard/internal/retro/domain"
)

// ZoneView is the wire representation of a zone.
type ZoneView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TopicView is the wire representation of a topic.
type TopicView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Snapshot is the full phase-filtered state served to a connecting
// participant. Late joiners pull this instead of replaying history.
type Snapshot struct {
	RetrospectiveID string                  `json:"retrospectiveId"`
	Name            string                  `json:"name"`
	Kind            domain.Kind             `json:"kind"`
	Step            domain.Step             `json:"step"`
	Participants    []domain.Profile        `json:"participants"`
	Zones           []ZoneView              `json:"zones"`
	Topics          []TopicView             `json:"topics,omitempty"`
	Reflections     []domain.ReflectionView `json:"reflections"`
	Reactions       []domain.ReactionView   `json:"reactions"`
	Tasks           []domain.TaskView       `json:"tasks,omitempty"`
	Discussed       *domain.ReflectionView  `json:"discussedReflection,omitempty"`
	AvailableColors []string                `json:"availableColors"`
	TimerEndAt      *time.Time              `json:"timerEndAt,omitempty"`
	ServerTime      *time.Time              `json:"serverTime,omitempty"`
}

// BuildSnapshot renders the state for one viewer. The viewer's own
// reflections and reactions are always included; shared collections follow
// the step's visibility rules, the same rules broadcast payloads use.
func BuildSnapshot(s State, viewerID string, now time.Time) Snapshot {
	snapshot := Snapshot{
		RetrospectiveID: s.Retro.ID,
		Name:            s.Retro.Name,
		Kind:            s.Retro.Kind,
		Step:            s.Retro.Step,
		AvailableColors: domain.AvailableColors(s.Participants),
	}

	for _, p := range domain.SortParticipantsByJoin(s.Participants) {
		snapshot.Participants = append(snapshot.Participants, s.profileOf(p))
	}
	for _, z := range s.Zones {
		snapshot.Zones = append(snapshot.Zones, ZoneView{ID: z.ID, Name: z.Name})
	}
	for _, t := range s.Topics {
		snapshot.Topics = append(snapshot.Topics, TopicView{ID: t.ID, Name: t.Name})
	}
	for _, r := range domain.VisibleReflections(s.Retro.Step, s.Reflections, viewerID) {
		snapshot.Reflections = append(snapshot.Reflections, domain.ViewOfReflection(r))
	}
	for _, r := range domain.VisibleReactions(s.Retro.Step, s.Reactions, viewerID) {
		snapshot.Reactions = append(snapshot.Reactions, domain.ViewOfReaction(r))
	}
	for _, t := range s.Tasks {
		snapshot.Tasks = append(snapshot.Tasks, domain.ViewOfTask(t))
	}

	if idx := s.reflectionIndex(s.Retro.DiscussedReflectionID); idx >= 0 {
		view := domain.ViewOfReflection(s.Reflections[idx])
		snapshot.Discussed = &view
	}

	// Timer expiry is evaluated lazily; an expired deadline is simply
	// omitted. ServerTime lets clients correct for clock skew.
	if s.Retro.TimerPending(now) {
		endAt := s.Retro.TimerEndAt.UTC()
		serverTime := now.UTC()
		snapshot.TimerEndAt = &endAt
		snapshot.ServerTime = &serverTime
	}

	return snapshot
}
