package domain

// Visibility describes which shared collections a step exposes. It is the
// single source of truth for filtering, applied identically to snapshots
// and broadcast payloads.
type Visibility struct {
	Reflections bool
	Emoji       bool
	Votes       bool
}

// VisibilityFor returns the visibility rules for a step.
//
//	gathering, thinking: content private to its author
//	grouping, voting:    all reflections, emoji reactions only
//	actions, done:       everything
func VisibilityFor(step Step) Visibility {
	switch step {
	case StepGrouping, StepVoting:
		return Visibility{Reflections: true, Emoji: true}
	case StepActions, StepDone:
		return Visibility{Reflections: true, Emoji: true, Votes: true}
	default:
		return Visibility{}
	}
}

// VisibleReflections filters reflections for a viewer at a step. Own
// reflections are always included; shared ones only once the step exposes
// them. An empty viewerID filters strictly by step (broadcast payloads).
func VisibleReflections(step Step, reflections []Reflection, viewerID string) []Reflection {
	visibility := VisibilityFor(step)
	var visible []Reflection
	for _, r := range reflections {
		if visibility.Reflections || (viewerID != "" && r.OwnerID == viewerID) {
			visible = append(visible, r)
		}
	}
	return visible
}

// VisibleReactions filters reactions for a viewer at a step. Own reactions
// are always included for the viewer; shared ones follow the step rules.
func VisibleReactions(step Step, reactions []Reaction, viewerID string) []Reaction {
	visibility := VisibilityFor(step)
	var visible []Reaction
	for _, r := range reactions {
		own := viewerID != "" && r.AuthorID == viewerID
		switch r.Kind {
		case ReactionKindEmoji:
			if visibility.Emoji || own {
				visible = append(visible, r)
			}
		case ReactionKindVote:
			if visibility.Votes || own {
				visible = append(visible, r)
			}
		}
	}
	return visible
}
