package orchestrator

import (
	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

// reactionTargetResolvers maps target kinds to session membership checks.
// New reaction targets register here instead of growing dynamic dispatch.
var reactionTargetResolvers = map[domain.TargetKind]func(State, string) bool{
	domain.TargetReflection: func(s State, targetID string) bool { return s.reflectionIndex(targetID) >= 0 },
	domain.TargetTopic:      func(s State, targetID string) bool { return s.topicIndex(targetID) >= 0 },
}

// AddReaction attaches a vote or emoji to a reflection or topic. Votes are
// capped per author across the whole retrospective; the count and the
// insert run inside the same serialized command, so concurrent submissions
// can never slip a sixth vote through.
func AddReaction(s State, requesterID string, targetKind domain.TargetKind, targetID string, kind domain.ReactionKind, content string, newID func() (string, error)) Decision {
	if s.participantIndex(requesterID) < 0 {
		return reject(s, storage.ErrNotFound)
	}
	resolve, ok := reactionTargetResolvers[targetKind]
	if !ok {
		return reject(s, apperrors.New(apperrors.CodeReactionInvalidTarget, "reaction target kind is not supported"))
	}
	if !resolve(s, targetID) {
		return reject(s, storage.ErrNotFound)
	}

	normalized, err := domain.NormalizeReactionContent(kind, content)
	if err != nil {
		return reject(s, err)
	}
	if kind == domain.ReactionKindVote && domain.CountVotesByAuthor(s.Reactions, requesterID) >= domain.VoteQuota {
		return reject(s, apperrors.WithMetadata(apperrors.CodeReactionQuotaExceeded,
			"vote quota reached for this retrospective",
			map[string]string{"authorId": requesterID}))
	}

	reactionID, err := newID()
	if err != nil {
		return reject(s, err)
	}

	next := s.clone()
	reaction := domain.Reaction{
		ID:              reactionID,
		RetrospectiveID: next.Retro.ID,
		AuthorID:        requesterID,
		TargetKind:      targetKind,
		TargetID:        targetID,
		Kind:            kind,
		Content:         normalized,
	}
	next.Reactions = append(next.Reactions, reaction)

	decision := Decision{
		State:   next,
		Changes: []storage.Change{storage.PutReaction{Reaction: reaction}},
		Reply:   domain.ViewOfReaction(reaction),
	}
	if reactionVisible(next.Retro.Step, reaction.Kind) {
		decision.Events = []event.Event{event.New(next.Retro.ID, event.ActionReactionAdded,
			event.ReactionAddedParams{Reaction: domain.ViewOfReaction(reaction)})}
	}
	return decision
}

// RemoveReaction withdraws a reaction. Only the author can remove it;
// anything else reads as not found so reactions are never an oracle.
func RemoveReaction(s State, requesterID, reactionID string) Decision {
	for i, reaction := range s.Reactions {
		if reaction.ID != reactionID {
			continue
		}
		if reaction.AuthorID != requesterID {
			return reject(s, storage.ErrNotFound)
		}

		next := s.clone()
		next.Reactions = append(next.Reactions[:i], next.Reactions[i+1:]...)

		decision := Decision{
			State:   next,
			Changes: []storage.Change{storage.DeleteReaction{ID: reactionID}},
		}
		if reactionVisible(next.Retro.Step, reaction.Kind) {
			decision.Events = []event.Event{event.New(next.Retro.ID, event.ActionReactionRemoved,
				event.ReactionRemovedParams{
					ReactionID: reactionID,
					TargetID:   string(reaction.TargetKind) + "-" + reaction.TargetID,
				})}
		}
		return decision
	}
	return reject(s, storage.ErrNotFound)
}

// reactionVisible reports whether a reaction kind broadcasts at a step.
// Invisible reactions are acknowledged to the author only.
func reactionVisible(step domain.Step, kind domain.ReactionKind) bool {
	visibility := domain.VisibilityFor(step)
	if kind == domain.ReactionKindEmoji {
		return visibility.Emoji
	}
	return visibility.Votes
}
