package domain

import (
	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
)

// ReactionKind distinguishes votes from emoji reactions.
type ReactionKind string

const (
	// ReactionKindVote counts toward the per-author vote quota.
	ReactionKindVote ReactionKind = "vote"
	// ReactionKindEmoji is a free emoji response.
	ReactionKindEmoji ReactionKind = "emoji"
)

// TargetKind identifies what a reaction is attached to.
type TargetKind string

const (
	// TargetReflection attaches a reaction to a single reflection.
	TargetReflection TargetKind = "reflection"
	// TargetTopic attaches a reaction to a grouped topic.
	TargetTopic TargetKind = "topic"
)

// VoteContent is the fixed content stored for vote reactions.
const VoteContent = "✋"

// VoteQuota caps vote reactions per author within one retrospective.
const VoteQuota = 5

// EmojiList is the fixed set of accepted emoji reactions.
var EmojiList = map[string]string{
	"joy":             "😂",
	"sweat_smile":     "😅",
	"star_struck":     "🤩",
	"hugging_face":    "🤗",
	"exploding_head":  "🤯",
	"rage":            "😡",
	"thinking_face":   "🤔",
	"pray":            "🙏",
	"clap":            "👏",
	"muscle":          "💪",
	"fingers_crossed": "🤞",
	"rocket":          "🚀",
	"fire":            "🔥",
}

// Reaction is a vote or emoji attached to a reflection or topic.
type Reaction struct {
	ID              string
	RetrospectiveID string
	AuthorID        string
	TargetKind      TargetKind
	TargetID        string
	Kind            ReactionKind
	Content         string
}

// NormalizeReactionContent validates reaction content for its kind. Vote
// content is forced to the fixed sentinel regardless of input.
func NormalizeReactionContent(kind ReactionKind, content string) (string, error) {
	switch kind {
	case ReactionKindVote:
		return VoteContent, nil
	case ReactionKindEmoji:
		if _, ok := EmojiList[content]; !ok {
			return "", apperrors.WithMetadata(apperrors.CodeReactionInvalidEmoji,
				"content is not an accepted emoji", map[string]string{"content": content})
		}
		return content, nil
	default:
		return "", apperrors.New(apperrors.CodeReactionInvalidTarget, "reaction kind is not supported")
	}
}

// CountVotesByAuthor counts vote-kind reactions by one author across a
// retrospective, regardless of target.
func CountVotesByAuthor(reactions []Reaction, authorID string) int {
	count := 0
	for _, r := range reactions {
		if r.Kind == ReactionKindVote && r.AuthorID == authorID {
			count++
		}
	}
	return count
}

// ReactionView is the wire representation of a reaction. TargetID is
// prefixed with the target kind so clients can address mixed targets.
type ReactionView struct {
	ID       string `json:"id"`
	AuthorID string `json:"authorId"`
	TargetID string `json:"targetId"`
	Kind     string `json:"kind"`
	Content  string `json:"content"`
}

// ViewOfReaction builds the wire payload for a reaction.
func ViewOfReaction(r Reaction) ReactionView {
	return ReactionView{
		ID:       r.ID,
		AuthorID: r.AuthorID,
		TargetID: string(r.TargetKind) + "-" + r.TargetID,
		Kind:     string(r.Kind),
		Content:  r.Content,
	}
}
