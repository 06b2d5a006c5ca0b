package orchestrator

import (
	"testing"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
)

func votingFixture() State {
	s := stateAtStep(domain.StepVoting)
	s.Reflections = []domain.Reflection{
		{ID: "r1", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p1", Content: "a", Revealed: true, CreatedAt: testTime},
	}
	s.Topics = []domain.Topic{{ID: "t1", RetrospectiveID: "retro-1", Name: "CI"}}
	return s
}

func TestVoteQuotaIsPerAuthor(t *testing.T) {
	s := votingFixture()
	newID := sequentialIDs("reaction")

	for i := 0; i < domain.VoteQuota; i++ {
		d := AddReaction(s, "p1", domain.TargetReflection, "r1", domain.ReactionKindVote, "", newID)
		if d.Err != nil {
			t.Fatalf("vote %d: %v", i+1, d.Err)
		}
		s = d.State
	}

	// The sixth vote is over quota no matter the target.
	d := AddReaction(s, "p1", domain.TargetTopic, "t1", domain.ReactionKindVote, "", newID)
	wantCode(t, d.Err, apperrors.CodeReactionQuotaExceeded)

	// Another author's quota is untouched.
	d = AddReaction(s, "p2", domain.TargetReflection, "r1", domain.ReactionKindVote, "", newID)
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if got := domain.CountVotesByAuthor(d.State.Reactions, "p2"); got != 1 {
		t.Fatalf("p2 votes = %d", got)
	}
}

func TestVoteContentIsForcedToSentinel(t *testing.T) {
	s := votingFixture()
	d := AddReaction(s, "p1", domain.TargetReflection, "r1", domain.ReactionKindVote, "whatever", sequentialIDs("reaction"))
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if d.State.Reactions[0].Content != domain.VoteContent {
		t.Fatalf("content = %q", d.State.Reactions[0].Content)
	}
}

func TestAddReactionValidation(t *testing.T) {
	s := votingFixture()
	newID := sequentialIDs("reaction")

	d := AddReaction(s, "missing", domain.TargetReflection, "r1", domain.ReactionKindVote, "", newID)
	wantCode(t, d.Err, apperrors.CodeNotFound)

	d = AddReaction(s, "p1", domain.TargetKind("zone"), "z1", domain.ReactionKindVote, "", newID)
	wantCode(t, d.Err, apperrors.CodeReactionInvalidTarget)

	d = AddReaction(s, "p1", domain.TargetReflection, "missing", domain.ReactionKindVote, "", newID)
	wantCode(t, d.Err, apperrors.CodeNotFound)

	d = AddReaction(s, "p1", domain.TargetReflection, "r1", domain.ReactionKindEmoji, "not_an_emoji", newID)
	wantCode(t, d.Err, apperrors.CodeReactionInvalidEmoji)
}

func TestVoteDuringVotingAcksWithoutBroadcast(t *testing.T) {
	s := votingFixture()

	d := AddReaction(s, "p1", domain.TargetReflection, "r1", domain.ReactionKindVote, "", sequentialIDs("reaction"))
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	// Votes stay hidden until actions; the author still gets an ack.
	if len(d.Events) != 0 {
		t.Fatalf("expected no events, got %+v", d.Events)
	}
	if d.Reply == nil {
		t.Fatal("missing reply")
	}
	if len(d.Changes) != 1 {
		t.Fatalf("changes = %d", len(d.Changes))
	}
}

func TestEmojiDuringVotingBroadcasts(t *testing.T) {
	s := votingFixture()

	d := AddReaction(s, "p2", domain.TargetReflection, "r1", domain.ReactionKindEmoji, "rocket", sequentialIDs("reaction"))
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if len(d.Events) != 1 || d.Events[0].Action != event.ActionReactionAdded {
		t.Fatalf("unexpected events %+v", d.Events)
	}
	params := d.Events[0].Params.(event.ReactionAddedParams)
	if params.Reaction.TargetID != "reflection-r1" {
		t.Fatalf("target = %s", params.Reaction.TargetID)
	}
	if params.Reaction.Content != "rocket" {
		t.Fatalf("content = %q", params.Reaction.Content)
	}
}

func TestRemoveReactionAuthorOnly(t *testing.T) {
	s := votingFixture()
	s.Reactions = []domain.Reaction{
		{ID: "x1", RetrospectiveID: "retro-1", AuthorID: "p1", TargetKind: domain.TargetReflection, TargetID: "r1", Kind: domain.ReactionKindEmoji, Content: "clap"},
	}

	d := RemoveReaction(s, "p2", "x1")
	wantCode(t, d.Err, apperrors.CodeNotFound)

	d = RemoveReaction(s, "p1", "x1")
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if len(d.State.Reactions) != 0 {
		t.Fatalf("reactions = %d", len(d.State.Reactions))
	}
	params := d.Events[0].Params.(event.ReactionRemovedParams)
	if params.ReactionID != "x1" || params.TargetID != "reflection-r1" {
		t.Fatalf("params = %+v", params)
	}
}
