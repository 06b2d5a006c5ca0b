package domain

import "testing"

func sampleReflections() []Reflection {
	return []Reflection{
		{ID: "r1", OwnerID: "p1"},
		{ID: "r2", OwnerID: "p2"},
	}
}

func sampleReactions() []Reaction {
	return []Reaction{
		{ID: "x1", AuthorID: "p1", Kind: ReactionKindEmoji, Content: "fire"},
		{ID: "x2", AuthorID: "p2", Kind: ReactionKindVote, Content: VoteContent},
	}
}

func TestVisibilityBeforeGrouping(t *testing.T) {
	for _, step := range []Step{StepGathering, StepThinking} {
		if got := VisibleReflections(step, sampleReflections(), ""); len(got) != 0 {
			t.Fatalf("%s: expected no shared reflections, got %d", step, len(got))
		}
		if got := VisibleReactions(step, sampleReactions(), ""); len(got) != 0 {
			t.Fatalf("%s: expected no shared reactions, got %d", step, len(got))
		}
	}
}

func TestVisibilityIncludesOwnContent(t *testing.T) {
	got := VisibleReflections(StepThinking, sampleReflections(), "p1")
	if len(got) != 1 || got[0].ID != "r1" {
		t.Fatalf("expected only own reflection, got %+v", got)
	}
	reactions := VisibleReactions(StepVoting, sampleReactions(), "p2")
	foundOwnVote := false
	for _, r := range reactions {
		if r.ID == "x2" {
			foundOwnVote = true
		}
	}
	if !foundOwnVote {
		t.Fatal("expected author to see their own vote during voting")
	}
}

func TestVisibilityGroupingHidesVotes(t *testing.T) {
	for _, step := range []Step{StepGrouping, StepVoting} {
		if got := VisibleReflections(step, sampleReflections(), ""); len(got) != 2 {
			t.Fatalf("%s: expected all reflections, got %d", step, len(got))
		}
		got := VisibleReactions(step, sampleReactions(), "")
		if len(got) != 1 || got[0].Kind != ReactionKindEmoji {
			t.Fatalf("%s: expected emoji only, got %+v", step, got)
		}
	}
}

func TestVisibilityActionsShowsEverything(t *testing.T) {
	for _, step := range []Step{StepActions, StepDone} {
		if got := VisibleReactions(step, sampleReactions(), ""); len(got) != 2 {
			t.Fatalf("%s: expected all reactions, got %d", step, len(got))
		}
	}
}
