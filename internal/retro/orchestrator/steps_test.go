package orchestrator

import (
	"testing"
	"time"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
	"github.com/louisbranch/retroboard/internal/retro/event"
	"github.com/louisbranch/retroboard/internal/retro/storage"
)

func TestAdvanceStepWalksTheLifecycleInOrder(t *testing.T) {
	s := newTestState()
	want := []domain.Step{
		domain.StepThinking, domain.StepGrouping, domain.StepVoting,
		domain.StepActions, domain.StepDone,
	}

	for _, step := range want {
		d := AdvanceStep(s, "p1", testTime)
		if d.Err != nil {
			t.Fatalf("AdvanceStep to %s: %v", step, d.Err)
		}
		if d.State.Retro.Step != step {
			t.Fatalf("step = %s, want %s", d.State.Retro.Step, step)
		}
		if len(d.Events) != 1 || d.Events[0].Action != event.ActionPhaseAdvanced {
			t.Fatalf("expected a single phaseAdvanced event, got %+v", d.Events)
		}
		params, ok := d.Events[0].Params.(event.PhaseAdvancedParams)
		if !ok {
			t.Fatalf("unexpected params type %T", d.Events[0].Params)
		}
		if params.Step != step {
			t.Fatalf("event step = %s, want %s", params.Step, step)
		}
		s = d.State
	}

	// done is terminal; further advances change nothing.
	wantSilent(t, AdvanceStep(s, "p1", testTime))
}

func TestAdvanceStepIgnoresNonFacilitators(t *testing.T) {
	s := newTestState()
	d := AdvanceStep(s, "p2", testTime)
	wantSilent(t, d)
	if d.State.Retro.Step != domain.StepGathering {
		t.Fatalf("step changed to %s", d.State.Retro.Step)
	}
}

func TestAdvanceStepPicksMostVotedReflection(t *testing.T) {
	s := stateAtStep(domain.StepVoting)
	s.Reflections = []domain.Reflection{
		{ID: "r1", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p1", Content: "ship smaller", CreatedAt: testTime},
		{ID: "r2", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p2", Content: "flaky ci", TopicID: "t1", CreatedAt: testTime.Add(time.Second)},
	}
	s.Topics = []domain.Topic{{ID: "t1", RetrospectiveID: "retro-1", Name: "CI"}}
	// r1 has one direct vote; r2 has one direct plus one on its topic.
	s.Reactions = []domain.Reaction{
		{ID: "v1", AuthorID: "p1", TargetKind: domain.TargetReflection, TargetID: "r1", Kind: domain.ReactionKindVote, Content: domain.VoteContent},
		{ID: "v2", AuthorID: "p1", TargetKind: domain.TargetReflection, TargetID: "r2", Kind: domain.ReactionKindVote, Content: domain.VoteContent},
		{ID: "v3", AuthorID: "p2", TargetKind: domain.TargetTopic, TargetID: "t1", Kind: domain.ReactionKindVote, Content: domain.VoteContent},
	}

	d := AdvanceStep(s, "p1", testTime)
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if d.State.Retro.DiscussedReflectionID != "r2" {
		t.Fatalf("discussed = %s, want r2", d.State.Retro.DiscussedReflectionID)
	}
}

func TestAdvanceStepPrefersUnrevealedOnZeroVoteTies(t *testing.T) {
	s := stateAtStep(domain.StepThinking)
	s.Reflections = []domain.Reflection{
		{ID: "r1", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p1", Content: "a", Revealed: true, CreatedAt: testTime},
		{ID: "r2", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p1", Content: "b", CreatedAt: testTime.Add(time.Second)},
	}

	d := AdvanceStep(s, "p1", testTime)
	if d.State.Retro.DiscussedReflectionID != "r2" {
		t.Fatalf("discussed = %s, want unrevealed r2", d.State.Retro.DiscussedReflectionID)
	}
}

func TestSetDiscussedReflection(t *testing.T) {
	s := stateAtStep(domain.StepVoting)
	s.Reflections = []domain.Reflection{
		{ID: "r1", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p2", Content: "a", CreatedAt: testTime},
	}

	wantSilent(t, SetDiscussedReflection(s, "p2", "r1"))

	d := SetDiscussedReflection(s, "p1", "missing")
	wantCode(t, d.Err, apperrors.CodeNotFound)

	d = SetDiscussedReflection(s, "p1", "r1")
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if d.State.Retro.DiscussedReflectionID != "r1" {
		t.Fatalf("discussed = %s", d.State.Retro.DiscussedReflectionID)
	}
	if len(d.Events) != 1 || d.Events[0].Action != event.ActionDiscussedItemChanged {
		t.Fatalf("unexpected events %+v", d.Events)
	}
}

func TestSetDiscussedTopicSelectsEarliestReflection(t *testing.T) {
	s := stateAtStep(domain.StepVoting)
	s.Topics = []domain.Topic{{ID: "t1", RetrospectiveID: "retro-1", Name: "CI"}}
	s.Reflections = []domain.Reflection{
		{ID: "r1", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p1", Content: "a", TopicID: "t1", CreatedAt: testTime.Add(time.Minute)},
		{ID: "r2", RetrospectiveID: "retro-1", ZoneID: "z1", OwnerID: "p2", Content: "b", TopicID: "t1", CreatedAt: testTime},
	}

	d := SetDiscussedTopic(s, "p1", "t1")
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if d.State.Retro.DiscussedReflectionID != "r2" {
		t.Fatalf("discussed = %s, want r2", d.State.Retro.DiscussedReflectionID)
	}
}

func TestStartTimer(t *testing.T) {
	s := newTestState()

	d := StartTimer(s, "p1", -time.Minute, testTime)
	wantCode(t, d.Err, apperrors.CodeTimerInvalidDuration)

	wantSilent(t, StartTimer(s, "p2", time.Minute, testTime))

	d = StartTimer(s, "p1", 5*time.Minute, testTime)
	if d.Err != nil {
		t.Fatal(d.Err)
	}
	if d.State.Retro.TimerEndAt == nil || !d.State.Retro.TimerEndAt.Equal(testTime.Add(5*time.Minute)) {
		t.Fatalf("timer end = %v", d.State.Retro.TimerEndAt)
	}
	if len(d.Events) != 1 || d.Events[0].Action != event.ActionTimerSet {
		t.Fatalf("unexpected events %+v", d.Events)
	}
	if len(d.Changes) != 1 {
		t.Fatalf("expected one change, got %d", len(d.Changes))
	}
	if _, ok := d.Changes[0].(storage.PutRetrospective); !ok {
		t.Fatalf("unexpected change type %T", d.Changes[0])
	}
}
