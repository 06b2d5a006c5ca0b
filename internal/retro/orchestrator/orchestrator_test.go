package orchestrator

import (
	"fmt"
	"testing"
	"time"

	apperrors "github.com/louisbranch/retroboard/internal/platform/errors"
	"github.com/louisbranch/retroboard/internal/retro/domain"
)

var testTime = time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC)

// sequentialIDs returns a deterministic id generator for tests.
func sequentialIDs(prefix string) func() (string, error) {
	counter := 0
	return func() (string, error) {
		counter++
		return fmt.Sprintf("%s-%d", prefix, counter), nil
	}
}

// newTestState builds a two-participant session with p1 as facilitator.
func newTestState() State {
	return State{
		Retro: domain.Retrospective{
			ID:            "retro-1",
			Name:          "Sprint 12",
			Kind:          domain.KindKDS,
			Step:          domain.StepGathering,
			FacilitatorID: "p1",
			CreatedAt:     testTime,
			UpdatedAt:     testTime,
		},
		Participants: []domain.Participant{
			{ID: "p1", RetrospectiveID: "retro-1", AccountID: "acct-1", Surname: "alice", Color: domain.Palette[0], LoggedIn: true, JoinedAt: testTime},
			{ID: "p2", RetrospectiveID: "retro-1", AccountID: "acct-2", Surname: "bob", Color: domain.Palette[1], LoggedIn: true, JoinedAt: testTime.Add(time.Minute)},
		},
		Zones: []domain.Zone{
			{ID: "z1", RetrospectiveID: "retro-1", Name: "Keep"},
		},
	}
}

func stateAtStep(step domain.Step) State {
	s := newTestState()
	s.Retro.Step = step
	return s
}

func wantCode(t *testing.T, err error, code apperrors.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error with code %s, got nil", code)
	}
	if got := apperrors.CodeOf(err); got != code {
		t.Fatalf("error code = %s, want %s (err: %v)", got, code, err)
	}
}

// wantSilent asserts a decision is a silent no-op: no error, no events, no
// storage changes.
func wantSilent(t *testing.T, d Decision) {
	t.Helper()
	if d.Err != nil {
		t.Fatalf("unexpected error: %v", d.Err)
	}
	if len(d.Events) != 0 {
		t.Fatalf("expected no events, got %d", len(d.Events))
	}
	if len(d.Changes) != 0 {
		t.Fatalf("expected no changes, got %d", len(d.Changes))
	}
}
