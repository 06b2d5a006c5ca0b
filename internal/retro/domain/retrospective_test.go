package domain

import (
	"testing"
	"time"
)

func TestNextStepOrder(t *testing.T) {
	want := []Step{StepThinking, StepGrouping, StepVoting, StepActions, StepDone}
	current := StepGathering
	for _, expected := range want {
		next, ok := NextStep(current)
		if !ok {
			t.Fatalf("expected %s to advance", current)
		}
		if next != expected {
			t.Fatalf("expected %s after %s, got %s", expected, current, next)
		}
		current = next
	}
	if _, ok := NextStep(StepDone); ok {
		t.Fatal("expected done to be terminal")
	}
	if _, ok := NextStep(Step("bogus")); ok {
		t.Fatal("expected unknown step not to advance")
	}
}

func TestStepReached(t *testing.T) {
	if !StepReached(StepVoting, StepGrouping) {
		t.Fatal("voting should have reached grouping")
	}
	if StepReached(StepThinking, StepGrouping) {
		t.Fatal("thinking should not have reached grouping")
	}
	if StepReached(Step("bogus"), StepGrouping) {
		t.Fatal("unknown step should never reach anything")
	}
}

func TestCreateRetrospective(t *testing.T) {
	now := func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	retro, zones, err := CreateRetrospective(CreateRetrospectiveInput{Name: "Sprint 42", Kind: KindGladSadMad}, now, nil)
	if err != nil {
		t.Fatalf("create retrospective: %v", err)
	}
	if retro.Step != StepGathering {
		t.Fatalf("expected initial step gathering, got %s", retro.Step)
	}
	if len(zones) != 3 {
		t.Fatalf("expected 3 zones for glad_sad_mad, got %d", len(zones))
	}
	for _, zone := range zones {
		if zone.RetrospectiveID != retro.ID {
			t.Fatalf("zone %s not bound to retrospective", zone.Name)
		}
	}
}

func TestCreateRetrospectiveValidation(t *testing.T) {
	if _, _, err := CreateRetrospective(CreateRetrospectiveInput{Name: "  ", Kind: KindKDS}, nil, nil); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, _, err := CreateRetrospective(CreateRetrospectiveInput{Name: "x", Kind: Kind("nope")}, nil, nil); err == nil {
		t.Fatal("expected error for invalid kind")
	}
}

func TestRoleDerivation(t *testing.T) {
	retro := Retrospective{FacilitatorID: "p1", RevealerID: "p2"}
	if !retro.IsFacilitator("p1") || retro.IsFacilitator("p2") {
		t.Fatal("facilitator derivation is wrong")
	}
	if !retro.IsRevealer("p2") || retro.IsRevealer("p1") {
		t.Fatal("revealer derivation is wrong")
	}
	if (Retrospective{}).IsFacilitator("") {
		t.Fatal("empty ids must never match roles")
	}
}

func TestTimerPending(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	end := now.Add(time.Minute)
	retro := Retrospective{TimerEndAt: &end}
	if !retro.TimerPending(now) {
		t.Fatal("expected timer to be pending")
	}
	if retro.TimerPending(now.Add(2 * time.Minute)) {
		t.Fatal("expected timer to have expired")
	}
	if (Retrospective{}).TimerPending(now) {
		t.Fatal("expected no timer to be pending")
	}
}
