package otel_test

import (
	"context"
	"testing"

	"github.com/louisbranch/retroboard/internal/platform/otel"
)

func TestSetupNoopWhenEndpointEmpty(t *testing.T) {
	t.Setenv("RETROBOARD_OTEL_ENDPOINT", "")
	t.Setenv("RETROBOARD_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "board")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupNoopWhenExplicitlyDisabled(t *testing.T) {
	t.Setenv("RETROBOARD_OTEL_ENDPOINT", "http://localhost:4318")
	t.Setenv("RETROBOARD_OTEL_ENABLED", "false")

	shutdown, err := otel.Setup(context.Background(), "board")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}

func TestSetupCreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address so no actual export happens.
	t.Setenv("RETROBOARD_OTEL_ENDPOINT", "http://192.0.2.1:4318")
	t.Setenv("RETROBOARD_OTEL_ENABLED", "")

	shutdown, err := otel.Setup(context.Background(), "board")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown error: %v", err)
	}
}
