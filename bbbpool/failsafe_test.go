package bbbpool

import (
	"context"
	"errors"
	"testing"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
	"github.com/bbbpool/bbbpool/testutil"
)

func TestFailsafe_FailsafeCheck(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	logger := logging.NewNop()

	// Test circuit breaker.
	state := &structs.FailsafeState{Enabled: true}
	if FailsafeCheck(ctx, store, state, 3, logger) {
		t.Fatal("expected the failsafe check to answer false but got true")
	}

	// Test failsafe threshold not met.
	state = &structs.FailsafeState{ConsecutiveFailures: 2}
	if !FailsafeCheck(ctx, store, state, 3, logger) {
		t.Fatal("expected the failsafe check to answer true but got false")
	}

	// Test failsafe threshold met.
	state = &structs.FailsafeState{ConsecutiveFailures: 3}
	if FailsafeCheck(ctx, store, state, 3, logger) {
		t.Fatal("expected the failsafe check to answer false but got true")
	}

	persisted, err := ReadFailsafeState(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !persisted.Enabled || persisted.Reason == "" {
		t.Fatalf("expected the tripped breaker to be persisted got %+v", persisted)
	}
}

func TestFailsafe_SetFailsafeMode(t *testing.T) {
	ctx := context.Background()
	store := testutil.NewMemoryStore()
	logger := logging.NewNop()

	state := &structs.FailsafeState{ConsecutiveFailures: 4}
	if err := SetFailsafeMode(ctx, store, state, true, "operator request", true, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !state.Enabled || state.Reason != "operator request" {
		t.Fatalf("expected failsafe mode to be enabled got %+v", state)
	}

	// Admin calls do not log, so nothing reaches the alert buffer.
	if n := logger.Alerts().Len(); n != 0 {
		t.Fatalf("expected no alert got %v", n)
	}

	if err := SetFailsafeMode(ctx, store, state, false, "", true, logger); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	persisted, err := ReadFailsafeState(ctx, store)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if persisted.Enabled || persisted.ConsecutiveFailures != 0 || persisted.Reason != "" {
		t.Fatalf("expected a reset failsafe state got %+v", persisted)
	}

	store.PersistErr = errors.New("permission denied")
	if err := SetFailsafeMode(ctx, store, state, true, "again", false, logger); err == nil {
		t.Fatal("expected an error")
	}
}

func TestFailsafe_ReadMissingState(t *testing.T) {
	state, err := ReadFailsafeState(context.Background(), testutil.NewMemoryStore())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if state.Enabled || state.ConsecutiveFailures != 0 {
		t.Fatalf("expected a healthy state got %+v", state)
	}
}
