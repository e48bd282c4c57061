package bbbpool

import (
	"context"
	"fmt"
	"time"

	"github.com/bbbpool/bbbpool/bbbpool/structs"
	"github.com/bbbpool/bbbpool/logging"
)

// FailsafeCheck implements the failsafe mode circuit breaker that will
// trip automatically if enough consecutive clone failures are detected.
// Once tripped, the circuit breaker must be reset by a human operator.
func FailsafeCheck(ctx context.Context, store structs.StateStore, state *structs.FailsafeState,
	threshold int, logger *logging.Logger) (passing bool) {

	// Assume we're in a good state until proven otherwise.
	passing = true

	// If the failsafe circuit breaker has been tripped already, we can fail
	// quickly here.
	if state.Enabled {
		return false
	}

	if state.ConsecutiveFailures >= threshold {
		passing = false
	}

	switch passing {
	case true:
		logger.Debug("core/failsafe: the failsafe check passes, actions on the " +
			"pool will be permitted")
	case false:
		reason := fmt.Sprintf("cloning failed during %d consecutive cycles", state.ConsecutiveFailures)
		if err := SetFailsafeMode(ctx, store, state, true, reason, false, logger); err != nil {
			logger.Error("%v", err)
		}
	}

	return
}

// SetFailsafeMode is used to toggle the persisted failsafe mode lock. The
// admin flag suppresses logging output when called from the CLI tools.
func SetFailsafeMode(ctx context.Context, store structs.StateStore, state *structs.FailsafeState,
	enabled bool, reason string, admin bool, logger *logging.Logger) error {

	switch enabled {
	case true:
		if !admin {
			logger.Error("core/failsafe: bbbpool has been placed in failsafe mode (%v). "+
				"No actions will be taken on the pool by any running copy of bbbpool", reason)
		}
		state.Reason = reason

	case false:
		if !admin {
			logger.Info("core/failsafe: exiting failsafe mode")
		}
		state.Reason = ""
		state.ConsecutiveFailures = 0
	}

	// Set the failsafe mode lock state in the state tracking object.
	state.Enabled = enabled
	state.LastUpdated = time.Now()

	// Attempt to update the persistent state tracking information.
	if err := store.PersistState(ctx, structs.StateKeyFailsafe, state); err != nil {
		return fmt.Errorf("core/failsafe: an attempt to update the persistent "+
			"state tracking information failed: %v", err)
	}

	return nil
}

// ReadFailsafeState loads the persisted failsafe state. A missing document
// is a healthy state.
func ReadFailsafeState(ctx context.Context, store structs.StateStore) (*structs.FailsafeState, error) {
	state := &structs.FailsafeState{}
	if _, err := store.ReadState(ctx, structs.StateKeyFailsafe, state); err != nil {
		return nil, fmt.Errorf("core/failsafe: unable to read the failsafe state: %v", err)
	}
	return state, nil
}
