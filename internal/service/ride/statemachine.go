package ride

import (
	"fmt"

	"github.com/eboda/ride-hail-realtime/internal/domain/types"
)

// transitions is the full ride lifecycle. Anything not listed here is
// rejected; completed and cancelled have no outgoing edges.
var transitions = map[types.RideStatus][]types.RideStatus{
	types.StatusPending:    {types.StatusAccepted, types.StatusCancelled},
	types.StatusAccepted:   {types.StatusInProgress, types.StatusCancelled},
	types.StatusInProgress: {types.StatusCompleted, types.StatusCancelled},
	types.StatusCompleted:  {},
	types.StatusCancelled:  {},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to types.RideStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error for an illegal step so
// callers can map it to a client-facing message.
func ValidateTransition(from, to types.RideStatus) error {
	if CanTransition(from, to) {
		return nil
	}
	if from.IsTerminal() {
		return fmt.Errorf("ride already %s: %w", from, types.ErrRideTerminal)
	}
	return fmt.Errorf("cannot move ride from %s to %s: %w", from, to, types.ErrInvalidTransition)
}
