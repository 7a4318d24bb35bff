package ride

import (
	"errors"
	"testing"

	"github.com/eboda/ride-hail-realtime/internal/domain/types"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from types.RideStatus
		to   types.RideStatus
		want bool
	}{
		{types.StatusPending, types.StatusAccepted, true},
		{types.StatusPending, types.StatusCancelled, true},
		{types.StatusPending, types.StatusInProgress, false},
		{types.StatusPending, types.StatusCompleted, false},

		{types.StatusAccepted, types.StatusInProgress, true},
		{types.StatusAccepted, types.StatusCancelled, true},
		{types.StatusAccepted, types.StatusPending, false},
		{types.StatusAccepted, types.StatusCompleted, false},

		{types.StatusInProgress, types.StatusCompleted, true},
		{types.StatusInProgress, types.StatusCancelled, true},
		{types.StatusInProgress, types.StatusAccepted, false},

		{types.StatusCompleted, types.StatusCancelled, false},
		{types.StatusCompleted, types.StatusPending, false},
		{types.StatusCancelled, types.StatusAccepted, false},
		{types.StatusCancelled, types.StatusCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			if got := CanTransition(tt.from, tt.to); got != tt.want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
			}
		})
	}
}

func TestValidateTransitionAllowed(t *testing.T) {
	if err := ValidateTransition(types.StatusPending, types.StatusAccepted); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateTransitionTerminal(t *testing.T) {
	err := ValidateTransition(types.StatusCompleted, types.StatusCancelled)
	if !errors.Is(err, types.ErrRideTerminal) {
		t.Fatalf("expected ErrRideTerminal, got %v", err)
	}
}

func TestValidateTransitionIllegal(t *testing.T) {
	err := ValidateTransition(types.StatusPending, types.StatusCompleted)
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}
