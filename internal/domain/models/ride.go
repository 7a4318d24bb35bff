package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
)

// Ride is the external store's view of a ride. The realtime core only
// reads it and issues field updates through the repository.
type Ride struct {
	ID       uuid.UUID
	RiderID  uuid.UUID
	DriverID *uuid.UUID
	Status   types.RideStatus

	Pickup         geo.Point
	PickupAddress  string
	Dropoff        geo.Point
	DropoffAddress string

	DistanceKm    float64
	EstimatedFare float64
	FinalFare     *float64

	CancellationReason *string

	CreatedAt   time.Time
	AcceptedAt  *time.Time
	StartedAt   *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
}

// IsParticipant reports whether userID is the ride's rider or its
// assigned driver.
func (r *Ride) IsParticipant(userID uuid.UUID) bool {
	if r.RiderID == userID {
		return true
	}
	return r.DriverID != nil && *r.DriverID == userID
}
