package dto

import (
	"time"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
)

// RideResponse is the JSON shape of a ride in API responses.
type RideResponse struct {
	ID       string  `json:"id"`
	RiderID  string  `json:"rider_id"`
	DriverID *string `json:"driver_id,omitempty"`
	Status   string  `json:"status"`

	PickupAddress   string  `json:"pickup_address"`
	PickupLatitude  float64 `json:"pickup_latitude"`
	PickupLongitude float64 `json:"pickup_longitude"`

	DropoffAddress   string  `json:"dropoff_address"`
	DropoffLatitude  float64 `json:"dropoff_latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude"`

	DistanceKm         float64  `json:"distance_km"`
	EstimatedFare      float64  `json:"estimated_fare"`
	FinalFare          *float64 `json:"final_fare,omitempty"`
	CancellationReason *string  `json:"cancellation_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`
}

func FromRide(ride *models.Ride) RideResponse {
	resp := RideResponse{
		ID:      ride.ID.String(),
		RiderID: ride.RiderID.String(),
		Status:  ride.Status.String(),

		PickupAddress:   ride.PickupAddress,
		PickupLatitude:  ride.Pickup.Latitude,
		PickupLongitude: ride.Pickup.Longitude,

		DropoffAddress:   ride.DropoffAddress,
		DropoffLatitude:  ride.Dropoff.Latitude,
		DropoffLongitude: ride.Dropoff.Longitude,

		DistanceKm:         ride.DistanceKm,
		EstimatedFare:      ride.EstimatedFare,
		FinalFare:          ride.FinalFare,
		CancellationReason: ride.CancellationReason,

		CreatedAt:   ride.CreatedAt,
		AcceptedAt:  ride.AcceptedAt,
		StartedAt:   ride.StartedAt,
		CompletedAt: ride.CompletedAt,
		CancelledAt: ride.CancelledAt,
	}
	if ride.DriverID != nil {
		id := ride.DriverID.String()
		resp.DriverID = &id
	}
	return resp
}

func FromRides(rides []models.Ride) []RideResponse {
	out := make([]RideResponse, 0, len(rides))
	for i := range rides {
		out = append(out, FromRide(&rides[i]))
	}
	return out
}
