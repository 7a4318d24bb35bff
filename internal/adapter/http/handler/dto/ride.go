package dto

import (
	"errors"
	"fmt"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/geo"
)

type CreateRideRequest struct {
	PickupAddress   string  `json:"pickup_address"`
	PickupLatitude  float64 `json:"pickup_latitude"`
	PickupLongitude float64 `json:"pickup_longitude"`

	DropoffAddress   string  `json:"dropoff_address"`
	DropoffLatitude  float64 `json:"dropoff_latitude"`
	DropoffLongitude float64 `json:"dropoff_longitude"`

	AutoAssign bool `json:"auto_assign"`
}

func (r *CreateRideRequest) Validate() error {
	if len(r.PickupAddress) < 5 || len(r.PickupAddress) > 200 {
		return errors.New("pickup_address must be between 5 and 200 characters")
	}
	if len(r.DropoffAddress) < 5 || len(r.DropoffAddress) > 200 {
		return errors.New("dropoff_address must be between 5 and 200 characters")
	}

	pickup := geo.Point{Latitude: r.PickupLatitude, Longitude: r.PickupLongitude}
	dropoff := geo.Point{Latitude: r.DropoffLatitude, Longitude: r.DropoffLongitude}
	if !pickup.Valid() {
		return errors.New("pickup coordinates out of valid range")
	}
	if !dropoff.Valid() {
		return errors.New("dropoff coordinates out of valid range")
	}
	return nil
}

// ToModel builds the domain ride from the request. Computed fields
// (id, status, fare) are filled by the service.
func (r *CreateRideRequest) ToModel() *models.Ride {
	return &models.Ride{
		PickupAddress:  r.PickupAddress,
		Pickup:         geo.Point{Latitude: r.PickupLatitude, Longitude: r.PickupLongitude},
		DropoffAddress: r.DropoffAddress,
		Dropoff:        geo.Point{Latitude: r.DropoffLatitude, Longitude: r.DropoffLongitude},
	}
}

type CancelRideRequest struct {
	Reason       string `json:"reason"`
	ReasonDetail string `json:"reason_detail,omitempty"`
}

// FullReason joins reason and detail the way clients display it.
func (r *CancelRideRequest) FullReason() string {
	if r.ReasonDetail == "" {
		return r.Reason
	}
	return fmt.Sprintf("%s - %s", r.Reason, r.ReasonDetail)
}
