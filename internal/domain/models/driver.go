package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/geo"
)

// Driver is the external store's view of a driver profile.
type Driver struct {
	ID           uuid.UUID
	FullName     string
	Phone        string
	VehiclePlate string
	VehicleModel string
	Rating       float64

	IsActive    bool
	IsAvailable bool

	Location  *geo.Point
	LocatedAt *time.Time
}

// DriverSummary is the driver payload embedded in ride_accepted and
// ride_assigned events sent to riders.
type DriverSummary struct {
	ID           uuid.UUID  `json:"id"`
	FullName     string     `json:"full_name"`
	Phone        string     `json:"phone"`
	VehiclePlate string     `json:"vehicle_plate"`
	VehicleModel string     `json:"vehicle_model"`
	Rating       float64    `json:"rating"`
	Location     *geo.Point `json:"location,omitempty"`
}

// NearbyDriver is a driver summary annotated with the distance from a
// search point, closest first in listings.
type NearbyDriver struct {
	DriverSummary
	DistanceKm float64 `json:"distance_km"`
}

// Summary extracts the fields shared with ride participants.
func (d *Driver) Summary() DriverSummary {
	return DriverSummary{
		ID:           d.ID,
		FullName:     d.FullName,
		Phone:        d.Phone,
		VehiclePlate: d.VehiclePlate,
		VehicleModel: d.VehicleModel,
		Rating:       d.Rating,
		Location:     d.Location,
	}
}
