package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
)

/* ======================= inbound ======================= */

// Envelope is the minimal shape every inbound message must satisfy.
// Handler-specific fields are decoded separately from the raw payload.
type Envelope struct {
	EventType string `json:"event_type"`
}

type JoinRideRequest struct {
	RideID string `json:"ride_id"`
}

type LeaveRideRequest struct {
	RideID string `json:"ride_id"`
}

type LocationUpdateRequest struct {
	RideID    string   `json:"ride_id"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Timestamp string   `json:"timestamp,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

/* ======================= outbound ======================= */

type ConnectedEvent struct {
	EventType  string          `json:"event_type"`
	UserID     uuid.UUID       `json:"user_id"`
	Role       types.UserRole  `json:"role"`
	ActiveRide *ActiveRideInfo `json:"active_ride,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// ActiveRideInfo lets a reconnecting client resume its ride state.
type ActiveRideInfo struct {
	RideID string           `json:"ride_id"`
	Status types.RideStatus `json:"status"`
}

type JoinedRideEvent struct {
	EventType          string           `json:"event_type"`
	RideID             string           `json:"ride_id"`
	RideStatus         types.RideStatus `json:"ride_status"`
	LastDriverLocation *DriverLocation  `json:"last_driver_location,omitempty"`
	Message            string           `json:"message,omitempty"`
}

type LeftRideEvent struct {
	EventType string `json:"event_type"`
	RideID    string `json:"ride_id"`
}

// DriverLocation is the cached last known driver position for a room.
type DriverLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Timestamp string  `json:"timestamp"`
}

type DriverLocationUpdateEvent struct {
	EventType string   `json:"event_type"`
	DriverID  string   `json:"driver_id"`
	RideID    string   `json:"ride_id"`
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp string   `json:"timestamp"`
	Heading   *float64 `json:"heading,omitempty"`
	Speed     *float64 `json:"speed,omitempty"`
}

type RideAssignedEvent struct {
	EventType      string    `json:"event_type"`
	RideID         string    `json:"ride_id"`
	Pickup         geo.Point `json:"pickup"`
	PickupAddress  string    `json:"pickup_address"`
	Dropoff        geo.Point `json:"dropoff"`
	DropoffAddress string    `json:"dropoff_address"`
	EstimatedFare  float64   `json:"estimated_fare"`
	DistanceKm     float64   `json:"distance_km"`
	RiderID        string    `json:"rider_id"`
	Timestamp      time.Time `json:"timestamp"`
}

type RideAcceptedEvent struct {
	EventType string        `json:"event_type"`
	RideID    string        `json:"ride_id"`
	Driver    DriverSummary `json:"driver"`
	Message   string        `json:"message,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

type RideStartedEvent struct {
	EventType string    `json:"event_type"`
	RideID    string    `json:"ride_id"`
	Timestamp time.Time `json:"timestamp"`
}

type RideCompletedEvent struct {
	EventType       string    `json:"event_type"`
	RideID          string    `json:"ride_id"`
	FinalFare       float64   `json:"final_fare"`
	DistanceKm      float64   `json:"distance_km"`
	DurationMinutes int       `json:"duration_minutes"`
	Timestamp       time.Time `json:"timestamp"`
}

type RideCancelledEvent struct {
	EventType string    `json:"event_type"`
	RideID    string    `json:"ride_id"`
	Reason    string    `json:"reason,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type NoDriverFoundEvent struct {
	EventType string    `json:"event_type"`
	RideID    string    `json:"ride_id"`
	Reason    string    `json:"reason"`
	Attempts  int       `json:"attempts,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorEvent struct {
	EventType string `json:"event_type"`
	Message   string `json:"message"`
}

type PingEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

type PongEvent struct {
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// NewErrorEvent builds the error reply used for protocol, authorization
// and state errors. The session stays alive.
func NewErrorEvent(message string) ErrorEvent {
	return ErrorEvent{EventType: types.EventError, Message: message}
}
