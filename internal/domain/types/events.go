package types

// Inbound websocket event types.
const (
	EventJoinRide       = "join_ride"
	EventLeaveRide      = "leave_ride"
	EventLocationUpdate = "location_update"
	EventPing           = "ping"
	EventPong           = "pong"
)

// Broker routing keys for ride lifecycle events.
const (
	RouteRideCreated   = "ride.created"
	RouteRideAccepted  = "ride.accepted"
	RouteRideStarted   = "ride.started"
	RouteRideCompleted = "ride.completed"
	RouteRideCancelled = "ride.cancelled"
)

// Outbound websocket event types.
const (
	EventConnected            = "connected"
	EventJoinedRide           = "joined_ride"
	EventLeftRide             = "left_ride"
	EventDriverLocationUpdate = "driver_location_update"
	EventRideAssigned         = "ride_assigned"
	EventRideAccepted         = "ride_accepted"
	EventRideStarted          = "ride_started"
	EventRideCompleted        = "ride_completed"
	EventRideCancelled        = "ride_cancelled"
	EventNoDriverFound        = "no_driver_found"
	EventError                = "error"
)
