package types

// UserRole is the role carried by a verified identity.
type UserRole string

func (r UserRole) String() string {
	return string(r)
}

const (
	RoleRider  UserRole = "rider"
	RoleDriver UserRole = "driver"
)

// RideStatus is the lifecycle state of a ride.
type RideStatus string

func (s RideStatus) String() string {
	return string(s)
}

const (
	StatusPending    RideStatus = "pending"
	StatusAccepted   RideStatus = "accepted"
	StatusInProgress RideStatus = "in_progress"
	StatusCompleted  RideStatus = "completed"
	StatusCancelled  RideStatus = "cancelled"
)

// IsTerminal reports whether no further transitions are allowed from s.
func (s RideStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Reasons attached to automatic cancellations by the matching engine.
const (
	NoDriverReasonTimeout     = "timeout"
	NoDriverReasonMaxAttempts = "max_attempts"
)
