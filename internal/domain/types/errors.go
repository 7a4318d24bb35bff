package types

import "errors"

var (
	ErrRideNotFound   = errors.New("ride not found")
	ErrDriverNotFound = errors.New("no available driver found")
	ErrUserNotFound   = errors.New("user not found")

	ErrNotRideParticipant = errors.New("not a participant in this ride")
	ErrRideTerminal       = errors.New("ride is in a terminal state")
	ErrInvalidTransition  = errors.New("invalid ride status transition")

	ErrNotConnected = errors.New("user is not connected")
	ErrSendFailed   = errors.New("failed to deliver message")

	ErrInvalidCoordinates = errors.New("coordinates out of valid range")
)
