package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/config"
	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
)

// RideStore is the read surface the event handlers need. The ride
// repository implements it.
type RideStore interface {
	GetByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	FindActiveForUser(ctx context.Context, userID uuid.UUID) (*models.Ride, error)
}

// LocationStore persists driver positions. The driver repository
// implements it.
type LocationStore interface {
	UpdateLocation(ctx context.Context, driverID uuid.UUID, p geo.Point) error
}

// EventHandlers implements the inbound websocket protocol: room
// membership, driver location fan-out and heartbeats.
type EventHandlers struct {
	cfg        config.RealtimeConfig
	dispatcher *Dispatcher
	rooms      *RoomRegistry
	rides      RideStore
	locations  LocationStore
	log        logger.Logger
}

func NewEventHandlers(cfg config.RealtimeConfig, d *Dispatcher, rooms *RoomRegistry, rides RideStore, locations LocationStore, log logger.Logger) *EventHandlers {
	return &EventHandlers{
		cfg:        cfg,
		dispatcher: d,
		rooms:      rooms,
		rides:      rides,
		locations:  locations,
		log:        log,
	}
}

// RegisterAll binds every inbound event type to its handler.
func (h *EventHandlers) RegisterAll() {
	h.dispatcher.Register(types.EventJoinRide, h.HandleJoinRide)
	h.dispatcher.Register(types.EventLeaveRide, h.HandleLeaveRide)
	h.dispatcher.Register(types.EventLocationUpdate, h.HandleLocationUpdate)
	h.dispatcher.Register(types.EventPing, h.HandlePing)
	h.dispatcher.Register(types.EventPong, h.HandlePong)
}

// HandleJoinRide admits the session into a ride room after verifying
// the ride exists, is not finished and that the user is one of its two
// participants. The reply carries the ride status plus the cached
// driver location so a reconnecting rider resumes mid-ride state.
func (h *EventHandlers) HandleJoinRide(ctx context.Context, s *Session, payload json.RawMessage) any {
	s.Touch()

	var req models.JoinRideRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.RideID == "" {
		return models.NewErrorEvent("ride_id is required")
	}

	rideID, err := uuid.Parse(req.RideID)
	if err != nil {
		return models.NewErrorEvent("invalid ride_id")
	}
	ctx = wrap.WithRideID(ctx, req.RideID)

	ride, err := h.rides.GetByID(ctx, rideID)
	if err != nil {
		if errors.Is(err, types.ErrRideNotFound) {
			return models.NewErrorEvent("ride not found")
		}
		h.log.Error(ctx, "failed to load ride", err)
		return models.NewErrorEvent("internal error")
	}

	if !ride.IsParticipant(s.UserID) {
		return models.NewErrorEvent("not a participant in this ride")
	}
	if ride.Status.IsTerminal() {
		return models.NewErrorEvent("ride is already " + ride.Status.String())
	}

	joined := h.rooms.Join(req.RideID, s.UserID)
	s.addRoom(req.RideID)

	resp := models.JoinedRideEvent{
		EventType:          types.EventJoinedRide,
		RideID:             req.RideID,
		RideStatus:         ride.Status,
		LastDriverLocation: h.rooms.DriverLocation(req.RideID),
	}
	if !joined {
		resp.Message = "already joined"
	} else {
		h.log.Info(ctx, "user joined ride room", "role", s.Role)
	}
	return resp
}

// HandleLeaveRide removes the session from the ride room. Leaving a
// room the user never joined still answers left_ride; the operation is
// idempotent.
func (h *EventHandlers) HandleLeaveRide(ctx context.Context, s *Session, payload json.RawMessage) any {
	s.Touch()

	var req models.LeaveRideRequest
	if err := json.Unmarshal(payload, &req); err != nil || req.RideID == "" {
		return models.NewErrorEvent("ride_id is required")
	}
	ctx = wrap.WithRideID(ctx, req.RideID)

	h.rooms.Leave(req.RideID, s.UserID)
	s.removeRoom(req.RideID)

	h.log.Info(ctx, "user left ride room")
	return models.LeftRideEvent{EventType: types.EventLeftRide, RideID: req.RideID}
}

// HandleLocationUpdate accepts a driver coordinate, throttles it,
// persists it best-effort and fans it out to the room excluding the
// sender. Suppressed updates get no reply at all.
func (h *EventHandlers) HandleLocationUpdate(ctx context.Context, s *Session, payload json.RawMessage) any {
	s.Touch()

	if s.Role != types.RoleDriver {
		return models.NewErrorEvent("only drivers can send location updates")
	}

	var req models.LocationUpdateRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return models.NewErrorEvent("invalid location payload")
	}
	if req.RideID == "" {
		return models.NewErrorEvent("ride_id is required")
	}
	if req.Latitude == nil || req.Longitude == nil {
		return models.NewErrorEvent("latitude and longitude are required")
	}

	p := geo.Point{Latitude: *req.Latitude, Longitude: *req.Longitude}
	if !p.Valid() {
		return models.NewErrorEvent("coordinates out of valid range")
	}
	ctx = wrap.WithRideID(ctx, req.RideID)

	if !s.inRoom(req.RideID) {
		// A fresh session after reconnect starts with an empty room set
		// while the room still holds the driver; re-attach instead of
		// demanding a re-join.
		if !h.rooms.IsMember(req.RideID, s.UserID) {
			return models.NewErrorEvent("join the ride before sending locations")
		}
		s.addRoom(req.RideID)
	}

	// Rate limit, not an error: a suppressed point is dropped silently.
	if s.ShouldThrottleLocation(p, h.cfg.LocationThrottle, h.cfg.LocationMinDistance) {
		return nil
	}

	ts := req.Timestamp
	if ts == "" {
		ts = time.Now().UTC().Format(time.RFC3339)
	}

	// Persistence is best-effort; the live stream matters more than the
	// stored copy.
	if err := h.locations.UpdateLocation(ctx, s.UserID, p); err != nil {
		h.log.Warn(ctx, "failed to persist driver location", "error", err.Error())
	}

	loc := models.DriverLocation{Latitude: p.Latitude, Longitude: p.Longitude, Timestamp: ts}
	h.rooms.SetDriverLocation(req.RideID, loc)

	h.dispatcher.BroadcastToRoom(ctx, req.RideID, models.DriverLocationUpdateEvent{
		EventType: types.EventDriverLocationUpdate,
		DriverID:  s.UserID.String(),
		RideID:    req.RideID,
		Latitude:  p.Latitude,
		Longitude: p.Longitude,
		Timestamp: ts,
		Heading:   req.Heading,
		Speed:     req.Speed,
	}, s.UserID)

	s.MarkLocationBroadcast(p)
	return nil
}

// HandlePing refreshes liveness and answers pong.
func (h *EventHandlers) HandlePing(_ context.Context, s *Session, _ json.RawMessage) any {
	s.Touch()
	s.markAlive()
	return models.PongEvent{EventType: types.EventPong, Timestamp: time.Now().UTC()}
}

// HandlePong refreshes liveness. Pongs answer our keepalive pings and
// get no reply.
func (h *EventHandlers) HandlePong(_ context.Context, s *Session, _ json.RawMessage) any {
	s.Touch()
	s.markAlive()
	return nil
}
