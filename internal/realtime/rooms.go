package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/pkg/metrics"
)

// room groups the participants of one ride and caches the last known
// driver location so late joiners can resume state.
type room struct {
	rideID             string
	participants       map[uuid.UUID]struct{}
	createdAt          time.Time
	lastDriverLocation *models.DriverLocation
}

func (r *room) isEmpty() bool {
	return len(r.participants) == 0
}

// RoomRegistry maps ride ids to rooms. Membership is mutated only
// through Join and Leave; authorization is the caller's concern.
type RoomRegistry struct {
	mu    sync.Mutex
	rooms map[string]*room
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{rooms: make(map[string]*room)}
}

// Join adds userID to the ride's room, creating the room if absent.
// Returns false if the user was already a member. A join observing a
// concurrently deleted room simply re-creates it.
func (r *RoomRegistry) Join(rideID string, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[rideID]
	if !ok {
		rm = &room{
			rideID:       rideID,
			participants: make(map[uuid.UUID]struct{}),
			createdAt:    time.Now(),
		}
		r.rooms[rideID] = rm
		metrics.ActiveRooms.Inc()
	}

	if _, ok := rm.participants[userID]; ok {
		return false
	}
	rm.participants[userID] = struct{}{}
	return true
}

// Leave removes userID from the ride's room. An emptied room is
// deleted immediately, not deferred to the cleanup loop.
func (r *RoomRegistry) Leave(rideID string, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[rideID]
	if !ok {
		return false
	}

	delete(rm.participants, userID)
	if rm.isEmpty() {
		delete(r.rooms, rideID)
		metrics.ActiveRooms.Dec()
	}
	return true
}

// Participants returns a copy of the ride's current participant set.
func (r *RoomRegistry) Participants(rideID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[rideID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(rm.participants))
	for id := range rm.participants {
		out = append(out, id)
	}
	return out
}

// IsMember reports whether userID belongs to the ride's room.
func (r *RoomRegistry) IsMember(rideID string, userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[rideID]
	if !ok {
		return false
	}
	_, ok = rm.participants[userID]
	return ok
}

// IsActive reports whether the ride has a non-empty room.
func (r *RoomRegistry) IsActive(rideID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[rideID]
	return ok && !rm.isEmpty()
}

// SetDriverLocation caches the last known driver position for the
// room, if it exists.
func (r *RoomRegistry) SetDriverLocation(rideID string, loc models.DriverLocation) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rm, ok := r.rooms[rideID]; ok {
		rm.lastDriverLocation = &loc
	}
}

// DriverLocation returns the cached driver position for the room, or
// nil if none was recorded yet.
func (r *RoomRegistry) DriverLocation(rideID string) *models.DriverLocation {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[rideID]
	if !ok || rm.lastDriverLocation == nil {
		return nil
	}
	loc := *rm.lastDriverLocation
	return &loc
}

// Remove deletes the ride's room outright and returns the members it
// had. Used when a ride reaches a terminal state.
func (r *RoomRegistry) Remove(rideID string) []uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[rideID]
	if !ok {
		return nil
	}

	out := make([]uuid.UUID, 0, len(rm.participants))
	for id := range rm.participants {
		out = append(out, id)
	}
	delete(r.rooms, rideID)
	metrics.ActiveRooms.Dec()
	return out
}

// deleteEmpty removes rooms with no participants. Leave already
// deletes eagerly; this is a safety net run by the cleanup loop.
func (r *RoomRegistry) deleteEmpty() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for rideID, rm := range r.rooms {
		if rm.isEmpty() {
			delete(r.rooms, rideID)
			metrics.ActiveRooms.Dec()
			removed++
		}
	}
	return removed
}

// ParticipantCounts returns the per-room participant counts for the
// stats snapshot.
func (r *RoomRegistry) ParticipantCounts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]int, len(r.rooms))
	for rideID, rm := range r.rooms {
		out[rideID] = len(rm.participants)
	}
	return out
}
