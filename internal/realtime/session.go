package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
)

// conn is the subset of *websocket.Conn the realtime layer uses.
type conn interface {
	WriteJSON(v any) error
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Session is the live state of one authenticated websocket connection.
// It is owned by the Registry: created on admission, destroyed on
// disconnect or eviction. Writes to the underlying connection are
// serialized by an exclusive per-session lock.
type Session struct {
	UserID uuid.UUID
	Role   types.UserRole

	conn  conn
	alive atomic.Bool

	// writeMu serializes all writes so concurrent broadcasts never
	// interleave frames for one recipient.
	writeMu sync.Mutex

	// mu guards the liveness timestamps, joined rooms and throttle
	// state below.
	mu            sync.Mutex
	connectedAt   time.Time
	lastHeartbeat time.Time
	lastActivity  time.Time
	rooms         map[string]struct{}

	lastLocationBroadcast time.Time
	lastCoords            *geo.Point
}

func newSession(c conn, userID uuid.UUID, role types.UserRole) *Session {
	now := time.Now()
	s := &Session{
		UserID:        userID,
		Role:          role,
		conn:          c,
		connectedAt:   now,
		lastHeartbeat: now,
		lastActivity:  now,
		rooms:         make(map[string]struct{}),
	}
	s.alive.Store(true)
	return s
}

func (s *Session) IsAlive() bool {
	return s.alive.Load()
}

func (s *Session) markDead() {
	s.alive.Store(false)
}

func (s *Session) markAlive() {
	s.alive.Store(true)
}

// Touch refreshes both the heartbeat and activity timestamps. Called
// on ping/pong and on events that prove the peer is responsive.
func (s *Session) Touch() {
	now := time.Now()
	s.mu.Lock()
	s.lastHeartbeat = now
	s.lastActivity = now
	s.mu.Unlock()
}

// TouchActivity refreshes only the activity timestamp.
func (s *Session) TouchActivity() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// IsStale reports whether no heartbeat was seen within timeout.
func (s *Session) IsStale(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastHeartbeat) > timeout
}

// NeedsPing reports whether the session has been idle longer than
// interval and should receive a keepalive ping.
func (s *Session) NeedsPing(interval time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity) > interval
}

func (s *Session) addRoom(rideID string) {
	s.mu.Lock()
	s.rooms[rideID] = struct{}{}
	s.mu.Unlock()
}

func (s *Session) removeRoom(rideID string) {
	s.mu.Lock()
	delete(s.rooms, rideID)
	s.mu.Unlock()
}

func (s *Session) inRoom(rideID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.rooms[rideID]
	return ok
}

// JoinedRooms returns a copy of the session's joined room ids.
func (s *Session) JoinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.rooms))
	for rideID := range s.rooms {
		out = append(out, rideID)
	}
	return out
}

// ShouldThrottleLocation decides whether a new coordinate from this
// session is suppressed. A point is allowed once window has elapsed
// since the last broadcast, or earlier if it moved at least minDistance
// meters. Suppressed points get no reply at all; this is a rate limit,
// not an error.
func (s *Session) ShouldThrottleLocation(p geo.Point, window time.Duration, minDistance float64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if time.Since(s.lastLocationBroadcast) >= window {
		return false
	}

	if s.lastCoords != nil {
		if geo.EquirectangularMeters(*s.lastCoords, p) >= minDistance {
			return false
		}
	}

	return true
}

// MarkLocationBroadcast records a successfully broadcast coordinate.
func (s *Session) MarkLocationBroadcast(p geo.Point) {
	s.mu.Lock()
	s.lastLocationBroadcast = time.Now()
	s.lastCoords = &p
	s.mu.Unlock()
}

// send writes msg to the connection under the write lock with a
// deadline. The caller decides what a failure means for liveness.
func (s *Session) send(msg any, timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		return err
	}
	if err := s.conn.WriteJSON(msg); err != nil {
		return err
	}

	s.TouchActivity()
	return nil
}

// close closes the underlying handle. Errors are the caller's to
// swallow; disconnect paths treat close failures as best-effort.
func (s *Session) close() error {
	return s.conn.Close()
}
