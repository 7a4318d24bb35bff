package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/config"
	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
	"github.com/eboda/ride-hail-realtime/pkg/metrics"
)

// Registry owns every live Session, keyed by user id. At most one live
// session exists per identity; admitting a second one forcibly
// disconnects the first.
type Registry struct {
	cfg   config.RealtimeConfig
	rooms *RoomRegistry
	log   logger.Logger

	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewRegistry(cfg config.RealtimeConfig, rooms *RoomRegistry, log logger.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		rooms:    rooms,
		log:      log,
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Connect admits a new connection for the given identity. An existing
// session for the same user is disconnected first.
func (r *Registry) Connect(ctx context.Context, c conn, userID uuid.UUID, role types.UserRole) *Session {
	ctx = wrap.WithUserID(ctx, userID.String())

	r.mu.Lock()
	old := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if old != nil {
		r.log.Info(wrap.WithAction(ctx, "replace_connection"), "closing existing connection for user")
		r.teardown(ctx, old, "new connection established")
	}

	s := newSession(c, userID, role)

	r.mu.Lock()
	r.sessions[userID] = s
	r.mu.Unlock()

	metrics.WebSocketConnections.Inc()
	r.log.Info(wrap.WithAction(ctx, "ws_connected"), "websocket connected", "role", role)

	return s
}

// Disconnect marks the session dead, removes it from every room it had
// joined, closes the handle best-effort and drops it from the table.
// Unknown users are a no-op.
func (r *Registry) Disconnect(ctx context.Context, userID uuid.UUID, reason string) {
	r.mu.Lock()
	s := r.sessions[userID]
	delete(r.sessions, userID)
	r.mu.Unlock()

	if s == nil {
		return
	}

	r.teardown(wrap.WithUserID(ctx, userID.String()), s, reason)
}

func (r *Registry) teardown(ctx context.Context, s *Session, reason string) {
	s.markDead()

	for _, rideID := range s.JoinedRooms() {
		r.rooms.Leave(rideID, s.UserID)
		s.removeRoom(rideID)
	}

	// close failures are swallowed; the peer may already be gone
	_ = s.close()

	metrics.WebSocketConnections.Dec()
	r.log.Info(wrap.WithAction(ctx, "ws_disconnected"), "websocket disconnected", "reason", reason)
}

// Get returns the session for userID, if present.
func (r *Registry) Get(userID uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[userID]
	return s, ok
}

// IsConnected reports whether userID has a live session.
func (r *Registry) IsConnected(userID uuid.UUID) bool {
	s, ok := r.Get(userID)
	return ok && s.IsAlive()
}

// Snapshot returns a point-in-time copy of all sessions.
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// Stats assembles the monitoring snapshot over both tables.
func (r *Registry) Stats() models.StatsSnapshot {
	byRole := map[string]int{
		types.RoleRider.String():  0,
		types.RoleDriver.String(): 0,
	}

	r.mu.Lock()
	total := len(r.sessions)
	for _, s := range r.sessions {
		byRole[s.Role.String()]++
	}
	r.mu.Unlock()

	roomCounts := r.rooms.ParticipantCounts()

	return models.StatsSnapshot{
		ActiveConnections: total,
		ActiveRooms:       len(roomCounts),
		Rooms:             roomCounts,
		ConnectionsByRole: byRole,
	}
}

// Start launches the cleanup and keepalive loops. Both stop when ctx
// is cancelled. Transient failures are logged and the loops continue.
func (r *Registry) Start(ctx context.Context) {
	go r.cleanupLoop(ctx)
	go r.keepaliveLoop(ctx)
	r.log.Info(wrap.WithAction(ctx, "registry_start"), "connection registry started",
		"cleanup_interval", r.cfg.CleanupInterval.String(),
		"ping_interval", r.cfg.PingInterval.String(),
	)
}

func (r *Registry) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.evictStale(ctx)
			r.rooms.deleteEmpty()
		}
	}
}

func (r *Registry) evictStale(ctx context.Context) {
	var stale []uuid.UUID

	r.mu.Lock()
	for userID, s := range r.sessions {
		if s.IsStale(r.cfg.HeartbeatTimeout) {
			stale = append(stale, userID)
		}
	}
	r.mu.Unlock()

	for _, userID := range stale {
		r.log.Warn(wrap.WithUserID(wrap.WithAction(ctx, "evict_stale"), userID.String()),
			"removing stale connection")
		r.Disconnect(ctx, userID, "heartbeat timeout")
		metrics.StaleSessionsEvicted.Inc()
	}
}

func (r *Registry) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sendKeepalivePings(ctx)
		}
	}
}

// sendKeepalivePings pings every idle session. A failed ping only
// marks the session dead; the cleanup loop reaps it later.
func (r *Registry) sendKeepalivePings(ctx context.Context) {
	ping := models.PingEvent{EventType: types.EventPing, Timestamp: time.Now().UTC()}

	for _, s := range r.Snapshot() {
		if !s.IsAlive() || !s.NeedsPing(r.cfg.PingInterval) {
			continue
		}
		if err := s.send(ping, r.cfg.SendTimeout); err != nil {
			s.markDead()
			r.log.Debug(wrap.WithUserID(ctx, s.UserID.String()),
				"keepalive ping failed", "error", err.Error())
		}
	}
}
