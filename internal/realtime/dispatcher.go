package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/config"
	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
	"github.com/eboda/ride-hail-realtime/pkg/metrics"
)

// HandlerFunc processes one inbound event. The returned value, if
// non-nil, is sent back to the originating session.
type HandlerFunc func(ctx context.Context, s *Session, payload json.RawMessage) any

// Dispatcher routes inbound websocket events to handlers and pushes
// outbound events to individual users, rooms or everyone.
type Dispatcher struct {
	cfg      config.RealtimeConfig
	registry *Registry
	rooms    *RoomRegistry
	log      logger.Logger

	handlers map[string]HandlerFunc
}

func NewDispatcher(cfg config.RealtimeConfig, registry *Registry, rooms *RoomRegistry, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		cfg:      cfg,
		registry: registry,
		rooms:    rooms,
		log:      log,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register binds a handler to an inbound event type. Registration
// happens during wiring, before any session is served.
func (d *Dispatcher) Register(eventType string, h HandlerFunc) {
	d.handlers[eventType] = h
}

// ServeSession runs the read loop for one admitted session. It returns
// when the peer disconnects, the context is cancelled or the session
// is torn down elsewhere. The session is always disconnected on exit.
func (d *Dispatcher) ServeSession(ctx context.Context, s *Session) {
	ctx = wrap.WithUserID(ctx, s.UserID.String())

	defer d.registry.Disconnect(ctx, s.UserID, "connection ended")

	for {
		if ctx.Err() != nil {
			return
		}
		if !s.IsAlive() {
			return
		}

		// The read deadline doubles as the heartbeat probe: a timed-out
		// read re-checks liveness instead of killing the session.
		if err := s.conn.SetReadDeadline(time.Now().Add(d.cfg.HeartbeatInterval)); err != nil {
			return
		}

		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return
		}

		s.TouchActivity()
		d.dispatch(ctx, s, raw)
	}
}

// dispatch decodes the envelope, routes to the registered handler and
// sends the handler's reply, if any. Malformed input produces an error
// event, never a disconnect.
func (d *Dispatcher) dispatch(ctx context.Context, s *Session, raw []byte) {
	var env models.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		d.reply(ctx, s, models.NewErrorEvent("invalid JSON format"))
		return
	}

	if env.EventType == "" {
		d.reply(ctx, s, models.NewErrorEvent("missing event_type"))
		return
	}

	h, ok := d.handlers[env.EventType]
	if !ok {
		d.reply(ctx, s, models.NewErrorEvent("unknown event type: "+env.EventType))
		return
	}

	metrics.EventsDispatched.WithLabelValues(env.EventType).Inc()

	if out := h(wrap.WithAction(ctx, env.EventType), s, raw); out != nil {
		d.reply(ctx, s, out)
	}
}

// reply sends to the session the loop is serving. A failure here marks
// the session dead; the loop exits on its next iteration.
func (d *Dispatcher) reply(ctx context.Context, s *Session, msg any) {
	if err := s.send(msg, d.cfg.SendTimeout); err != nil {
		s.markDead()
		metrics.SendFailures.Inc()
		d.log.Debug(ctx, "reply failed", "error", err.Error())
	}
}

// SendToUser delivers msg to the given user's session, if connected.
// Returns false when the user is absent or delivery fails. A failed
// send marks the session dead for the cleanup loop to reap.
func (d *Dispatcher) SendToUser(ctx context.Context, userID uuid.UUID, msg any) bool {
	s, ok := d.registry.Get(userID)
	if !ok || !s.IsAlive() {
		return false
	}

	if err := s.send(msg, d.cfg.SendTimeout); err != nil {
		s.markDead()
		metrics.SendFailures.Inc()
		d.log.Warn(wrap.WithUserID(ctx, userID.String()),
			"send to user failed", "error", err.Error())
		return false
	}
	return true
}

// AddToRoom enrolls users into a ride room from the server side, as
// happens on driver assignment. Users without a live session are still
// enrolled; broadcasts simply skip them until they connect and join.
func (d *Dispatcher) AddToRoom(rideID string, userIDs ...uuid.UUID) {
	for _, userID := range userIDs {
		d.rooms.Join(rideID, userID)
		if s, ok := d.registry.Get(userID); ok {
			s.addRoom(rideID)
		}
	}
}

// CloseRoom tears the ride's room down after a terminal transition and
// detaches it from every member's session.
func (d *Dispatcher) CloseRoom(ctx context.Context, rideID string) {
	for _, userID := range d.rooms.Remove(rideID) {
		if s, ok := d.registry.Get(userID); ok {
			s.removeRoom(rideID)
		}
	}
	d.log.Debug(wrap.WithRideID(ctx, rideID), "ride room closed")
}

// BroadcastToRoom fans msg out to every participant of the ride's
// room, skipping exclude (uuid.Nil excludes nobody). Sends run
// concurrently; one slow peer does not delay the rest. Returns the
// number of successful deliveries.
func (d *Dispatcher) BroadcastToRoom(ctx context.Context, rideID string, msg any, exclude uuid.UUID) int {
	participants := d.rooms.Participants(rideID)
	if len(participants) == 0 {
		return 0
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)

	for _, userID := range participants {
		if userID == exclude {
			continue
		}

		wg.Add(1)
		go func(userID uuid.UUID) {
			defer wg.Done()
			if d.SendToUser(ctx, userID, msg) {
				delivered.Add(1)
			}
		}(userID)
	}
	wg.Wait()

	metrics.BroadcastsTotal.Inc()
	return int(delivered.Load())
}

// BroadcastToAll delivers msg to every connected session. Failed
// recipients are fully disconnected rather than just marked dead,
// since nothing else references them. Returns the delivery count.
func (d *Dispatcher) BroadcastToAll(ctx context.Context, msg any) int {
	sessions := d.registry.Snapshot()

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)

	for _, s := range sessions {
		if !s.IsAlive() {
			continue
		}

		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			if err := s.send(msg, d.cfg.SendTimeout); err != nil {
				metrics.SendFailures.Inc()
				d.registry.Disconnect(ctx, s.UserID, "broadcast delivery failed")
				return
			}
			delivered.Add(1)
		}(s)
	}
	wg.Wait()

	metrics.BroadcastsTotal.Inc()
	return int(delivered.Load())
}
