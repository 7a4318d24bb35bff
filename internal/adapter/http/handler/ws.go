package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/realtime"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
)

const maxMessageSizeBytes = 65536

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin clients (mobile apps, local dev) are expected
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WS struct {
	registry   *realtime.Registry
	dispatcher *realtime.Dispatcher
	rides      realtime.RideStore
	log        logger.Logger
}

func NewWS(registry *realtime.Registry, dispatcher *realtime.Dispatcher, rides realtime.RideStore, log logger.Logger) *WS {
	return &WS{
		registry:   registry,
		dispatcher: dispatcher,
		rides:      rides,
		log:        log,
	}
}

// Handle upgrades GET /ws to a websocket session. The identity comes
// from the auth middleware; unauthenticated upgrades are rejected
// before the handshake.
func (h *WS) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, ok := models.IdentityFromContext(ctx)
	if !ok {
		errorResponse(w, http.StatusUnauthorized, "authorization required")
		return
	}
	if id.Role != types.RoleRider && id.Role != types.RoleDriver {
		errorResponse(w, http.StatusForbidden, "unsupported role for realtime connection")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn(wrap.WithAction(ctx, "ws_upgrade"), "websocket upgrade failed", "error", err.Error())
		return
	}
	conn.SetReadLimit(maxMessageSizeBytes)

	session := h.registry.Connect(ctx, conn, id.UserID, id.Role)

	h.sendConnected(ctx, id)

	// the read loop owns the connection from here
	h.dispatcher.ServeSession(ctx, session)
}

// sendConnected pushes the welcome event, including the active ride if
// the user reconnected mid-trip.
func (h *WS) sendConnected(ctx context.Context, id models.Identity) {
	event := models.ConnectedEvent{
		EventType: types.EventConnected,
		UserID:    id.UserID,
		Role:      id.Role,
		Timestamp: time.Now().UTC(),
	}

	ride, err := h.rides.FindActiveForUser(ctx, id.UserID)
	if err != nil && !errors.Is(err, types.ErrRideNotFound) {
		h.log.Warn(wrap.WithUserID(ctx, id.UserID.String()), "failed to look up active ride", "error", err.Error())
	}
	if ride != nil {
		event.ActiveRide = &models.ActiveRideInfo{
			RideID: ride.ID.String(),
			Status: ride.Status,
		}
	}

	h.dispatcher.SendToUser(ctx, id.UserID, event)
}
