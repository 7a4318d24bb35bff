package handler

import (
	"net/http"

	"github.com/eboda/ride-hail-realtime/internal/realtime"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
)

type Stats struct {
	registry *realtime.Registry
	log      logger.Logger
}

func NewStats(registry *realtime.Registry, log logger.Logger) *Stats {
	return &Stats{registry: registry, log: log}
}

// Snapshot handles GET /ws/stats: the monitoring view over live
// connections and rooms.
func (h *Stats) Snapshot(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "ws_stats")

	snapshot := h.registry.Stats()

	if err := writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"stats":   snapshot,
	}, nil); err != nil {
		h.log.Error(ctx, "failed to write stats", err)
	}
}
