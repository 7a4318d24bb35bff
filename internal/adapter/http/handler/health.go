package handler

import (
	"context"
	"net/http"

	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Health struct {
	serviceName string
	db          Pinger
	log         logger.Logger
}

func NewHealth(serviceName string, db Pinger, log logger.Logger) *Health {
	return &Health{
		serviceName: serviceName,
		db:          db,
		log:         log,
	}
}

// HealthCheck - returns system information.
func (h *Health) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "health_check")

	status := http.StatusOK
	dbStatus := "available"
	if h.db != nil {
		if err := h.db.Ping(ctx); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "unavailable"
			h.log.Warn(ctx, "database ping failed", "error", err.Error())
		}
	}

	response := envelope{
		"status": "available",
		"system_info": map[string]string{
			"service-name": h.serviceName,
			"database":     dbStatus,
		},
	}
	if status != http.StatusOK {
		response["status"] = "degraded"
	}

	if err := writeJSON(w, status, response, nil); err != nil {
		h.log.Error(ctx, "healthcheck", err)
		return
	}
}
