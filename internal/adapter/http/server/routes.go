package server

import (
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eboda/ride-hail-realtime/internal/domain/types"
)

// setupRoutes - setups http routes
func (a *API) setupRoutes() {
	// System health
	a.mux.HandleFunc("GET /health", a.routes.health.HealthCheck)
	a.mux.Handle("GET /metrics", promhttp.Handler())

	// Realtime
	a.mux.HandleFunc("GET /ws", a.routes.ws.Handle)
	a.mux.Handle("GET /ws/stats", a.m.RequireRoles(a.routes.stats.Snapshot))

	// Ride lifecycle
	a.mux.Handle("POST /rides", a.m.RequireRoles(a.routes.ride.CreateRide, types.RoleRider))
	a.mux.Handle("GET /rides/history", a.m.RequireRoles(a.routes.ride.RideHistory))
	a.mux.Handle("GET /rides/available", a.m.RequireRoles(a.routes.ride.AvailableRides, types.RoleDriver))
	a.mux.Handle("GET /rides/nearby-drivers", a.m.RequireRoles(a.routes.ride.NearbyDrivers))
	a.mux.Handle("GET /rides/{ride_id}", a.m.RequireRoles(a.routes.ride.GetRide))
	a.mux.Handle("POST /rides/{ride_id}/accept", a.m.RequireRoles(a.routes.ride.AcceptRide, types.RoleDriver))
	a.mux.Handle("POST /rides/{ride_id}/start", a.m.RequireRoles(a.routes.ride.StartRide, types.RoleDriver))
	a.mux.Handle("POST /rides/{ride_id}/complete", a.m.RequireRoles(a.routes.ride.CompleteRide, types.RoleDriver))
	a.mux.Handle("POST /rides/{ride_id}/cancel", a.m.RequireRoles(a.routes.ride.CancelRide))
	a.mux.Handle("POST /rides/{ride_id}/retry-assign", a.m.RequireRoles(a.routes.ride.RetryAssign, types.RoleRider))
}
