package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/adapter/http/handler/dto"
	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
	"github.com/eboda/ride-hail-realtime/internal/service/matching"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
)

type RideService interface {
	Create(ctx context.Context, ride *models.Ride, autoAssign bool) (*models.Ride, *models.Driver, error)
	Get(ctx context.Context, rideID, userID uuid.UUID) (*models.Ride, error)
	History(ctx context.Context, userID uuid.UUID, status types.RideStatus) ([]models.Ride, error)
	AvailableRides(ctx context.Context) ([]models.Ride, error)
	NearbyDrivers(ctx context.Context, near geo.Point, radiusKm float64, limit int) ([]models.NearbyDriver, error)
	Accept(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error)
	Start(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error)
	Complete(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error)
	Cancel(ctx context.Context, rideID, userID uuid.UUID, reason string) (*models.Ride, error)
}

type MatchingService interface {
	RetryAssign(ctx context.Context, rideID uuid.UUID) (*matching.RetryResult, error)
}

type Ride struct {
	service  RideService
	matching MatchingService
	log      logger.Logger
}

func NewRide(service RideService, matchingService MatchingService, log logger.Logger) *Ride {
	return &Ride{
		service:  service,
		matching: matchingService,
		log:      log,
	}
}

// CreateRide handles POST /rides. Riders only.
func (h *Ride) CreateRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "create_ride")
	id, _ := models.IdentityFromContext(ctx)

	var req dto.CreateRideRequest
	if err := readJSON(w, r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ride := req.ToModel()
	ride.RiderID = id.UserID

	created, driver, err := h.service.Create(ctx, ride, req.AutoAssign)
	if err != nil {
		h.log.Error(wrap.ErrorCtx(ctx, err), "failed to create ride", err)
		errorResponse(w, GetCode(err), "failed to create ride request")
		return
	}

	resp := envelope{
		"success": true,
		"message": "Ride request created successfully",
		"ride":    dto.FromRide(created),
	}
	if driver != nil {
		resp["driver_assigned"] = true
		resp["driver"] = driver.Summary()
	}

	writeJSON(w, http.StatusCreated, resp, nil)
}

// GetRide handles GET /rides/{ride_id}. Participants only.
func (h *Ride) GetRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "get_ride")
	id, _ := models.IdentityFromContext(ctx)

	rideID, err := pathUUID(r, "ride_id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.Get(ctx, rideID, id.UserID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{"success": true, "ride": dto.FromRide(ride)}, nil)
}

// RideHistory handles GET /rides/history?status=...
func (h *Ride) RideHistory(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "ride_history")
	id, _ := models.IdentityFromContext(ctx)

	status := types.RideStatus(r.URL.Query().Get("status"))

	rides, err := h.service.History(ctx, id.UserID, status)
	if err != nil {
		h.log.Error(wrap.ErrorCtx(ctx, err), "failed to list ride history", err)
		errorResponse(w, GetCode(err), "failed to list rides")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"count":   len(rides),
		"rides":   dto.FromRides(rides),
	}, nil)
}

// AvailableRides handles GET /rides/available. Drivers only.
func (h *Ride) AvailableRides(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "available_rides")

	rides, err := h.service.AvailableRides(ctx)
	if err != nil {
		h.log.Error(wrap.ErrorCtx(ctx, err), "failed to list pending rides", err)
		errorResponse(w, GetCode(err), "failed to list available rides")
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"count":   len(rides),
		"rides":   dto.FromRides(rides),
	}, nil)
}

// NearbyDrivers handles GET /rides/nearby-drivers?latitude=..&longitude=..&radius_km=..
func (h *Ride) NearbyDrivers(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "nearby_drivers")

	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("latitude"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("longitude"), 64)
	if errLat != nil || errLon != nil {
		errorResponse(w, http.StatusBadRequest, "latitude and longitude are required")
		return
	}

	radiusKm := 5.0
	if raw := r.URL.Query().Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil || parsed <= 0 || parsed > 50 {
			errorResponse(w, http.StatusBadRequest, "radius_km must be between 0 and 50")
			return
		}
		radiusKm = parsed
	}

	drivers, err := h.service.NearbyDrivers(ctx, geo.Point{Latitude: lat, Longitude: lon}, radiusKm, 10)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success":          true,
		"count":            len(drivers),
		"drivers":          drivers,
		"search_radius_km": radiusKm,
	}, nil)
}

// AcceptRide handles POST /rides/{ride_id}/accept. Drivers only.
func (h *Ride) AcceptRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "accept_ride")
	id, _ := models.IdentityFromContext(ctx)

	rideID, err := pathUUID(r, "ride_id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.Accept(ctx, rideID, id.UserID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Ride accepted successfully",
		"ride":    dto.FromRide(ride),
	}, nil)
}

// StartRide handles POST /rides/{ride_id}/start. Assigned driver only.
func (h *Ride) StartRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "start_ride")
	id, _ := models.IdentityFromContext(ctx)

	rideID, err := pathUUID(r, "ride_id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.Start(ctx, rideID, id.UserID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Ride started successfully",
		"ride":    dto.FromRide(ride),
	}, nil)
}

// CompleteRide handles POST /rides/{ride_id}/complete. Assigned driver only.
func (h *Ride) CompleteRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "complete_ride")
	id, _ := models.IdentityFromContext(ctx)

	rideID, err := pathUUID(r, "ride_id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.Complete(ctx, rideID, id.UserID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	duration := 0
	if ride.StartedAt != nil && ride.CompletedAt != nil {
		duration = int(ride.CompletedAt.Sub(*ride.StartedAt).Minutes())
	}

	writeJSON(w, http.StatusOK, envelope{
		"success":          true,
		"message":          "Ride completed successfully",
		"ride":             dto.FromRide(ride),
		"duration_minutes": duration,
	}, nil)
}

// CancelRide handles POST /rides/{ride_id}/cancel. Participants only.
func (h *Ride) CancelRide(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "cancel_ride")
	id, _ := models.IdentityFromContext(ctx)

	rideID, err := pathUUID(r, "ride_id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req dto.CancelRideRequest
	if err := readJSON(w, r, &req); err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	ride, err := h.service.Cancel(ctx, rideID, id.UserID, req.FullReason())
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, envelope{
		"success": true,
		"message": "Ride cancelled successfully",
		"ride":    dto.FromRide(ride),
	}, nil)
}

// RetryAssign handles POST /rides/{ride_id}/retry-assign. The rider
// re-runs matching for their still-pending ride.
func (h *Ride) RetryAssign(w http.ResponseWriter, r *http.Request) {
	ctx := wrap.WithAction(r.Context(), "retry_assign")
	id, _ := models.IdentityFromContext(ctx)

	rideID, err := pathUUID(r, "ride_id")
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	// only the rider who owns the ride may retry
	ride, err := h.service.Get(ctx, rideID, id.UserID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}
	if ride.RiderID != id.UserID {
		errorResponse(w, http.StatusForbidden, "only the rider can retry assignment")
		return
	}

	result, err := h.matching.RetryAssign(ctx, rideID)
	if err != nil {
		errorResponse(w, GetCode(err), err.Error())
		return
	}

	switch {
	case result.Assigned:
		writeJSON(w, http.StatusOK, envelope{
			"success":         true,
			"driver_assigned": true,
			"message":         "Driver assigned successfully",
			"driver":          result.Driver.Summary(),
		}, nil)
	case result.Expired:
		writeJSON(w, http.StatusOK, envelope{
			"success":  false,
			"reason":   result.Reason,
			"attempts": result.Attempts,
			"message":  "No driver found",
		}, nil)
	default:
		writeJSON(w, http.StatusOK, envelope{
			"success":           false,
			"driver_assigned":   false,
			"attempts":          result.Attempts,
			"available_drivers": result.AvailableDrivers,
			"message":           "No driver available nearby. Will keep trying.",
		}, nil)
	}
}

func pathUUID(r *http.Request, name string) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue(name))
}
