package matching

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/config"
	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
	"github.com/eboda/ride-hail-realtime/pkg/metrics"
	"github.com/eboda/ride-hail-realtime/pkg/trm"
)

type RideRepo interface {
	GetByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	MarkAccepted(ctx context.Context, rideID, driverID uuid.UUID) error
	MarkCancelled(ctx context.Context, rideID uuid.UUID, reason string) error
}

type DriverRepo interface {
	FindNearestAvailable(ctx context.Context, near geo.Point, radiusKm float64) (*models.Driver, error)
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error
	CountAvailable(ctx context.Context) (int, error)
}

// Notifier is the realtime push surface the engine uses. The websocket
// dispatcher implements it.
type Notifier interface {
	SendToUser(ctx context.Context, userID uuid.UUID, msg any) bool
	AddToRoom(rideID string, userIDs ...uuid.UUID)
}

// PendingAssignment tracks a ride waiting for a driver.
type PendingAssignment struct {
	RideID    uuid.UUID
	RiderID   uuid.UUID
	CreatedAt time.Time
	Attempts  int
}

// RetryResult reports the outcome of one retry-assignment pass.
type RetryResult struct {
	Assigned         bool
	Driver           *models.Driver
	Expired          bool
	Reason           string
	Attempts         int
	AvailableDrivers int
}

// Engine matches pending rides to the nearest available driver and
// tracks the ones that could not be matched yet.
type Engine struct {
	cfg      config.MatchingConfig
	rides    RideRepo
	drivers  DriverRepo
	trm      trm.TxManager
	notifier Notifier
	log      logger.Logger

	mu      sync.Mutex
	pending map[uuid.UUID]*PendingAssignment
}

func NewEngine(cfg config.MatchingConfig, rides RideRepo, drivers DriverRepo, txm trm.TxManager, notifier Notifier, log logger.Logger) *Engine {
	return &Engine{
		cfg:      cfg,
		rides:    rides,
		drivers:  drivers,
		trm:      txm,
		notifier: notifier,
		log:      log,
		pending:  make(map[uuid.UUID]*PendingAssignment),
	}
}

// AttemptAssign tries to match a freshly created pending ride. On
// success the ride is accepted, the driver is reserved and both
// parties are notified. When no driver is within range the ride is
// queued for retry and ErrDriverNotFound is returned.
func (e *Engine) AttemptAssign(ctx context.Context, ride *models.Ride) (*models.Driver, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "attempt_assign"), ride.ID.String())

	driver, err := e.drivers.FindNearestAvailable(ctx, ride.Pickup, e.cfg.SearchRadiusKm)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to search for drivers: %w", err))
	}

	if driver == nil {
		e.log.Warn(ctx, "no available driver in range", "radius_km", e.cfg.SearchRadiusKm)
		e.track(ride.ID, ride.RiderID)
		metrics.MatchesTotal.WithLabelValues("no_driver").Inc()
		return nil, types.ErrDriverNotFound
	}

	if err := e.assign(ctx, ride, driver); err != nil {
		return nil, err
	}
	return driver, nil
}

// RetryAssign re-runs matching for a pending ride, enforcing the
// pending TTL and the attempt cap. Both limits cancel the ride and
// push no_driver_found to the rider.
func (e *Engine) RetryAssign(ctx context.Context, rideID uuid.UUID) (*RetryResult, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "retry_assign"), rideID.String())

	ride, err := e.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if ride.Status != types.StatusPending {
		return nil, fmt.Errorf("cannot retry assignment for %s ride: %w", ride.Status, types.ErrInvalidTransition)
	}

	if time.Since(e.pendingSince(ride.ID, ride.CreatedAt)) > e.cfg.PendingTTL {
		return e.expire(ctx, ride, types.NoDriverReasonTimeout, 0,
			"No driver found within time limit",
			"No driver available. Please try again.")
	}

	driver, err := e.drivers.FindNearestAvailable(ctx, ride.Pickup, e.cfg.SearchRadiusKm)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to search for drivers: %w", err))
	}

	if driver != nil {
		if err := e.assign(ctx, ride, driver); err != nil {
			return nil, err
		}
		return &RetryResult{Assigned: true, Driver: driver}, nil
	}

	attempts := e.bumpAttempts(ride.ID, ride.RiderID, ride.CreatedAt)
	if attempts >= e.cfg.MaxAttempts {
		return e.expire(ctx, ride, types.NoDriverReasonMaxAttempts, attempts,
			"No driver found after multiple attempts",
			"No drivers available. Please try again later.")
	}

	available, err := e.drivers.CountAvailable(ctx)
	if err != nil {
		e.log.Warn(ctx, "failed to count available drivers", "error", err.Error())
	}

	metrics.MatchesTotal.WithLabelValues("no_driver").Inc()
	return &RetryResult{Attempts: attempts, AvailableDrivers: available}, nil
}

// assign moves the ride to accepted and reserves the driver in one
// transaction, then enrolls both parties in the ride room and notifies
// them.
func (e *Engine) assign(ctx context.Context, ride *models.Ride, driver *models.Driver) error {
	err := e.trm.Do(ctx, func(ctx context.Context) error {
		if err := e.rides.MarkAccepted(ctx, ride.ID, driver.ID); err != nil {
			return err
		}
		return e.drivers.SetAvailability(ctx, driver.ID, false)
	})
	if err != nil {
		return wrap.Error(ctx, fmt.Errorf("failed to assign driver: %w", err))
	}

	e.untrack(ride.ID)
	metrics.MatchesTotal.WithLabelValues("assigned").Inc()

	rideID := ride.ID.String()
	e.notifier.AddToRoom(rideID, ride.RiderID, driver.ID)

	now := time.Now().UTC()
	e.notifier.SendToUser(ctx, driver.ID, models.RideAssignedEvent{
		EventType:      types.EventRideAssigned,
		RideID:         rideID,
		Pickup:         ride.Pickup,
		PickupAddress:  ride.PickupAddress,
		Dropoff:        ride.Dropoff,
		DropoffAddress: ride.DropoffAddress,
		EstimatedFare:  ride.EstimatedFare,
		DistanceKm:     ride.DistanceKm,
		RiderID:        ride.RiderID.String(),
		Timestamp:      now,
	})
	e.notifier.SendToUser(ctx, ride.RiderID, models.RideAcceptedEvent{
		EventType: types.EventRideAccepted,
		RideID:    rideID,
		Driver:    driver.Summary(),
		Message:   "Driver assigned to your ride",
		Timestamp: now,
	})

	e.log.Info(ctx, "ride assigned to driver", "driver_id", driver.ID.String())
	return nil
}

// expire cancels a pending ride that ran out of time or attempts and
// tells the rider why.
func (e *Engine) expire(ctx context.Context, ride *models.Ride, reason string, attempts int, cancellationReason, message string) (*RetryResult, error) {
	if err := e.rides.MarkCancelled(ctx, ride.ID, cancellationReason); err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("failed to cancel expired ride: %w", err))
	}

	e.untrack(ride.ID)
	metrics.MatchesTotal.WithLabelValues(reason).Inc()

	e.notifier.SendToUser(ctx, ride.RiderID, models.NoDriverFoundEvent{
		EventType: types.EventNoDriverFound,
		RideID:    ride.ID.String(),
		Reason:    reason,
		Attempts:  attempts,
		Message:   message,
		Timestamp: time.Now().UTC(),
	})

	e.log.Warn(ctx, "pending ride expired", "reason", reason, "attempts", attempts)
	return &RetryResult{Expired: true, Reason: reason, Attempts: attempts}, nil
}

func (e *Engine) track(rideID, riderID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[rideID]; ok {
		return
	}
	e.pending[rideID] = &PendingAssignment{
		RideID:    rideID,
		RiderID:   riderID,
		CreatedAt: time.Now(),
	}
	metrics.PendingAssignments.Inc()
}

// Untrack drops the ride from the pending queue, as happens when it is
// cancelled through the lifecycle API.
func (e *Engine) Untrack(rideID uuid.UUID) {
	e.untrack(rideID)
}

func (e *Engine) untrack(rideID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.pending[rideID]; ok {
		delete(e.pending, rideID)
		metrics.PendingAssignments.Dec()
	}
}

// pendingSince reports when the ride entered the pending queue. Rides
// not yet tracked (retry before any failed attempt) fall back to their
// creation time.
func (e *Engine) pendingSince(rideID uuid.UUID, fallback time.Time) time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.pending[rideID]; ok {
		return p.CreatedAt
	}
	return fallback
}

func (e *Engine) bumpAttempts(rideID, riderID uuid.UUID, createdAt time.Time) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, ok := e.pending[rideID]
	if !ok {
		p = &PendingAssignment{RideID: rideID, RiderID: riderID, CreatedAt: createdAt}
		e.pending[rideID] = p
		metrics.PendingAssignments.Inc()
	}
	p.Attempts++
	return p.Attempts
}

// PendingCount reports how many rides are waiting for a driver.
func (e *Engine) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}
