package ride

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
	wrap "github.com/eboda/ride-hail-realtime/pkg/logger/wrapper"
	"github.com/eboda/ride-hail-realtime/pkg/trm"
)

// Service implements the ride lifecycle: creation with optional
// auto-assignment, the accepted/started/completed/cancelled
// transitions and the read paths. Every transition is validated
// against the lifecycle table before any write.
type Service struct {
	rides    RideRepo
	drivers  DriverRepo
	matcher  Matcher
	notifier Notifier
	pub      Publisher
	trm      trm.TxManager
	log      logger.Logger
}

func NewService(rides RideRepo, drivers DriverRepo, matcher Matcher, notifier Notifier, pub Publisher, txm trm.TxManager, log logger.Logger) *Service {
	return &Service{
		rides:    rides,
		drivers:  drivers,
		matcher:  matcher,
		notifier: notifier,
		pub:      pub,
		trm:      txm,
		log:      log,
	}
}

// Create persists a new pending ride with its computed distance and
// fare, then optionally runs the matching engine. A failed assignment
// never fails the creation; the ride stays pending in the retry queue.
func (s *Service) Create(ctx context.Context, ride *models.Ride, autoAssign bool) (*models.Ride, *models.Driver, error) {
	ctx = wrap.WithAction(ctx, "create_ride")

	if !ride.Pickup.Valid() || !ride.Dropoff.Valid() {
		return nil, nil, types.ErrInvalidCoordinates
	}

	distance, duration := EstimateTrip(ride.Pickup, ride.Dropoff)

	ride.ID = uuid.New()
	ride.Status = types.StatusPending
	ride.DistanceKm = distance
	ride.EstimatedFare = CalculateFare(distance, duration)
	ride.CreatedAt = time.Now().UTC()

	if err := s.rides.Create(ctx, ride); err != nil {
		return nil, nil, wrap.Error(ctx, fmt.Errorf("could not create ride: %w", err))
	}

	ctx = wrap.WithRideID(ctx, ride.ID.String())
	s.log.Info(ctx, "ride created",
		"distance_km", ride.DistanceKm,
		"estimated_fare", ride.EstimatedFare,
	)

	s.publish(ctx, types.RouteRideCreated, ride)

	if !autoAssign {
		return ride, nil, nil
	}

	driver, err := s.matcher.AttemptAssign(ctx, ride)
	if err != nil {
		if !errors.Is(err, types.ErrDriverNotFound) {
			s.log.Error(wrap.ErrorCtx(ctx, err), "auto-assignment failed", err)
		}
		return ride, nil, nil
	}

	// reflect the assignment in the returned ride
	ride.Status = types.StatusAccepted
	ride.DriverID = &driver.ID
	s.publish(ctx, types.RouteRideAccepted, ride)

	return ride, driver, nil
}

// Get returns a ride, restricted to its participants.
func (s *Service) Get(ctx context.Context, rideID, userID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "get_ride"), rideID.String())

	ride, err := s.rides.GetByID(ctx, rideID)
	if err != nil {
		return nil, err
	}
	if !ride.IsParticipant(userID) {
		return nil, types.ErrNotRideParticipant
	}
	return ride, nil
}

// History lists a user's rides, newest first, optionally filtered by
// status.
func (s *Service) History(ctx context.Context, userID uuid.UUID, status types.RideStatus) ([]models.Ride, error) {
	ctx = wrap.WithAction(ctx, "ride_history")
	return s.rides.ListForUser(ctx, userID, status)
}

// AvailableRides lists pending rides for a driver browsing requests.
func (s *Service) AvailableRides(ctx context.Context) ([]models.Ride, error) {
	ctx = wrap.WithAction(ctx, "available_rides")
	return s.rides.ListPending(ctx)
}

// FindActiveRide returns the user's current non-terminal ride, if any.
// Used to restore state on reconnect.
func (s *Service) FindActiveRide(ctx context.Context, userID uuid.UUID) (*models.Ride, error) {
	return s.rides.FindActiveForUser(ctx, userID)
}

// NearbyDrivers returns up to limit available drivers around a point,
// sorted by distance.
func (s *Service) NearbyDrivers(ctx context.Context, near geo.Point, radiusKm float64, limit int) ([]models.NearbyDriver, error) {
	ctx = wrap.WithAction(ctx, "nearby_drivers")

	if !near.Valid() {
		return nil, types.ErrInvalidCoordinates
	}

	drivers, err := s.drivers.ListAvailableNear(ctx, near, radiusKm, limit)
	if err != nil {
		return nil, wrap.Error(ctx, fmt.Errorf("could not search for drivers: %w", err))
	}

	out := make([]models.NearbyDriver, 0, len(drivers))
	for i := range drivers {
		d := &drivers[i]
		if d.Location == nil {
			continue
		}
		km := geo.HaversineKm(near, *d.Location)
		out = append(out, models.NearbyDriver{
			DriverSummary: d.Summary(),
			DistanceKm:    roundKm(km),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DistanceKm < out[j].DistanceKm })

	return out, nil
}

// Accept assigns the calling driver to a pending ride. The ride update
// and the driver reservation commit together.
func (s *Service) Accept(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "accept_ride"), rideID.String())

	driver, err := s.drivers.GetByID(ctx, driverID)
	if err != nil {
		return nil, err
	}
	if !driver.IsAvailable {
		return nil, fmt.Errorf("driver must be available to accept rides")
	}

	var accepted *models.Ride
	err = s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if err := ValidateTransition(ride.Status, types.StatusAccepted); err != nil {
			return err
		}

		now := time.Now().UTC()
		ride.Status = types.StatusAccepted
		ride.DriverID = &driverID
		ride.AcceptedAt = &now

		if err := s.rides.Update(ctx, ride); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not update ride: %w", err))
		}
		if err := s.drivers.SetAvailability(ctx, driverID, false); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not reserve driver: %w", err))
		}

		accepted = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.matcher.Untrack(rideID)

	id := rideID.String()
	s.notifier.AddToRoom(id, accepted.RiderID, driverID)
	s.notifier.SendToUser(ctx, accepted.RiderID, models.RideAcceptedEvent{
		EventType: types.EventRideAccepted,
		RideID:    id,
		Driver:    driver.Summary(),
		Message:   "Your ride has been accepted!",
		Timestamp: time.Now().UTC(),
	})

	s.publish(ctx, types.RouteRideAccepted, accepted)
	s.log.Info(ctx, "ride accepted", "driver_id", driverID.String())

	return accepted, nil
}

// Start moves an accepted ride to in_progress. Only the assigned
// driver may start it.
func (s *Service) Start(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "start_ride"), rideID.String())

	var started *models.Ride
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.DriverID == nil || *ride.DriverID != driverID {
			return types.ErrNotRideParticipant
		}
		if err := ValidateTransition(ride.Status, types.StatusInProgress); err != nil {
			return err
		}

		now := time.Now().UTC()
		ride.Status = types.StatusInProgress
		ride.StartedAt = &now

		if err := s.rides.Update(ctx, ride); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not update ride: %w", err))
		}
		started = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.SendToUser(ctx, started.RiderID, models.RideStartedEvent{
		EventType: types.EventRideStarted,
		RideID:    rideID.String(),
		Timestamp: time.Now().UTC(),
	})

	s.publish(ctx, types.RouteRideStarted, started)
	s.log.Info(ctx, "ride started")

	return started, nil
}

// Complete finishes an in-progress ride: the final fare is settled,
// the driver is released and the room is closed after the rider is
// notified.
func (s *Service) Complete(ctx context.Context, rideID, driverID uuid.UUID) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "complete_ride"), rideID.String())

	var completed *models.Ride
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if ride.DriverID == nil || *ride.DriverID != driverID {
			return types.ErrNotRideParticipant
		}
		if err := ValidateTransition(ride.Status, types.StatusCompleted); err != nil {
			return err
		}

		now := time.Now().UTC()
		fare := ride.EstimatedFare
		ride.Status = types.StatusCompleted
		ride.CompletedAt = &now
		ride.FinalFare = &fare

		if err := s.rides.Update(ctx, ride); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not update ride: %w", err))
		}
		if err := s.drivers.SetAvailability(ctx, driverID, true); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not release driver: %w", err))
		}

		completed = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	duration := 0
	if completed.StartedAt != nil && completed.CompletedAt != nil {
		duration = int(completed.CompletedAt.Sub(*completed.StartedAt).Minutes())
	}

	s.notifier.SendToUser(ctx, completed.RiderID, models.RideCompletedEvent{
		EventType:       types.EventRideCompleted,
		RideID:          rideID.String(),
		FinalFare:       *completed.FinalFare,
		DistanceKm:      completed.DistanceKm,
		DurationMinutes: duration,
		Timestamp:       time.Now().UTC(),
	})
	s.notifier.CloseRoom(ctx, rideID.String())

	s.publish(ctx, types.RouteRideCompleted, completed)
	s.log.Info(ctx, "ride completed", "final_fare", *completed.FinalFare, "duration_minutes", duration)

	return completed, nil
}

// Cancel ends a ride before completion. Riders and the assigned driver
// may cancel; an assigned driver is released. Cancelling an already
// terminal ride is rejected by the transition table.
func (s *Service) Cancel(ctx context.Context, rideID, userID uuid.UUID, reason string) (*models.Ride, error) {
	ctx = wrap.WithRideID(wrap.WithAction(ctx, "cancel_ride"), rideID.String())

	var cancelled *models.Ride
	err := s.trm.Do(ctx, func(ctx context.Context) error {
		ride, err := s.rides.GetByID(ctx, rideID)
		if err != nil {
			return err
		}
		if !ride.IsParticipant(userID) {
			return types.ErrNotRideParticipant
		}
		if err := ValidateTransition(ride.Status, types.StatusCancelled); err != nil {
			return err
		}

		now := time.Now().UTC()
		ride.Status = types.StatusCancelled
		ride.CancelledAt = &now
		ride.CancellationReason = &reason

		if err := s.rides.Update(ctx, ride); err != nil {
			return wrap.Error(ctx, fmt.Errorf("could not update ride: %w", err))
		}
		if ride.DriverID != nil {
			if err := s.drivers.SetAvailability(ctx, *ride.DriverID, true); err != nil {
				return wrap.Error(ctx, fmt.Errorf("could not release driver: %w", err))
			}
		}

		cancelled = ride
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.matcher.Untrack(rideID)

	id := rideID.String()
	s.notifier.BroadcastToRoom(ctx, id, models.RideCancelledEvent{
		EventType: types.EventRideCancelled,
		RideID:    id,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}, uuid.Nil)
	s.notifier.CloseRoom(ctx, id)

	s.publish(ctx, types.RouteRideCancelled, cancelled)
	s.log.Info(ctx, "ride cancelled", "reason", reason)

	return cancelled, nil
}

// publish emits a lifecycle event to the broker. Broker trouble never
// fails the operation that triggered it.
func (s *Service) publish(ctx context.Context, routingKey string, ride *models.Ride) {
	if s.pub == nil {
		return
	}
	if err := s.pub.PublishRideEvent(ctx, routingKey, ride); err != nil {
		s.log.Warn(ctx, "failed to publish ride event", "routing_key", routingKey, "error", err.Error())
	}
}

func roundKm(km float64) float64 {
	return float64(int(km*100+0.5)) / 100
}
