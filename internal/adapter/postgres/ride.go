package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
)

type RideRepo struct {
	db *pgxpool.Pool
}

func NewRideRepo(db *pgxpool.Pool) *RideRepo {
	return &RideRepo{db: db}
}

const rideColumns = `
	id, rider_id, driver_id, status,
	pickup_address, pickup_latitude, pickup_longitude,
	dropoff_address, dropoff_latitude, dropoff_longitude,
	distance_km, estimated_fare, final_fare, cancellation_reason,
	created_at, accepted_at, started_at, completed_at, cancelled_at
`

func (r *RideRepo) Create(ctx context.Context, ride *models.Ride) error {
	q := TxorDB(ctx, r.db)

	query := `
		INSERT INTO rides (
			id, rider_id, status,
			pickup_address, pickup_latitude, pickup_longitude,
			dropoff_address, dropoff_latitude, dropoff_longitude,
			distance_km, estimated_fare, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);`

	_, err := q.Exec(ctx, query,
		ride.ID, ride.RiderID, ride.Status,
		ride.PickupAddress, ride.Pickup.Latitude, ride.Pickup.Longitude,
		ride.DropoffAddress, ride.Dropoff.Latitude, ride.Dropoff.Longitude,
		ride.DistanceKm, ride.EstimatedFare, ride.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("ride repo: Create: %w", err)
	}
	return nil
}

func (r *RideRepo) GetByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT` + rideColumns + `FROM rides WHERE id = $1;`

	ride, err := scanRide(q.QueryRow(ctx, query, rideID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("ride repo: GetByID: %w", err)
	}
	return ride, nil
}

func (r *RideRepo) Update(ctx context.Context, ride *models.Ride) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET status = $2,
			driver_id = $3,
			final_fare = $4,
			cancellation_reason = $5,
			accepted_at = $6,
			started_at = $7,
			completed_at = $8,
			cancelled_at = $9
		WHERE id = $1;`

	tag, err := q.Exec(ctx, query,
		ride.ID, ride.Status, ride.DriverID,
		ride.FinalFare, ride.CancellationReason,
		ride.AcceptedAt, ride.StartedAt, ride.CompletedAt, ride.CancelledAt,
	)
	if err != nil {
		return fmt.Errorf("ride repo: Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrRideNotFound
	}
	return nil
}

// MarkAccepted is the matching engine's write path: pending -> accepted
// with the assigned driver, guarded in SQL so a concurrent transition
// cannot be overwritten.
func (r *RideRepo) MarkAccepted(ctx context.Context, rideID, driverID uuid.UUID) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET status = $3, driver_id = $2, accepted_at = now()
		WHERE id = $1 AND status = $4;`

	tag, err := q.Exec(ctx, query, rideID, driverID, types.StatusAccepted, types.StatusPending)
	if err != nil {
		return fmt.Errorf("ride repo: MarkAccepted: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrInvalidTransition
	}
	return nil
}

// MarkCancelled cancels a still-pending ride, used when matching gives
// up on it.
func (r *RideRepo) MarkCancelled(ctx context.Context, rideID uuid.UUID, reason string) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE rides
		SET status = $3, cancellation_reason = $2, cancelled_at = now()
		WHERE id = $1 AND status = $4;`

	tag, err := q.Exec(ctx, query, rideID, reason, types.StatusCancelled, types.StatusPending)
	if err != nil {
		return fmt.Errorf("ride repo: MarkCancelled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrInvalidTransition
	}
	return nil
}

func (r *RideRepo) ListForUser(ctx context.Context, userID uuid.UUID, status types.RideStatus) ([]models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT` + rideColumns + `
		FROM rides
		WHERE (rider_id = $1 OR driver_id = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC;`

	rows, err := q.Query(ctx, query, userID, string(status))
	if err != nil {
		return nil, fmt.Errorf("ride repo: ListForUser: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

func (r *RideRepo) ListPending(ctx context.Context) ([]models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT` + rideColumns + `
		FROM rides
		WHERE status = $1
		ORDER BY created_at DESC;`

	rows, err := q.Query(ctx, query, types.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("ride repo: ListPending: %w", err)
	}
	defer rows.Close()

	return collectRides(rows)
}

// FindActiveForUser returns the user's single non-terminal ride, if
// one exists. Newest wins should the data ever hold more than one.
func (r *RideRepo) FindActiveForUser(ctx context.Context, userID uuid.UUID) (*models.Ride, error) {
	q := TxorDB(ctx, r.db)

	query := `SELECT` + rideColumns + `
		FROM rides
		WHERE (rider_id = $1 OR driver_id = $1)
		  AND status IN ($2, $3, $4)
		ORDER BY created_at DESC
		LIMIT 1;`

	ride, err := scanRide(q.QueryRow(ctx, query, userID,
		types.StatusPending, types.StatusAccepted, types.StatusInProgress))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrRideNotFound
		}
		return nil, fmt.Errorf("ride repo: FindActiveForUser: %w", err)
	}
	return ride, nil
}

func scanRide(row pgx.Row) (*models.Ride, error) {
	var ride models.Ride
	err := row.Scan(
		&ride.ID, &ride.RiderID, &ride.DriverID, &ride.Status,
		&ride.PickupAddress, &ride.Pickup.Latitude, &ride.Pickup.Longitude,
		&ride.DropoffAddress, &ride.Dropoff.Latitude, &ride.Dropoff.Longitude,
		&ride.DistanceKm, &ride.EstimatedFare, &ride.FinalFare, &ride.CancellationReason,
		&ride.CreatedAt, &ride.AcceptedAt, &ride.StartedAt, &ride.CompletedAt, &ride.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &ride, nil
}

func collectRides(rows pgx.Rows) ([]models.Ride, error) {
	var out []models.Ride
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, fmt.Errorf("ride repo: scan: %w", err)
		}
		out = append(out, *ride)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ride repo: rows: %w", err)
	}
	return out, nil
}
