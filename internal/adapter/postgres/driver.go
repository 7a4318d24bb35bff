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
	"github.com/eboda/ride-hail-realtime/internal/geo"
)

type DriverRepo struct {
	db *pgxpool.Pool
}

func NewDriverRepo(db *pgxpool.Pool) *DriverRepo {
	return &DriverRepo{db: db}
}

// haversineSQL computes the great-circle distance in kilometers
// between a driver's stored position and a query point ($1 latitude,
// $2 longitude).
const haversineSQL = `
	2 * 6371 * asin(sqrt(
		pow(sin(radians(latitude - $1) / 2), 2) +
		cos(radians($1)) * cos(radians(latitude)) *
		pow(sin(radians(longitude - $2) / 2), 2)
	))`

func (r *DriverRepo) GetByID(ctx context.Context, driverID uuid.UUID) (*models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, full_name, phone, vehicle_plate, vehicle_model, rating,
		       is_active, is_available, latitude, longitude, located_at
		FROM drivers
		WHERE id = $1;`

	driver, err := scanDriver(q.QueryRow(ctx, query, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.ErrUserNotFound
		}
		return nil, fmt.Errorf("driver repo: GetByID: %w", err)
	}
	return driver, nil
}

// FindNearestAvailable returns the closest active, available driver
// within radiusKm of the point, or nil when none is in range.
func (r *DriverRepo) FindNearestAvailable(ctx context.Context, near geo.Point, radiusKm float64) (*models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, full_name, phone, vehicle_plate, vehicle_model, rating,
		       is_active, is_available, latitude, longitude, located_at
		FROM drivers
		WHERE is_active AND is_available
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND ` + haversineSQL + ` <= $3
		ORDER BY ` + haversineSQL + `
		LIMIT 1;`

	driver, err := scanDriver(q.QueryRow(ctx, query, near.Latitude, near.Longitude, radiusKm))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("driver repo: FindNearestAvailable: %w", err)
	}
	return driver, nil
}

// ListAvailableNear returns up to limit available drivers within
// radiusKm, closest first.
func (r *DriverRepo) ListAvailableNear(ctx context.Context, near geo.Point, radiusKm float64, limit int) ([]models.Driver, error) {
	q := TxorDB(ctx, r.db)

	query := `
		SELECT id, full_name, phone, vehicle_plate, vehicle_model, rating,
		       is_active, is_available, latitude, longitude, located_at
		FROM drivers
		WHERE is_active AND is_available
		  AND latitude IS NOT NULL AND longitude IS NOT NULL
		  AND ` + haversineSQL + ` <= $3
		ORDER BY ` + haversineSQL + `
		LIMIT $4;`

	rows, err := q.Query(ctx, query, near.Latitude, near.Longitude, radiusKm, limit)
	if err != nil {
		return nil, fmt.Errorf("driver repo: ListAvailableNear: %w", err)
	}
	defer rows.Close()

	var out []models.Driver
	for rows.Next() {
		driver, err := scanDriver(rows)
		if err != nil {
			return nil, fmt.Errorf("driver repo: scan: %w", err)
		}
		out = append(out, *driver)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("driver repo: rows: %w", err)
	}
	return out, nil
}

func (r *DriverRepo) SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error {
	q := TxorDB(ctx, r.db)

	tag, err := q.Exec(ctx, `UPDATE drivers SET is_available = $2 WHERE id = $1;`, driverID, available)
	if err != nil {
		return fmt.Errorf("driver repo: SetAvailability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrUserNotFound
	}
	return nil
}

// UpdateLocation persists a driver's latest reported position.
func (r *DriverRepo) UpdateLocation(ctx context.Context, driverID uuid.UUID, p geo.Point) error {
	q := TxorDB(ctx, r.db)

	query := `
		UPDATE drivers
		SET latitude = $2, longitude = $3, located_at = now()
		WHERE id = $1;`

	tag, err := q.Exec(ctx, query, driverID, p.Latitude, p.Longitude)
	if err != nil {
		return fmt.Errorf("driver repo: UpdateLocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return types.ErrUserNotFound
	}
	return nil
}

func (r *DriverRepo) CountAvailable(ctx context.Context) (int, error) {
	q := TxorDB(ctx, r.db)

	var count int
	err := q.QueryRow(ctx, `SELECT COUNT(*) FROM drivers WHERE is_active AND is_available;`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("driver repo: CountAvailable: %w", err)
	}
	return count, nil
}

func scanDriver(row pgx.Row) (*models.Driver, error) {
	var (
		d        models.Driver
		lat, lon *float64
	)
	err := row.Scan(
		&d.ID, &d.FullName, &d.Phone, &d.VehiclePlate, &d.VehicleModel, &d.Rating,
		&d.IsActive, &d.IsAvailable, &lat, &lon, &d.LocatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lon != nil {
		d.Location = &geo.Point{Latitude: *lat, Longitude: *lon}
	}
	return &d, nil
}
