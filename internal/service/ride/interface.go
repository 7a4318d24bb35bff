package ride

import (
	"context"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
)

type RideRepo interface {
	Create(ctx context.Context, ride *models.Ride) error
	GetByID(ctx context.Context, rideID uuid.UUID) (*models.Ride, error)
	Update(ctx context.Context, ride *models.Ride) error
	ListForUser(ctx context.Context, userID uuid.UUID, status types.RideStatus) ([]models.Ride, error)
	ListPending(ctx context.Context) ([]models.Ride, error)
	FindActiveForUser(ctx context.Context, userID uuid.UUID) (*models.Ride, error)
}

type DriverRepo interface {
	GetByID(ctx context.Context, driverID uuid.UUID) (*models.Driver, error)
	SetAvailability(ctx context.Context, driverID uuid.UUID, available bool) error
	ListAvailableNear(ctx context.Context, near geo.Point, radiusKm float64, limit int) ([]models.Driver, error)
}

// Matcher is the driver-assignment engine. Create uses it for the
// initial attempt, Cancel to drop a queued ride.
type Matcher interface {
	AttemptAssign(ctx context.Context, ride *models.Ride) (*models.Driver, error)
	Untrack(rideID uuid.UUID)
}

// Notifier pushes lifecycle events to connected participants.
type Notifier interface {
	SendToUser(ctx context.Context, userID uuid.UUID, msg any) bool
	BroadcastToRoom(ctx context.Context, rideID string, msg any, exclude uuid.UUID) int
	AddToRoom(rideID string, userIDs ...uuid.UUID)
	CloseRoom(ctx context.Context, rideID string)
}

// Publisher emits lifecycle events to the message broker for other
// services to consume.
type Publisher interface {
	PublishRideEvent(ctx context.Context, routingKey string, ride *models.Ride) error
}
