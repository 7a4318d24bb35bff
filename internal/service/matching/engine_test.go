package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/config"
	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
)

type fakeRideRepo struct {
	rides     map[uuid.UUID]*models.Ride
	accepted  map[uuid.UUID]uuid.UUID
	cancelled map[uuid.UUID]string
}

func newFakeRideRepo() *fakeRideRepo {
	return &fakeRideRepo{
		rides:     make(map[uuid.UUID]*models.Ride),
		accepted:  make(map[uuid.UUID]uuid.UUID),
		cancelled: make(map[uuid.UUID]string),
	}
}

func (f *fakeRideRepo) GetByID(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride, ok := f.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	return ride, nil
}

func (f *fakeRideRepo) MarkAccepted(_ context.Context, rideID, driverID uuid.UUID) error {
	f.accepted[rideID] = driverID
	f.rides[rideID].Status = types.StatusAccepted
	return nil
}

func (f *fakeRideRepo) MarkCancelled(_ context.Context, rideID uuid.UUID, reason string) error {
	f.cancelled[rideID] = reason
	f.rides[rideID].Status = types.StatusCancelled
	return nil
}

type fakeDriverRepo struct {
	nearest     *models.Driver
	findErr     error
	available   int
	unavailable []uuid.UUID
}

func (f *fakeDriverRepo) FindNearestAvailable(context.Context, geo.Point, float64) (*models.Driver, error) {
	if f.findErr != nil {
		return nil, f.findErr
	}
	return f.nearest, nil
}

func (f *fakeDriverRepo) SetAvailability(_ context.Context, driverID uuid.UUID, available bool) error {
	if !available {
		f.unavailable = append(f.unavailable, driverID)
	}
	return nil
}

func (f *fakeDriverRepo) CountAvailable(context.Context) (int, error) {
	return f.available, nil
}

type fakeNotifier struct {
	sent  map[uuid.UUID][]any
	rooms map[string][]uuid.UUID
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{
		sent:  make(map[uuid.UUID][]any),
		rooms: make(map[string][]uuid.UUID),
	}
}

func (f *fakeNotifier) SendToUser(_ context.Context, userID uuid.UUID, msg any) bool {
	f.sent[userID] = append(f.sent[userID], msg)
	return true
}

func (f *fakeNotifier) AddToRoom(rideID string, userIDs ...uuid.UUID) {
	f.rooms[rideID] = append(f.rooms[rideID], userIDs...)
}

type passthroughTx struct{}

func (passthroughTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func testMatchingConfig() config.MatchingConfig {
	return config.MatchingConfig{
		SearchRadiusKm: 5,
		PendingTTL:     10 * time.Minute,
		MaxAttempts:    5,
	}
}

type engineFixture struct {
	engine   *Engine
	rides    *fakeRideRepo
	drivers  *fakeDriverRepo
	notifier *fakeNotifier
}

func newEngineFixture() *engineFixture {
	rides := newFakeRideRepo()
	drivers := &fakeDriverRepo{}
	notifier := newFakeNotifier()
	engine := NewEngine(testMatchingConfig(), rides, drivers, passthroughTx{}, notifier, logger.New("test", logger.LevelError))
	return &engineFixture{engine: engine, rides: rides, drivers: drivers, notifier: notifier}
}

func (f *engineFixture) addPendingRide(age time.Duration) *models.Ride {
	ride := &models.Ride{
		ID:        uuid.New(),
		RiderID:   uuid.New(),
		Status:    types.StatusPending,
		Pickup:    geo.Point{Latitude: 0.3476, Longitude: 32.5825},
		CreatedAt: time.Now().Add(-age),
	}
	f.rides.rides[ride.ID] = ride
	return ride
}

func testDriver() *models.Driver {
	return &models.Driver{
		ID:          uuid.New(),
		FullName:    "Okello James",
		IsActive:    true,
		IsAvailable: true,
	}
}

func TestAttemptAssignSuccess(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(0)
	driver := testDriver()
	fx.drivers.nearest = driver

	got, err := fx.engine.AttemptAssign(context.Background(), ride)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != driver.ID {
		t.Fatalf("wrong driver assigned: %s", got.ID)
	}
	if fx.rides.accepted[ride.ID] != driver.ID {
		t.Fatal("ride should be marked accepted with the driver")
	}
	if len(fx.drivers.unavailable) != 1 || fx.drivers.unavailable[0] != driver.ID {
		t.Fatal("driver should be reserved")
	}
	if members := fx.notifier.rooms[ride.ID.String()]; len(members) != 2 {
		t.Fatalf("both parties should be enrolled, got %v", members)
	}
	if len(fx.notifier.sent[driver.ID]) != 1 || len(fx.notifier.sent[ride.RiderID]) != 1 {
		t.Fatal("both parties should be notified")
	}
	if fx.engine.PendingCount() != 0 {
		t.Fatal("assigned ride must not stay pending")
	}
}

func TestAttemptAssignNoDriver(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(0)

	_, err := fx.engine.AttemptAssign(context.Background(), ride)
	if !errors.Is(err, types.ErrDriverNotFound) {
		t.Fatalf("expected ErrDriverNotFound, got %v", err)
	}
	if fx.engine.PendingCount() != 1 {
		t.Fatal("unmatched ride should be tracked for retry")
	}
}

func TestRetryAssignNonPendingRide(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(0)
	ride.Status = types.StatusAccepted

	_, err := fx.engine.RetryAssign(context.Background(), ride.ID)
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestRetryAssignSuccess(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(time.Minute)
	driver := testDriver()
	fx.drivers.nearest = driver

	result, err := fx.engine.RetryAssign(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Assigned || result.Driver.ID != driver.ID {
		t.Fatalf("expected assignment, got %+v", result)
	}
}

func TestRetryAssignTTLExpiry(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(11 * time.Minute)

	result, err := fx.engine.RetryAssign(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Expired || result.Reason != types.NoDriverReasonTimeout {
		t.Fatalf("expected timeout expiry, got %+v", result)
	}
	if fx.rides.cancelled[ride.ID] != "No driver found within time limit" {
		t.Fatalf("unexpected cancellation reason: %q", fx.rides.cancelled[ride.ID])
	}

	events := fx.notifier.sent[ride.RiderID]
	if len(events) != 1 {
		t.Fatalf("rider should be told once, got %d events", len(events))
	}
	ev, ok := events[0].(models.NoDriverFoundEvent)
	if !ok || ev.Reason != types.NoDriverReasonTimeout {
		t.Fatalf("expected no_driver_found timeout, got %+v", events[0])
	}
}

func TestRetryAssignTTLCountsFromQueueEntry(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(11 * time.Minute)

	// Queued just now: the wait clock starts at queue insertion, not at
	// ride creation.
	_, _ = fx.engine.AttemptAssign(context.Background(), ride)

	result, err := fx.engine.RetryAssign(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Expired {
		t.Fatalf("freshly queued ride must not expire, got %+v", result)
	}

	fx.engine.mu.Lock()
	fx.engine.pending[ride.ID].CreatedAt = time.Now().Add(-11 * time.Minute)
	fx.engine.mu.Unlock()

	result, err = fx.engine.RetryAssign(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Expired || result.Reason != types.NoDriverReasonTimeout {
		t.Fatalf("expected timeout expiry, got %+v", result)
	}
}

func TestRetryAssignMaxAttempts(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(time.Minute)
	fx.drivers.available = 0

	var result *RetryResult
	var err error
	for i := 0; i < 5; i++ {
		result, err = fx.engine.RetryAssign(context.Background(), ride.ID)
		if err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}

	if !result.Expired || result.Reason != types.NoDriverReasonMaxAttempts {
		t.Fatalf("expected max_attempts expiry, got %+v", result)
	}
	if result.Attempts != 5 {
		t.Fatalf("expected 5 attempts, got %d", result.Attempts)
	}
	if fx.rides.cancelled[ride.ID] != "No driver found after multiple attempts" {
		t.Fatalf("unexpected cancellation reason: %q", fx.rides.cancelled[ride.ID])
	}
	if fx.engine.PendingCount() != 0 {
		t.Fatal("expired ride must not stay pending")
	}
}

func TestRetryAssignReportsAvailability(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(time.Minute)
	fx.drivers.available = 3

	result, err := fx.engine.RetryAssign(context.Background(), ride.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Assigned || result.Expired {
		t.Fatalf("expected a plain miss, got %+v", result)
	}
	if result.Attempts != 1 || result.AvailableDrivers != 3 {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestUntrack(t *testing.T) {
	fx := newEngineFixture()
	ride := fx.addPendingRide(0)

	_, _ = fx.engine.AttemptAssign(context.Background(), ride)
	if fx.engine.PendingCount() != 1 {
		t.Fatal("ride should be tracked")
	}

	fx.engine.Untrack(ride.ID)
	if fx.engine.PendingCount() != 0 {
		t.Fatal("ride should be untracked")
	}
}
