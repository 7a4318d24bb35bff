package ride

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
	"github.com/eboda/ride-hail-realtime/internal/geo"
	"github.com/eboda/ride-hail-realtime/pkg/logger"
)

type memRideRepo struct {
	rides map[uuid.UUID]*models.Ride
}

func newMemRideRepo() *memRideRepo {
	return &memRideRepo{rides: make(map[uuid.UUID]*models.Ride)}
}

func (m *memRideRepo) Create(_ context.Context, ride *models.Ride) error {
	cp := *ride
	m.rides[ride.ID] = &cp
	return nil
}

func (m *memRideRepo) GetByID(_ context.Context, rideID uuid.UUID) (*models.Ride, error) {
	ride, ok := m.rides[rideID]
	if !ok {
		return nil, types.ErrRideNotFound
	}
	cp := *ride
	return &cp, nil
}

func (m *memRideRepo) Update(_ context.Context, ride *models.Ride) error {
	if _, ok := m.rides[ride.ID]; !ok {
		return types.ErrRideNotFound
	}
	cp := *ride
	m.rides[ride.ID] = &cp
	return nil
}

func (m *memRideRepo) ListForUser(_ context.Context, userID uuid.UUID, status types.RideStatus) ([]models.Ride, error) {
	var out []models.Ride
	for _, ride := range m.rides {
		if !ride.IsParticipant(userID) {
			continue
		}
		if status != "" && ride.Status != status {
			continue
		}
		out = append(out, *ride)
	}
	return out, nil
}

func (m *memRideRepo) ListPending(context.Context) ([]models.Ride, error) {
	var out []models.Ride
	for _, ride := range m.rides {
		if ride.Status == types.StatusPending {
			out = append(out, *ride)
		}
	}
	return out, nil
}

func (m *memRideRepo) FindActiveForUser(_ context.Context, userID uuid.UUID) (*models.Ride, error) {
	for _, ride := range m.rides {
		if ride.IsParticipant(userID) && !ride.Status.IsTerminal() {
			cp := *ride
			return &cp, nil
		}
	}
	return nil, types.ErrRideNotFound
}

type memDriverRepo struct {
	drivers map[uuid.UUID]*models.Driver
}

func newMemDriverRepo() *memDriverRepo {
	return &memDriverRepo{drivers: make(map[uuid.UUID]*models.Driver)}
}

func (m *memDriverRepo) GetByID(_ context.Context, driverID uuid.UUID) (*models.Driver, error) {
	d, ok := m.drivers[driverID]
	if !ok {
		return nil, types.ErrUserNotFound
	}
	return d, nil
}

func (m *memDriverRepo) SetAvailability(_ context.Context, driverID uuid.UUID, available bool) error {
	d, ok := m.drivers[driverID]
	if !ok {
		return types.ErrUserNotFound
	}
	d.IsAvailable = available
	return nil
}

func (m *memDriverRepo) ListAvailableNear(_ context.Context, _ geo.Point, _ float64, limit int) ([]models.Driver, error) {
	var out []models.Driver
	for _, d := range m.drivers {
		if d.IsActive && d.IsAvailable && d.Location != nil {
			out = append(out, *d)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

type stubMatcher struct {
	driver    *models.Driver
	err       error
	untracked []uuid.UUID
}

func (m *stubMatcher) AttemptAssign(context.Context, *models.Ride) (*models.Driver, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.driver, nil
}

func (m *stubMatcher) Untrack(rideID uuid.UUID) {
	m.untracked = append(m.untracked, rideID)
}

type recordingNotifier struct {
	sent        map[uuid.UUID][]any
	broadcasts  map[string][]any
	rooms       map[string][]uuid.UUID
	closedRooms []string
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{
		sent:       make(map[uuid.UUID][]any),
		broadcasts: make(map[string][]any),
		rooms:      make(map[string][]uuid.UUID),
	}
}

func (n *recordingNotifier) SendToUser(_ context.Context, userID uuid.UUID, msg any) bool {
	n.sent[userID] = append(n.sent[userID], msg)
	return true
}

func (n *recordingNotifier) BroadcastToRoom(_ context.Context, rideID string, msg any, _ uuid.UUID) int {
	n.broadcasts[rideID] = append(n.broadcasts[rideID], msg)
	return len(n.rooms[rideID])
}

func (n *recordingNotifier) AddToRoom(rideID string, userIDs ...uuid.UUID) {
	n.rooms[rideID] = append(n.rooms[rideID], userIDs...)
}

func (n *recordingNotifier) CloseRoom(_ context.Context, rideID string) {
	n.closedRooms = append(n.closedRooms, rideID)
}

type recordingPublisher struct {
	published []string
}

func (p *recordingPublisher) PublishRideEvent(_ context.Context, routingKey string, _ *models.Ride) error {
	p.published = append(p.published, routingKey)
	return nil
}

type passthroughTx struct{}

func (passthroughTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type serviceFixture struct {
	service  *Service
	rides    *memRideRepo
	drivers  *memDriverRepo
	matcher  *stubMatcher
	notifier *recordingNotifier
	pub      *recordingPublisher
}

func newServiceFixture() *serviceFixture {
	rides := newMemRideRepo()
	drivers := newMemDriverRepo()
	matcher := &stubMatcher{err: types.ErrDriverNotFound}
	notifier := newRecordingNotifier()
	pub := &recordingPublisher{}
	svc := NewService(rides, drivers, matcher, notifier, pub, passthroughTx{}, logger.New("test", logger.LevelError))
	return &serviceFixture{service: svc, rides: rides, drivers: drivers, matcher: matcher, notifier: notifier, pub: pub}
}

func (f *serviceFixture) addDriver(available bool) *models.Driver {
	d := &models.Driver{
		ID:          uuid.New(),
		FullName:    "Okello James",
		IsActive:    true,
		IsAvailable: available,
		Location:    &geo.Point{Latitude: 0.35, Longitude: 32.58},
	}
	f.drivers.drivers[d.ID] = d
	return d
}

func (f *serviceFixture) addRide(t *testing.T, status types.RideStatus, driverID *uuid.UUID) *models.Ride {
	t.Helper()
	ride := &models.Ride{
		ID:            uuid.New(),
		RiderID:       uuid.New(),
		DriverID:      driverID,
		Status:        status,
		Pickup:        geo.Point{Latitude: 0.3476, Longitude: 32.5825},
		Dropoff:       geo.Point{Latitude: 0.0512, Longitude: 32.4637},
		DistanceKm:    34,
		EstimatedFare: 60000,
		CreatedAt:     time.Now().UTC(),
	}
	if status != types.StatusPending {
		now := time.Now().UTC().Add(-10 * time.Minute)
		ride.AcceptedAt = &now
	}
	if status == types.StatusInProgress {
		started := time.Now().UTC().Add(-8 * time.Minute)
		ride.StartedAt = &started
	}
	if err := f.rides.Create(context.Background(), ride); err != nil {
		t.Fatalf("seed ride: %v", err)
	}
	return ride
}

func newRideRequest() *models.Ride {
	return &models.Ride{
		RiderID:        uuid.New(),
		Pickup:         geo.Point{Latitude: 0.3476, Longitude: 32.5825},
		PickupAddress:  "Kampala Road, Kampala",
		Dropoff:        geo.Point{Latitude: 0.0512, Longitude: 32.4637},
		DropoffAddress: "Entebbe Airport",
	}
}

func TestCreateRide(t *testing.T) {
	fx := newServiceFixture()

	ride, driver, err := fx.service.Create(context.Background(), newRideRequest(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver != nil {
		t.Fatal("no driver expected without auto-assign")
	}
	if ride.Status != types.StatusPending {
		t.Fatalf("expected pending, got %s", ride.Status)
	}
	if ride.DistanceKm <= 0 || ride.EstimatedFare <= 0 {
		t.Fatalf("estimate not computed: %f km, %f UGX", ride.DistanceKm, ride.EstimatedFare)
	}
	if _, err := fx.rides.GetByID(context.Background(), ride.ID); err != nil {
		t.Fatalf("ride not persisted: %v", err)
	}
	if len(fx.pub.published) != 1 || fx.pub.published[0] != types.RouteRideCreated {
		t.Fatalf("unexpected publications: %v", fx.pub.published)
	}
}

func TestCreateRideInvalidCoordinates(t *testing.T) {
	fx := newServiceFixture()
	req := newRideRequest()
	req.Pickup.Latitude = 91

	if _, _, err := fx.service.Create(context.Background(), req, false); !errors.Is(err, types.ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}

func TestCreateRideAutoAssign(t *testing.T) {
	fx := newServiceFixture()
	assigned := fx.addDriver(true)
	fx.matcher.driver = assigned
	fx.matcher.err = nil

	ride, driver, err := fx.service.Create(context.Background(), newRideRequest(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if driver == nil || driver.ID != assigned.ID {
		t.Fatal("expected the matched driver back")
	}
	if ride.Status != types.StatusAccepted || ride.DriverID == nil {
		t.Fatalf("returned ride should reflect the assignment: %+v", ride)
	}
	if len(fx.pub.published) != 2 || fx.pub.published[1] != types.RouteRideAccepted {
		t.Fatalf("unexpected publications: %v", fx.pub.published)
	}
}

func TestCreateRideAutoAssignNoDriver(t *testing.T) {
	fx := newServiceFixture()

	ride, driver, err := fx.service.Create(context.Background(), newRideRequest(), true)
	if err != nil {
		t.Fatalf("a missed match must not fail creation: %v", err)
	}
	if driver != nil {
		t.Fatal("no driver should be returned")
	}
	if ride.Status != types.StatusPending {
		t.Fatalf("ride should stay pending, got %s", ride.Status)
	}
}

func TestGetRideParticipantOnly(t *testing.T) {
	fx := newServiceFixture()
	ride := fx.addRide(t, types.StatusPending, nil)

	if _, err := fx.service.Get(context.Background(), ride.ID, ride.RiderID); err != nil {
		t.Fatalf("rider should read own ride: %v", err)
	}
	if _, err := fx.service.Get(context.Background(), ride.ID, uuid.New()); !errors.Is(err, types.ErrNotRideParticipant) {
		t.Fatalf("expected ErrNotRideParticipant, got %v", err)
	}
}

func TestAcceptRide(t *testing.T) {
	fx := newServiceFixture()
	ride := fx.addRide(t, types.StatusPending, nil)
	driver := fx.addDriver(true)

	accepted, err := fx.service.Accept(context.Background(), ride.ID, driver.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accepted.Status != types.StatusAccepted || accepted.AcceptedAt == nil {
		t.Fatalf("unexpected state: %+v", accepted)
	}
	if driver.IsAvailable {
		t.Fatal("driver should be reserved")
	}
	if len(fx.matcher.untracked) != 1 {
		t.Fatal("ride should leave the retry queue")
	}
	if members := fx.notifier.rooms[ride.ID.String()]; len(members) != 2 {
		t.Fatalf("both parties should be enrolled: %v", members)
	}
	events := fx.notifier.sent[ride.RiderID]
	if len(events) != 1 {
		t.Fatalf("rider should be notified once, got %d", len(events))
	}
	if ev := events[0].(models.RideAcceptedEvent); ev.Driver.ID != driver.ID {
		t.Fatalf("notification should carry the driver: %+v", ev)
	}
}

func TestAcceptRideUnavailableDriver(t *testing.T) {
	fx := newServiceFixture()
	ride := fx.addRide(t, types.StatusPending, nil)
	driver := fx.addDriver(false)

	if _, err := fx.service.Accept(context.Background(), ride.ID, driver.ID); err == nil {
		t.Fatal("busy driver must not accept rides")
	}
}

func TestAcceptRideAlreadyAccepted(t *testing.T) {
	fx := newServiceFixture()
	other := fx.addDriver(false)
	ride := fx.addRide(t, types.StatusAccepted, &other.ID)
	driver := fx.addDriver(true)

	_, err := fx.service.Accept(context.Background(), ride.ID, driver.ID)
	if !errors.Is(err, types.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if !driver.IsAvailable {
		t.Fatal("failed accept must not reserve the driver")
	}
}

func TestStartRide(t *testing.T) {
	fx := newServiceFixture()
	driver := fx.addDriver(false)
	ride := fx.addRide(t, types.StatusAccepted, &driver.ID)

	started, err := fx.service.Start(context.Background(), ride.ID, driver.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if started.Status != types.StatusInProgress || started.StartedAt == nil {
		t.Fatalf("unexpected state: %+v", started)
	}
	if len(fx.notifier.sent[ride.RiderID]) != 1 {
		t.Fatal("rider should be told the ride started")
	}
}

func TestStartRideWrongDriver(t *testing.T) {
	fx := newServiceFixture()
	driver := fx.addDriver(false)
	ride := fx.addRide(t, types.StatusAccepted, &driver.ID)

	_, err := fx.service.Start(context.Background(), ride.ID, uuid.New())
	if !errors.Is(err, types.ErrNotRideParticipant) {
		t.Fatalf("expected ErrNotRideParticipant, got %v", err)
	}
}

func TestCompleteRide(t *testing.T) {
	fx := newServiceFixture()
	driver := fx.addDriver(false)
	ride := fx.addRide(t, types.StatusInProgress, &driver.ID)

	completed, err := fx.service.Complete(context.Background(), ride.ID, driver.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if completed.Status != types.StatusCompleted || completed.FinalFare == nil {
		t.Fatalf("unexpected state: %+v", completed)
	}
	if *completed.FinalFare != ride.EstimatedFare {
		t.Fatalf("final fare should settle at the estimate: %f", *completed.FinalFare)
	}
	if !driver.IsAvailable {
		t.Fatal("driver should be released")
	}
	events := fx.notifier.sent[ride.RiderID]
	if len(events) != 1 {
		t.Fatalf("rider should be notified, got %d events", len(events))
	}
	ev := events[0].(models.RideCompletedEvent)
	if ev.DurationMinutes < 7 || ev.DurationMinutes > 9 {
		t.Fatalf("unexpected duration: %d", ev.DurationMinutes)
	}
	if len(fx.notifier.closedRooms) != 1 {
		t.Fatal("room should be closed")
	}
}

func TestCancelRideByRider(t *testing.T) {
	fx := newServiceFixture()
	driver := fx.addDriver(false)
	ride := fx.addRide(t, types.StatusAccepted, &driver.ID)

	cancelled, err := fx.service.Cancel(context.Background(), ride.ID, ride.RiderID, "changed my mind")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != types.StatusCancelled || cancelled.CancellationReason == nil {
		t.Fatalf("unexpected state: %+v", cancelled)
	}
	if !driver.IsAvailable {
		t.Fatal("assigned driver should be released")
	}
	if len(fx.notifier.broadcasts[ride.ID.String()]) != 1 {
		t.Fatal("cancellation should be broadcast to the room")
	}
	if len(fx.notifier.closedRooms) != 1 {
		t.Fatal("room should be closed")
	}
	if len(fx.matcher.untracked) != 1 {
		t.Fatal("ride should leave the retry queue")
	}
}

func TestCancelRideOutsider(t *testing.T) {
	fx := newServiceFixture()
	ride := fx.addRide(t, types.StatusPending, nil)

	_, err := fx.service.Cancel(context.Background(), ride.ID, uuid.New(), "nope")
	if !errors.Is(err, types.ErrNotRideParticipant) {
		t.Fatalf("expected ErrNotRideParticipant, got %v", err)
	}
}

func TestCancelCompletedRide(t *testing.T) {
	fx := newServiceFixture()
	driver := fx.addDriver(true)
	ride := fx.addRide(t, types.StatusInProgress, &driver.ID)
	if _, err := fx.service.Complete(context.Background(), ride.ID, driver.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}

	_, err := fx.service.Cancel(context.Background(), ride.ID, ride.RiderID, "too late")
	if !errors.Is(err, types.ErrRideTerminal) {
		t.Fatalf("expected ErrRideTerminal, got %v", err)
	}
}

func TestNearbyDriversSorted(t *testing.T) {
	fx := newServiceFixture()
	near := geo.Point{Latitude: 0.3476, Longitude: 32.5825}

	far := fx.addDriver(true)
	far.Location = &geo.Point{Latitude: 0.39, Longitude: 32.5825}
	nearest := fx.addDriver(true)
	nearest.Location = &geo.Point{Latitude: 0.35, Longitude: 32.5825}

	out, err := fx.service.NearbyDrivers(context.Background(), near, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("expected 2 drivers, got %d", len(out))
	}
	if out[0].ID != nearest.ID || out[1].ID != far.ID {
		t.Fatal("drivers should be sorted closest first")
	}
	if out[0].DistanceKm >= out[1].DistanceKm {
		t.Fatalf("distances not ascending: %f, %f", out[0].DistanceKm, out[1].DistanceKm)
	}
}

func TestNearbyDriversInvalidPoint(t *testing.T) {
	fx := newServiceFixture()
	_, err := fx.service.NearbyDrivers(context.Background(), geo.Point{Latitude: 91}, 5, 10)
	if !errors.Is(err, types.ErrInvalidCoordinates) {
		t.Fatalf("expected ErrInvalidCoordinates, got %v", err)
	}
}
