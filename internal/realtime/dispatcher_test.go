package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/eboda/ride-hail-realtime/internal/domain/models"
	"github.com/eboda/ride-hail-realtime/internal/domain/types"
)

func newTestDispatcher() (*Dispatcher, *Registry) {
	rooms := NewRoomRegistry()
	registry := NewRegistry(testRealtimeConfig(), rooms, testLogger())
	return NewDispatcher(testRealtimeConfig(), registry, rooms, testLogger()), registry
}

func lastErrorEvent(t *testing.T, c *fakeConn) models.ErrorEvent {
	t.Helper()
	sent := c.sentMessages()
	if len(sent) == 0 {
		t.Fatal("expected a reply")
	}
	ev, ok := sent[len(sent)-1].(models.ErrorEvent)
	if !ok {
		t.Fatalf("expected an error event, got %T", sent[len(sent)-1])
	}
	return ev
}

func TestDispatchMalformedJSON(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()
	c := newFakeConn()
	s := registry.Connect(ctx, c, uuid.New(), types.RoleRider)

	d.dispatch(ctx, s, []byte("{not json"))

	if got := lastErrorEvent(t, c).Message; got != "invalid JSON format" {
		t.Fatalf("unexpected message: %q", got)
	}
	if !s.IsAlive() {
		t.Fatal("protocol errors must not kill the session")
	}
}

func TestDispatchMissingEventType(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()
	c := newFakeConn()
	s := registry.Connect(ctx, c, uuid.New(), types.RoleRider)

	d.dispatch(ctx, s, []byte(`{"ride_id":"abc"}`))

	if got := lastErrorEvent(t, c).Message; got != "missing event_type" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestDispatchUnknownEventType(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()
	c := newFakeConn()
	s := registry.Connect(ctx, c, uuid.New(), types.RoleRider)

	d.dispatch(ctx, s, []byte(`{"event_type":"teleport"}`))

	if got := lastErrorEvent(t, c).Message; got != "unknown event type: teleport" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestDispatchRoutesToHandler(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()
	c := newFakeConn()
	s := registry.Connect(ctx, c, uuid.New(), types.RoleRider)

	var gotPayload json.RawMessage
	d.Register("echo", func(_ context.Context, _ *Session, payload json.RawMessage) any {
		gotPayload = payload
		return models.PongEvent{EventType: types.EventPong}
	})

	raw := []byte(`{"event_type":"echo","x":1}`)
	d.dispatch(ctx, s, raw)

	if string(gotPayload) != string(raw) {
		t.Fatalf("handler got %s", gotPayload)
	}
	sent := c.sentMessages()
	if len(sent) != 1 {
		t.Fatalf("expected 1 reply, got %d", len(sent))
	}
	if _, ok := sent[0].(models.PongEvent); !ok {
		t.Fatalf("expected pong reply, got %T", sent[0])
	}
}

func TestDispatchNilReplySendsNothing(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()
	c := newFakeConn()
	s := registry.Connect(ctx, c, uuid.New(), types.RoleRider)

	d.Register("silent", func(context.Context, *Session, json.RawMessage) any { return nil })
	d.dispatch(ctx, s, []byte(`{"event_type":"silent"}`))

	if got := len(c.sentMessages()); got != 0 {
		t.Fatalf("expected no replies, got %d", got)
	}
}

func TestServeSessionRefreshesActivity(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()
	c := newFakeConn()
	s := registry.Connect(ctx, c, uuid.New(), types.RoleRider)

	s.mu.Lock()
	s.lastActivity = time.Now().Add(-time.Minute)
	s.mu.Unlock()

	c.in <- []byte(`{"event_type":"teleport"}`)
	close(c.in)

	d.ServeSession(ctx, s)

	if s.NeedsPing(10 * time.Second) {
		t.Fatal("a successful read must refresh activity")
	}
}

func TestSendToUser(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()
	c := newFakeConn()
	s := registry.Connect(ctx, c, uuid.New(), types.RoleRider)

	if !d.SendToUser(ctx, s.UserID, "hello") {
		t.Fatal("send to connected user should succeed")
	}
	if d.SendToUser(ctx, uuid.New(), "hello") {
		t.Fatal("send to unknown user should report false")
	}

	c.failWrites = true
	if d.SendToUser(ctx, s.UserID, "hello") {
		t.Fatal("failed send should report false")
	}
	if s.IsAlive() {
		t.Fatal("failed send should mark the session dead")
	}
}

func TestAddToRoomEnrollsOfflineUsers(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()

	online := registry.Connect(ctx, newFakeConn(), uuid.New(), types.RoleRider)
	offline := uuid.New()
	rideID := uuid.NewString()

	d.AddToRoom(rideID, online.UserID, offline)

	if got := len(d.rooms.Participants(rideID)); got != 2 {
		t.Fatalf("expected both users enrolled, got %d", got)
	}
	if !online.inRoom(rideID) {
		t.Fatal("connected user's session should track the room")
	}
}

func TestBroadcastToRoomExcludesSender(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()

	riderConn := newFakeConn()
	rider := registry.Connect(ctx, riderConn, uuid.New(), types.RoleRider)
	driverConn := newFakeConn()
	driver := registry.Connect(ctx, driverConn, uuid.New(), types.RoleDriver)

	rideID := uuid.NewString()
	d.AddToRoom(rideID, rider.UserID, driver.UserID)

	delivered := d.BroadcastToRoom(ctx, rideID, "update", driver.UserID)

	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if got := len(riderConn.sentMessages()); got != 1 {
		t.Fatalf("rider should receive the broadcast, got %d messages", got)
	}
	if got := len(driverConn.sentMessages()); got != 0 {
		t.Fatalf("sender should be excluded, got %d messages", got)
	}
}

func TestBroadcastToRoomEmpty(t *testing.T) {
	d, _ := newTestDispatcher()
	if got := d.BroadcastToRoom(context.Background(), uuid.NewString(), "update", uuid.Nil); got != 0 {
		t.Fatalf("expected 0 deliveries, got %d", got)
	}
}

func TestCloseRoomDetachesSessions(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()

	s := registry.Connect(ctx, newFakeConn(), uuid.New(), types.RoleRider)
	rideID := uuid.NewString()
	d.AddToRoom(rideID, s.UserID, uuid.New())

	d.CloseRoom(ctx, rideID)

	if d.rooms.IsActive(rideID) {
		t.Fatal("room should be gone")
	}
	if s.inRoom(rideID) {
		t.Fatal("session should no longer track the room")
	}
}

func TestBroadcastToAll(t *testing.T) {
	d, registry := newTestDispatcher()
	ctx := context.Background()

	okConn := newFakeConn()
	ok := registry.Connect(ctx, okConn, uuid.New(), types.RoleRider)
	badConn := newFakeConn()
	bad := registry.Connect(ctx, badConn, uuid.New(), types.RoleDriver)
	badConn.failWrites = true

	delivered := d.BroadcastToAll(ctx, "announcement")

	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if !registry.IsConnected(ok.UserID) {
		t.Fatal("healthy session should remain connected")
	}
	if registry.IsConnected(bad.UserID) {
		t.Fatal("failed recipient should be disconnected")
	}
}
