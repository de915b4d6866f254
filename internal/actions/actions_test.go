package actions

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/jeabsfamily-wq/stimer/internal/identity"
	"github.com/jeabsfamily-wq/stimer/internal/room"
	"github.com/jeabsfamily-wq/stimer/internal/state"
	"github.com/jeabsfamily-wq/stimer/internal/storage"
)

type sentRequest struct {
	event   string
	payload map[string]any
}

// fakeEmitter answers each event with a canned acknowledgement. after runs
// once the acknowledgement has been applied, standing in for pushes the read
// loop handles before the caller wakes up.
type fakeEmitter struct {
	mu        sync.Mutex
	sent      []sentRequest
	responses map[string]string
	err       error
	after     func()
}

func newFakeEmitter() *fakeEmitter {
	return &fakeEmitter{responses: make(map[string]string)}
}

func (f *fakeEmitter) EmitApply(_ context.Context, event string, payload any, apply func(json.RawMessage)) (json.RawMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded)

	f.mu.Lock()
	f.sent = append(f.sent, sentRequest{event: event, payload: decoded})
	err = f.err
	resp, ok := f.responses[event]
	after := f.after
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if !ok {
		resp = `{"ok":true}`
	}
	if apply != nil {
		apply(json.RawMessage(resp))
	}
	if after != nil {
		after()
	}
	return json.RawMessage(resp), nil
}

func (f *fakeEmitter) last(t *testing.T) sentRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		t.Fatalf("no request sent")
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeEmitter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fixture struct {
	emitter *fakeEmitter
	store   *state.Store
	ids     *identity.Store
	d       *Dispatcher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ids := identity.New(&storage.Memory{})
	store := state.NewStore(state.Options{ClientID: "me", Bindings: ids})
	em := newFakeEmitter()
	return fixture{emitter: em, store: store, ids: ids, d: New(em, store, ids, "me")}
}

const roomJSON = `{"code":"ABC123","centralClientId":"central","state":"WAITING","stationsCount":1,"roundDurationSec":12,"stations":[{"id":1,"ownerClientId":"me","ready":false,"connected":true}]}`

func TestCreateRoom_SeedsStore(t *testing.T) {
	f := newFixture(t)
	f.emitter.responses[EventCreateRoom] = `{"ok":true,"room":` + roomJSON + `}`

	snap, err := f.d.CreateRoom(context.Background(), 1, 12)
	if err != nil {
		t.Fatalf("CreateRoom error = %v", err)
	}
	if snap.Code != "ABC123" || snap.State != room.StateWaiting {
		t.Fatalf("snapshot = %+v, want ABC123 WAITING", snap)
	}
	if f.store.RoomCode() != "ABC123" {
		t.Fatalf("store RoomCode() = %q, want ABC123", f.store.RoomCode())
	}

	req := f.emitter.last(t)
	if req.event != EventCreateRoom {
		t.Fatalf("event = %q, want %q", req.event, EventCreateRoom)
	}
	if req.payload["stationsCount"] != float64(1) || req.payload["roundDurationSec"] != float64(12) {
		t.Fatalf("payload = %v", req.payload)
	}
}

func TestRejectedActionSurfacesCode(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantCode string
		wantMsg  string
	}{
		{"string error", `{"ok":false,"error":"NOT_CENTRAL"}`, "NOT_CENTRAL", ""},
		{"object error", `{"ok":false,"error":{"code":"BAD_STATE","message":"room is running"}}`, "BAD_STATE", "room is running"},
		{"missing error", `{"ok":false}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.emitter.responses[EventCreateRoom] = tt.response

			_, err := f.d.CreateRoom(context.Background(), 2, 60)
			var rej *RejectedError
			if !errors.As(err, &rej) {
				t.Fatalf("error = %v, want RejectedError", err)
			}
			if rej.Code != tt.wantCode || rej.Message != tt.wantMsg {
				t.Fatalf("rejection = %+v, want code %q message %q", rej, tt.wantCode, tt.wantMsg)
			}
			if rej.Action != EventCreateRoom {
				t.Fatalf("Action = %q, want %q", rej.Action, EventCreateRoom)
			}
			if f.store.RoomCode() != "" {
				t.Fatalf("store seeded on rejection")
			}
			if f.emitter.count() != 1 {
				t.Fatalf("requests sent = %d, want exactly 1", f.emitter.count())
			}
		})
	}
}

func TestActionsWithoutRoomFailFast(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	calls := map[string]func() error{
		"UpdateConfig":  func() error { return f.d.UpdateConfig(ctx, 2, 60) },
		"DeleteRoom":    func() error { return f.d.DeleteRoom(ctx, false) },
		"PauseRound":    func() error { return f.d.PauseRound(ctx) },
		"ResumeRound":   func() error { return f.d.ResumeRound(ctx) },
		"ResetRoom":     func() error { return f.d.ResetRoom(ctx) },
		"SkipRound":     func() error { return f.d.SkipRound(ctx) },
		"TogglePause":   func() error { return f.d.TogglePause(ctx) },
		"RemoveStation": func() error { return f.d.RemoveStation(ctx, 1) },
		"SetReady":      func() error { return f.d.SetReady(ctx, true) },
		"Leave":         func() error { return f.d.Leave(ctx) },
		"Join":          func() error { _, err := f.d.Join(ctx, "  ", 0); return err },
	}
	for name, call := range calls {
		if err := call(); !errors.Is(err, ErrNoRoom) {
			t.Fatalf("%s error = %v, want ErrNoRoom", name, err)
		}
	}
	if f.emitter.count() != 0 {
		t.Fatalf("requests sent = %d, want 0", f.emitter.count())
	}
}

func TestCentralActionsCarryRoomCode(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(room.Snapshot{Code: "ABC123", State: room.StateRunning})
	ctx := context.Background()

	tests := []struct {
		event string
		call  func() error
		key   string
	}{
		{EventPauseRound, func() error { return f.d.PauseRound(ctx) }, "code"},
		{EventResumeRound, func() error { return f.d.ResumeRound(ctx) }, "code"},
		{EventResetRoom, func() error { return f.d.ResetRoom(ctx) }, "code"},
		{EventSkipRound, func() error { return f.d.SkipRound(ctx) }, "code"},
		{EventUpdateConfig, func() error { return f.d.UpdateConfig(ctx, 3, 90) }, "code"},
		{EventDeleteRoom, func() error { return f.d.DeleteRoom(ctx, true) }, "code"},
		{EventRemoveStation, func() error { return f.d.RemoveStation(ctx, 2) }, "roomCode"},
		{EventSetReady, func() error { return f.d.SetReady(ctx, true) }, "roomCode"},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			if err := tt.call(); err != nil {
				t.Fatalf("error = %v", err)
			}
			req := f.emitter.last(t)
			if req.event != tt.event {
				t.Fatalf("event = %q, want %q", req.event, tt.event)
			}
			if req.payload[tt.key] != "ABC123" {
				t.Fatalf("payload[%s] = %v, want ABC123", tt.key, req.payload[tt.key])
			}
		})
	}
}

func TestDeleteRoomForceFlag(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(room.Snapshot{Code: "ABC123", State: room.StateWaiting})

	if err := f.d.DeleteRoom(context.Background(), false); err != nil {
		t.Fatalf("DeleteRoom error = %v", err)
	}
	if _, ok := f.emitter.last(t).payload["force"]; ok {
		t.Fatalf("force sent without being requested")
	}

	if err := f.d.DeleteRoom(context.Background(), true); err != nil {
		t.Fatalf("DeleteRoom error = %v", err)
	}
	if f.emitter.last(t).payload["force"] != true {
		t.Fatalf("force = %v, want true", f.emitter.last(t).payload["force"])
	}
}

func TestTogglePause(t *testing.T) {
	left := 20
	none := 0
	tests := []struct {
		name      string
		snap      room.Snapshot
		wantEvent string
		wantErr   error
	}{
		{"running pauses", room.Snapshot{Code: "ABC123", State: room.StateRunning}, EventPauseRound, nil},
		{"ended with time resumes", room.Snapshot{Code: "ABC123", State: room.StateEnded, TimeLeft: &left}, EventResumeRound, nil},
		{"ended without time", room.Snapshot{Code: "ABC123", State: room.StateEnded, TimeLeft: &none}, "", ErrNothingToToggle},
		{"waiting", room.Snapshot{Code: "ABC123", State: room.StateWaiting}, "", ErrNothingToToggle},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.store.Seed(tt.snap)

			err := f.d.TogglePause(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("TogglePause error = %v, want %v", err, tt.wantErr)
			}
			if tt.wantEvent == "" {
				if f.emitter.count() != 0 {
					t.Fatalf("requests sent = %d, want 0", f.emitter.count())
				}
				return
			}
			if got := f.emitter.last(t).event; got != tt.wantEvent {
				t.Fatalf("event = %q, want %q", got, tt.wantEvent)
			}
		})
	}
}

func TestJoin_StoresBindingFromSnapshot(t *testing.T) {
	f := newFixture(t)
	f.emitter.responses[EventJoin] = `{"ok":true,"room":` + roomJSON + `}`

	snap, err := f.d.Join(context.Background(), " abc123 ", 0)
	if err != nil {
		t.Fatalf("Join error = %v", err)
	}
	if st, ok := snap.StationOwnedBy("me"); !ok || st.ID != 1 || st.Ready {
		t.Fatalf("owned station = %+v (%v), want id 1 not ready", st, ok)
	}

	req := f.emitter.last(t)
	if req.payload["roomCode"] != "ABC123" || req.payload["clientId"] != "me" {
		t.Fatalf("payload = %v, want normalized code and clientId", req.payload)
	}
	if _, ok := req.payload["stationId"]; ok {
		t.Fatalf("stationId sent although none was requested")
	}

	if id, ok := f.ids.Binding("ABC123"); !ok || id != 1 {
		t.Fatalf("Binding(ABC123) = %d, %v; want 1, true", id, ok)
	}
	if code, id, ok := f.ids.LastRoom(); !ok || code != "ABC123" || id != 1 {
		t.Fatalf("LastRoom() = %q, %d, %v; want ABC123, 1, true", code, id, ok)
	}
	if f.store.RoomCode() != "ABC123" {
		t.Fatalf("store not seeded from join acknowledgement")
	}
}

func TestJoin_RequestedStationWithoutSnapshot(t *testing.T) {
	f := newFixture(t)

	if _, err := f.d.Join(context.Background(), "XYZ987", 3); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	if f.emitter.last(t).payload["stationId"] != float64(3) {
		t.Fatalf("stationId = %v, want 3", f.emitter.last(t).payload["stationId"])
	}
	if id, ok := f.ids.Binding("XYZ987"); !ok || id != 3 {
		t.Fatalf("Binding(XYZ987) = %d, %v; want 3, true", id, ok)
	}
}

func TestJoin_RemembersRoomWithoutStation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.d.Join(context.Background(), "xyz987", 0); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	if code, id, ok := f.ids.LastRoom(); !ok || code != "XYZ987" || id != 0 {
		t.Fatalf("LastRoom() = %q, %d, %v; want XYZ987, 0, true", code, id, ok)
	}
	if _, ok := f.ids.Binding("XYZ987"); ok {
		t.Fatalf("binding stored although no station is known")
	}
}

func TestJoin_LaterPushWinsOverAck(t *testing.T) {
	f := newFixture(t)
	f.emitter.responses[EventJoin] = `{"ok":true,"room":{"code":"ABC123","state":"WAITING","stationsCount":2,"roundDurationSec":60,"stations":[{"id":1,"ownerClientId":"me"},{"id":2,"ownerClientId":"other"}]}}`
	f.emitter.after = func() {
		newer := room.Snapshot{
			Code:             "ABC123",
			State:            room.StateWaiting,
			StationsCount:    2,
			RoundDurationSec: 60,
			Stations: []room.Station{
				{ID: 1, OwnerClientID: "me"},
				{ID: 2, OwnerClientID: "other", Ready: true},
			},
		}
		if err := f.store.Apply(room.Updated{Room: newer}); err != nil {
			t.Errorf("Apply error = %v", err)
		}
	}

	if _, err := f.d.Join(context.Background(), "ABC123", 0); err != nil {
		t.Fatalf("Join error = %v", err)
	}
	st, ok := f.store.Room().Station(2)
	if !ok || !st.Ready {
		t.Fatalf("station 2 = %+v (%v), want ready from the later push", st, ok)
	}
}

func TestCreateRoom_RejectedDoesNotSeed(t *testing.T) {
	f := newFixture(t)
	f.emitter.responses[EventCreateRoom] = `{"ok":false,"error":"BAD_INPUT","room":` + roomJSON + `}`

	if _, err := f.d.CreateRoom(context.Background(), 1, 12); err == nil {
		t.Fatalf("CreateRoom error = nil, want rejection")
	}
	if code := f.store.RoomCode(); code != "" {
		t.Fatalf("store RoomCode() = %q after rejection, want empty", code)
	}
}

func TestJoin_RejectedKeepsBindings(t *testing.T) {
	f := newFixture(t)
	if err := f.ids.SetBinding("ABC123", 2); err != nil {
		t.Fatalf("SetBinding: %v", err)
	}
	f.emitter.responses[EventJoin] = `{"ok":false,"error":"STATION_TAKEN"}`

	if _, err := f.d.Join(context.Background(), "XYZ987", 1); err == nil {
		t.Fatalf("Join error = nil, want rejection")
	}
	if _, ok := f.ids.Binding("XYZ987"); ok {
		t.Fatalf("binding stored for rejected join")
	}
	if id, _ := f.ids.Binding("ABC123"); id != 2 {
		t.Fatalf("unrelated binding changed to %d", id)
	}
}

func TestLeave_ClearsBinding(t *testing.T) {
	f := newFixture(t)
	f.emitter.responses[EventJoin] = `{"ok":true,"room":` + roomJSON + `}`
	if _, err := f.d.Join(context.Background(), "ABC123", 0); err != nil {
		t.Fatalf("Join error = %v", err)
	}

	if err := f.d.Leave(context.Background()); err != nil {
		t.Fatalf("Leave error = %v", err)
	}
	if req := f.emitter.last(t); req.event != EventLeave || req.payload["roomCode"] != "ABC123" {
		t.Fatalf("request = %+v, want station:leave for ABC123", req)
	}
	if _, ok := f.ids.Binding("ABC123"); ok {
		t.Fatalf("binding still present after leave")
	}
	if _, _, ok := f.ids.LastRoom(); ok {
		t.Fatalf("LastRoom still set after leave")
	}
}

func TestTransportErrorIsWrapped(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(room.Snapshot{Code: "ABC123", State: room.StateRunning})
	f.emitter.err = errors.New("connection lost")

	err := f.d.PauseRound(context.Background())
	if !errors.Is(err, f.emitter.err) {
		t.Fatalf("error = %v, want wrapped transport error", err)
	}
	var rej *RejectedError
	if errors.As(err, &rej) {
		t.Fatalf("transport failure reported as rejection")
	}
}

func TestRejectedErrorMessage(t *testing.T) {
	tests := []struct {
		err  RejectedError
		want string
	}{
		{RejectedError{Action: EventJoin, Code: "ROOM_NOT_FOUND"}, "station:join rejected: ROOM_NOT_FOUND"},
		{RejectedError{Action: EventJoin, Code: "BAD", Message: "nope"}, "station:join rejected: BAD (nope)"},
		{RejectedError{Action: EventJoin}, "station:join rejected: UNKNOWN"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Fatalf("Error() = %q, want %q", got, tt.want)
		}
	}
}
