package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeabsfamily-wq/stimer/internal/actions"
	"github.com/jeabsfamily-wq/stimer/internal/room"
	"github.com/jeabsfamily-wq/stimer/internal/transport"
)

// roomServer is a minimal stand-in for the timer server: it keeps one room,
// answers requests and lets the test push events.
type roomServer struct {
	*httptest.Server

	mu       sync.Mutex
	conn     *websocket.Conn
	room     room.Snapshot
	afterAck map[string]room.Snapshot
	writeMu  sync.Mutex
	requests chan transport.Frame
	connects chan string
}

func newRoomServer(t *testing.T) *roomServer {
	t.Helper()
	s := &roomServer{
		requests: make(chan transport.Frame, 32),
		connects: make(chan string, 8),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/hello":
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(transport.HelloResponse{ClientID: "server-side"})
		case "/ws":
			conn, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			s.mu.Lock()
			s.conn = conn
			s.mu.Unlock()
			s.connects <- r.URL.Query().Get("clientId")
			go s.serve(conn)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *roomServer) setRoom(snap room.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = snap
}

// pushAfterAck makes the next acknowledgement of event be followed by a
// room:updated carrying snap.
func (s *roomServer) pushAfterAck(event string, snap room.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.afterAck == nil {
		s.afterAck = make(map[string]room.Snapshot)
	}
	s.afterAck[event] = snap
}

// drop closes the live socket from the server side.
func (s *roomServer) drop() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func (s *roomServer) push(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	if conn == nil {
		t.Fatalf("push %s: no connection", event)
	}
	if err := s.write(conn, transport.Frame{Event: event, Data: data}); err != nil {
		t.Fatalf("push %s: %v", event, err)
	}
}

func (s *roomServer) write(conn *websocket.Conn, f transport.Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return conn.WriteJSON(f)
}

func (s *roomServer) serve(conn *websocket.Conn) {
	defer conn.Close()
	for {
		var f transport.Frame
		if err := conn.ReadJSON(&f); err != nil {
			return
		}
		select {
		case s.requests <- f:
		default:
		}
		s.handle(conn, f)
	}
}

func (s *roomServer) handle(conn *websocket.Conn, f transport.Frame) {
	var req struct {
		Code             string `json:"code"`
		RoomCode         string `json:"roomCode"`
		StationsCount    int    `json:"stationsCount"`
		RoundDurationSec int    `json:"roundDurationSec"`
		StationID        int    `json:"stationId"`
		ClientID         string `json:"clientId"`
		Ready            bool   `json:"ready"`
	}
	_ = json.Unmarshal(f.Data, &req)

	ack := actions.Ack{OK: true}
	s.mu.Lock()
	switch f.Event {
	case actions.EventCreateRoom:
		s.room = room.Snapshot{
			Code:             "ABC123",
			CentralClientID:  "central-client",
			State:            room.StateWaiting,
			StationsCount:    req.StationsCount,
			RoundDurationSec: req.RoundDurationSec,
		}
		for i := 1; i <= req.StationsCount; i++ {
			s.room.Stations = append(s.room.Stations, room.Station{ID: i})
		}
		snap := s.room.Clone()
		ack.Room = &snap

	case actions.EventJoin:
		if s.room.Code == "" || s.room.Code != req.RoomCode {
			ack = actions.Ack{OK: false, Error: &actions.AckError{Code: "ROOM_NOT_FOUND"}}
			break
		}
		for i := range s.room.Stations {
			st := &s.room.Stations[i]
			if (req.StationID == 0 && st.Vacant()) || st.ID == req.StationID {
				st.OwnerClientID = req.ClientID
				st.Connected = true
				break
			}
		}
		snap := s.room.Clone()
		ack.Room = &snap

	case actions.EventSetReady:
		for i := range s.room.Stations {
			if s.room.Stations[i].OwnerClientID != "" {
				s.room.Stations[i].Ready = req.Ready
			}
		}
	}
	snap := s.room.Clone()
	later, pushLater := s.afterAck[f.Event]
	delete(s.afterAck, f.Event)
	s.mu.Unlock()

	if ack.OK && f.Event != actions.EventCreateRoom {
		data, _ := json.Marshal(snap)
		_ = s.write(conn, transport.Frame{Event: room.EventUpdated, Data: data})
	}
	data, _ := json.Marshal(ack)
	_ = s.write(conn, transport.Frame{Ack: f.ID, Data: data})
	if pushLater {
		data, _ := json.Marshal(later)
		_ = s.write(conn, transport.Frame{Event: room.EventUpdated, Data: data})
	}
}

func (s *roomServer) nextRequest(t *testing.T, event string) transport.Frame {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case f := <-s.requests:
			if f.Event == event {
				return f
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s request", event)
			return transport.Frame{}
		}
	}
}

func (s *roomServer) waitConnect(t *testing.T) string {
	t.Helper()
	select {
	case id := <-s.connects:
		return id
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for client to connect")
		return ""
	}
}
