package room

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Inbound event names.
const (
	EventUpdated    = "room:updated"
	EventStarted    = "room:started"
	EventResumed    = "room:resumed"
	EventTick       = "room:tick"
	EventWarn60s    = "room:warn60s"
	EventWarn30s    = "room:warn30s"
	EventTimeUp     = "room:timeUp"
	EventDeleted    = "room:deleted"
	EventKicked     = "station:kicked"
	EventRenumbered = "station:renumbered"
)

// ErrUnknownEvent is returned by Decode for names outside the contract.
var ErrUnknownEvent = errors.New("unknown event")

// Event is one server push. The set of implementations is closed.
type Event interface {
	isRoomEvent()
	Name() string
}

// Updated replaces the whole snapshot.
type Updated struct {
	Room Snapshot
}

// Started marks a fresh round.
type Started struct {
	StartedAt        int64 `json:"startedAt"`
	RoundDurationSec int   `json:"roundDurationSec"`
}

// Resumed marks a round continuing after a pause.
type Resumed struct {
	StartedAt        int64 `json:"startedAt"`
	RoundDurationSec int   `json:"roundDurationSec"`
}

// Tick is the server's authoritative remaining time.
type Tick struct {
	TimeLeft int `json:"timeLeft"`
}

// Warn60s fires once at sixty seconds remaining.
type Warn60s struct{}

// Warn30s fires once at thirty seconds remaining.
type Warn30s struct{}

// TimeUp ends the countdown.
type TimeUp struct{}

// Deleted means the room no longer exists. Code may be empty.
type Deleted struct {
	Code string `json:"code,omitempty"`
}

// Kicked removes an owner from a station.
type Kicked struct {
	Reason        string `json:"reason"`
	OwnerClientID string `json:"ownerClientId"`
	StationID     int    `json:"stationId"`
	RoomCode      string `json:"roomCode"`
}

// Renumbered moves an owner to a new station id after compaction.
type Renumbered struct {
	ClientID string `json:"clientId"`
	OldID    int    `json:"oldId"`
	NewID    int    `json:"newId"`
}

func (Updated) isRoomEvent()    {}
func (Started) isRoomEvent()    {}
func (Resumed) isRoomEvent()    {}
func (Tick) isRoomEvent()       {}
func (Warn60s) isRoomEvent()    {}
func (Warn30s) isRoomEvent()    {}
func (TimeUp) isRoomEvent()     {}
func (Deleted) isRoomEvent()    {}
func (Kicked) isRoomEvent()     {}
func (Renumbered) isRoomEvent() {}

func (Updated) Name() string    { return EventUpdated }
func (Started) Name() string    { return EventStarted }
func (Resumed) Name() string    { return EventResumed }
func (Tick) Name() string       { return EventTick }
func (Warn60s) Name() string    { return EventWarn60s }
func (Warn30s) Name() string    { return EventWarn30s }
func (TimeUp) Name() string     { return EventTimeUp }
func (Deleted) Name() string    { return EventDeleted }
func (Kicked) Name() string     { return EventKicked }
func (Renumbered) Name() string { return EventRenumbered }

// Decode turns a named push and its JSON payload into an Event.
func Decode(name string, data json.RawMessage) (Event, error) {
	switch name {
	case EventUpdated:
		var snap Snapshot
		if err := unmarshal(data, &snap); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return Updated{Room: snap}, nil
	case EventStarted:
		var ev Started
		if err := unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventResumed:
		var ev Resumed
		if err := unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventTick:
		var ev Tick
		if err := unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventWarn60s:
		return Warn60s{}, nil
	case EventWarn30s:
		return Warn30s{}, nil
	case EventTimeUp:
		return TimeUp{}, nil
	case EventDeleted:
		var ev Deleted
		if err := unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventKicked:
		var ev Kicked
		if err := unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	case EventRenumbered:
		var ev Renumbered
		if err := unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
	}
}

// unmarshal tolerates an absent or null payload.
func unmarshal(data json.RawMessage, dest any) error {
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dest)
}
