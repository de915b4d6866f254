// Package room defines the room snapshot as the server reports it and the
// closed set of events the server pushes about it.
package room

import "time"

// State is the server-side lifecycle state of a room.
type State string

const (
	StateWaiting State = "WAITING"
	StateRunning State = "RUNNING"
	StateEnded   State = "ENDED"
)

// Station is one configured slot in a room.
type Station struct {
	ID            int    `json:"id"`
	OwnerClientID string `json:"ownerClientId,omitempty"`
	Ready         bool   `json:"ready"`
	Connected     bool   `json:"connected"`
}

// Vacant reports whether nobody owns the slot.
func (s Station) Vacant() bool {
	return s.OwnerClientID == ""
}

// Snapshot is the full room state as last pushed by the server. The zero
// value means "no room".
type Snapshot struct {
	Code             string    `json:"code,omitempty"`
	CentralClientID  string    `json:"centralClientId,omitempty"`
	State            State     `json:"state,omitempty"`
	StationsCount    int       `json:"stationsCount,omitempty"`
	RoundDurationSec int       `json:"roundDurationSec,omitempty"`
	Stations         []Station `json:"stations,omitempty"`
	StartedAt        int64     `json:"startedAt,omitempty"` // unix milliseconds
	TimeLeft         *int      `json:"timeLeft,omitempty"`
}

// Empty reports whether the snapshot describes no room.
func (s Snapshot) Empty() bool {
	return s.Code == ""
}

// Valid reports whether the station list matches the configured slot count.
func (s Snapshot) Valid() bool {
	return len(s.Stations) == s.StationsCount
}

// StartedTime converts StartedAt to a time. It is zero when unset.
func (s Snapshot) StartedTime() time.Time {
	if s.StartedAt <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(s.StartedAt)
}

// IsCentral reports whether clientID created the room.
func (s Snapshot) IsCentral(clientID string) bool {
	return clientID != "" && s.CentralClientID == clientID
}

// StationOwnedBy returns the slot owned by clientID.
func (s Snapshot) StationOwnedBy(clientID string) (Station, bool) {
	if clientID == "" {
		return Station{}, false
	}
	for _, st := range s.Stations {
		if st.OwnerClientID == clientID {
			return st, true
		}
	}
	return Station{}, false
}

// Station returns the slot with the given id.
func (s Snapshot) Station(id int) (Station, bool) {
	for _, st := range s.Stations {
		if st.ID == id {
			return st, true
		}
	}
	return Station{}, false
}

// ReadyCount returns how many owned stations are ready.
func (s Snapshot) ReadyCount() int {
	n := 0
	for _, st := range s.Stations {
		if !st.Vacant() && st.Ready {
			n++
		}
	}
	return n
}

// ResidualTime returns the server-reported remaining seconds, or zero.
func (s Snapshot) ResidualTime() int {
	if s.TimeLeft == nil {
		return 0
	}
	return *s.TimeLeft
}

// CanResume reports whether an ended round still has time left to resume.
func (s Snapshot) CanResume() bool {
	return s.State == StateEnded && s.ResidualTime() > 0
}

// Clone returns a deep copy.
func (s Snapshot) Clone() Snapshot {
	dup := s
	if s.Stations != nil {
		dup.Stations = make([]Station, len(s.Stations))
		copy(dup.Stations, s.Stations)
	}
	if s.TimeLeft != nil {
		v := *s.TimeLeft
		dup.TimeLeft = &v
	}
	return dup
}
