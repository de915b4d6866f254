package state

import (
	"fmt"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jeabsfamily-wq/stimer/internal/countdown"
	"github.com/jeabsfamily-wq/stimer/internal/identity"
	"github.com/jeabsfamily-wq/stimer/internal/notify"
	"github.com/jeabsfamily-wq/stimer/internal/room"
)

// Bindings is the part of the identity store the reducer may touch.
type Bindings interface {
	Forget(code string) error
	Renumber(code string, oldID, newID int) (bool, error)
}

// Notifier receives fire-once countdown cues.
type Notifier interface {
	Notify(sig notify.Signal)
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Room                room.Snapshot
	TimeLeft            *int // derived countdown; nil when not running
	Connected           bool
	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int // connection attempts failed since the last success
}

// IsOffline returns true when the server has been unreachable for multiple attempts.
func (s Snapshot) IsOffline() bool {
	return !s.Connected && s.ConsecutiveFailures >= 2
}

// Joined reports whether clientID owns a station in the cached room.
func (s Snapshot) Joined(clientID string) bool {
	_, ok := s.Room.StationOwnedBy(clientID)
	return ok
}

// DisplayTimeLeft returns the derived countdown, falling back to the
// server's resting value.
func (s Snapshot) DisplayTimeLeft() int {
	if s.TimeLeft != nil {
		return *s.TimeLeft
	}
	return s.Room.ResidualTime()
}

// Options configure a Store.
type Options struct {
	ClientID string
	Bindings Bindings
	Notifier Notifier
	Clock    clockwork.Clock
}

// basis is the last known (anchor, seconds) pair the countdown runs from.
type basis struct {
	anchor  time.Time
	seconds int
}

// Store applies server events to the cached room. The zero value works but
// has no identity, bindings or notifier.
type Store struct {
	mu       sync.RWMutex
	snapshot Snapshot
	basis    *basis
	fired    map[notify.Signal]bool

	clientID string
	bindings Bindings
	notifier Notifier
	clock    clockwork.Clock
}

// NewStore builds a Store from opts.
func NewStore(opts Options) *Store {
	return &Store{
		clientID: opts.ClientID,
		bindings: opts.Bindings,
		notifier: opts.Notifier,
		clock:    opts.Clock,
	}
}

func (s *Store) now() time.Time {
	if s.clock == nil {
		return time.Now()
	}
	return s.clock.Now()
}

// Apply reduces one server event into the cached state. Errors come only
// from persisting identity changes; the in-memory state is updated anyway.
func (s *Store) Apply(ev room.Event) error {
	var (
		signals []notify.Signal
		err     error
	)

	s.mu.Lock()
	now := s.now()
	switch e := ev.(type) {
	case room.Updated:
		s.replaceLocked(e.Room, now)

	case room.Started:
		s.snapshot.Room.State = room.StateRunning
		s.snapshot.Room.StartedAt = e.StartedAt
		s.basis = &basis{anchor: s.anchorFor(e.StartedAt, now), seconds: e.RoundDurationSec}
		v := e.RoundDurationSec
		s.snapshot.TimeLeft = &v
		s.fired = nil
		signals = s.fireLocked(signals, notify.Start)

	case room.Resumed:
		s.snapshot.Room.State = room.StateRunning
		s.snapshot.Room.StartedAt = e.StartedAt
		s.basis = &basis{anchor: s.anchorFor(e.StartedAt, now), seconds: e.RoundDurationSec}
		v := countdown.Remaining(s.basis.seconds, s.basis.anchor, now)
		s.snapshot.TimeLeft = &v

	case room.Tick:
		// The countdown only exists while running.
		if s.snapshot.Room.State != room.StateRunning {
			break
		}
		v := e.TimeLeft
		if v < 0 {
			v = 0
		}
		s.snapshot.TimeLeft = &v
		s.basis = &basis{anchor: now, seconds: v}

	case room.Warn60s:
		signals = s.fireLocked(signals, notify.Warn60)

	case room.Warn30s:
		signals = s.fireLocked(signals, notify.Warn30)

	case room.TimeUp:
		s.snapshot.TimeLeft = nil
		s.basis = nil
		signals = s.fireLocked(signals, notify.TimeUp)

	case room.Deleted:
		cur := identity.NormalizeCode(s.snapshot.Room.Code)
		code := identity.NormalizeCode(e.Code)
		if code == "" {
			code = cur
		}
		if s.bindings != nil && code != "" {
			if ferr := s.bindings.Forget(code); ferr != nil {
				err = fmt.Errorf("forget deleted room %s: %w", code, ferr)
			}
		}
		if code == cur {
			s.clearLocked()
		}

	case room.Kicked:
		if e.OwnerClientID != "" && e.OwnerClientID == s.clientID {
			if s.bindings != nil {
				if ferr := s.bindings.Forget(e.RoomCode); ferr != nil {
					err = fmt.Errorf("forget kicked binding %s: %w", e.RoomCode, ferr)
				}
			}
			if cur := identity.NormalizeCode(s.snapshot.Room.Code); cur == "" || cur == identity.NormalizeCode(e.RoomCode) {
				s.clearLocked()
			}
			log.Info().Str("room", e.RoomCode).Int("station", e.StationID).Str("reason", e.Reason).Msg("kicked from station")
		}

	case room.Renumbered:
		code := s.snapshot.Room.Code
		if e.ClientID != "" && e.ClientID == s.clientID && code != "" && s.bindings != nil {
			changed, rerr := s.bindings.Renumber(code, e.OldID, e.NewID)
			if rerr != nil {
				err = fmt.Errorf("renumber binding %s: %w", code, rerr)
			} else if changed {
				log.Info().Str("room", code).Int("old", e.OldID).Int("new", e.NewID).Msg("station renumbered")
			}
		}
	}
	s.snapshot.LastUpdated = now
	s.mu.Unlock()

	for _, sig := range signals {
		if s.notifier != nil {
			s.notifier.Notify(sig)
		}
	}
	return err
}

// Seed installs a snapshot returned by an acknowledged create or join.
func (s *Store) Seed(snap room.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.replaceLocked(snap, now)
	s.snapshot.LastUpdated = now
}

// Reset forgets the cached room.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.snapshot.LastUpdated = s.now()
}

// SetConnected records transport state. A nil err marks a live connection;
// a non-nil err records the failure and keeps the cached room for display.
func (s *Store) SetConnected(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.snapshot.Connected = false
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return
	}
	s.snapshot.Connected = true
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
}

// Extrapolate advances the derived countdown while the room is running. The
// value never increases between authoritative corrections.
func (s *Store) Extrapolate(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.Room.State != room.StateRunning || s.basis == nil {
		return
	}
	v := countdown.Remaining(s.basis.seconds, s.basis.anchor, now)
	if s.snapshot.TimeLeft == nil || v < *s.snapshot.TimeLeft {
		s.snapshot.TimeLeft = &v
	}
}

// RoomCode returns the cached room code, empty when there is none.
func (s *Store) RoomCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Room.Code
}

// Room returns a copy of the cached room snapshot.
func (s *Store) Room() room.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot.Room.Clone()
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Room = s.snapshot.Room.Clone()
	if s.snapshot.TimeLeft != nil {
		v := *s.snapshot.TimeLeft
		snap.TimeLeft = &v
	}
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func (s *Store) replaceLocked(snap room.Snapshot, now time.Time) {
	s.snapshot.Room = snap.Clone()

	if snap.State != room.StateRunning {
		s.snapshot.TimeLeft = nil
		s.basis = nil
		if snap.State == room.StateWaiting || snap.Empty() {
			s.fired = nil
		}
		return
	}
	// Mid-round snapshot with no event history, e.g. after a reconnect.
	if s.basis == nil && snap.StartedAt > 0 {
		s.basis = &basis{anchor: s.anchorFor(snap.StartedAt, now), seconds: snap.RoundDurationSec}
		v := countdown.Remaining(s.basis.seconds, s.basis.anchor, now)
		s.snapshot.TimeLeft = &v
	}
}

func (s *Store) clearLocked() {
	s.snapshot.Room = room.Snapshot{}
	s.snapshot.TimeLeft = nil
	s.basis = nil
	s.fired = nil
}

// fireLocked appends sig unless it already fired this round.
func (s *Store) fireLocked(out []notify.Signal, sig notify.Signal) []notify.Signal {
	if s.fired == nil {
		s.fired = make(map[notify.Signal]bool)
	}
	if s.fired[sig] {
		return out
	}
	s.fired[sig] = true
	return append(out, sig)
}

// anchorFor converts a server start time to a local anchor, clamping server
// clocks that run ahead of ours.
func (s *Store) anchorFor(startedAt int64, now time.Time) time.Time {
	if startedAt <= 0 {
		return now
	}
	t := time.UnixMilli(startedAt)
	if t.After(now) {
		return now
	}
	return t
}
