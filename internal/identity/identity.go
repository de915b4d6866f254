// Package identity owns the device's client identity and the per-room record
// of which station this device currently holds.
package identity

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jeabsfamily-wq/stimer/internal/storage"
)

const (
	keyClientID = "st:clientId"

	// Single-slot keys written by older clients. Still read as a fallback and
	// kept in step with the per-room bindings.
	keyLastRoom    = "st:lastRoomCode"
	keyLastStation = "st:lastStationId"
)

func bindingKey(code string) string {
	return "st:" + code + ":stationId"
}

// NormalizeCode trims and upper-cases a human-entered room code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Store reads and writes identity state through a durable KV.
type Store struct {
	kv    storage.KV
	newID func() string

	mu sync.Mutex
}

// New returns a Store backed by kv.
func New(kv storage.KV) *Store {
	return &Store{kv: kv, newID: uuid.NewString}
}

// ClientID returns the device identity, creating and persisting it on first
// use. Later calls return the persisted value.
func (s *Store) ClientID() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.kv.Get(keyClientID); ok && strings.TrimSpace(id) != "" {
		return id, nil
	}
	id := s.newID()
	if err := s.kv.Set(keyClientID, id); err != nil {
		return "", fmt.Errorf("persist client id: %w", err)
	}
	return id, nil
}

// Binding returns the station this device owns in the room, if any.
func (s *Store) Binding(code string) (int, bool) {
	code = NormalizeCode(code)
	if code == "" {
		return 0, false
	}
	return s.readInt(bindingKey(code))
}

// SetBinding records ownership of stationID in the room. Bindings for other
// rooms are untouched.
func (s *Store) SetBinding(code string, stationID int) error {
	code = NormalizeCode(code)
	if code == "" {
		return fmt.Errorf("room code required")
	}
	if stationID <= 0 {
		return fmt.Errorf("invalid station id %d", stationID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Set(bindingKey(code), strconv.Itoa(stationID))
}

// ClearBinding removes the binding for one room.
func (s *Store) ClearBinding(code string) error {
	code = NormalizeCode(code)
	if code == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.kv.Delete(bindingKey(code))
}

// Remember marks code as the room to rejoin on the next connection. A zero
// stationID leaves the station unknown.
func (s *Store) Remember(code string, stationID int) error {
	code = NormalizeCode(code)
	if code == "" {
		return fmt.Errorf("room code required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Set(keyLastRoom, code); err != nil {
		return err
	}
	if stationID > 0 {
		return s.kv.Set(keyLastStation, strconv.Itoa(stationID))
	}
	return s.kv.Delete(keyLastStation)
}

// LastRoom returns the room to rejoin and, when known, the station to ask
// for. The per-room binding wins over the legacy single-slot station key.
func (s *Store) LastRoom() (code string, stationID int, ok bool) {
	raw, found := s.kv.Get(keyLastRoom)
	code = NormalizeCode(raw)
	if !found || code == "" {
		return "", 0, false
	}
	if id, bound := s.readInt(bindingKey(code)); bound {
		return code, id, true
	}
	if id, legacy := s.readInt(keyLastStation); legacy {
		return code, id, true
	}
	return code, 0, true
}

// Forget drops every trace of the room: its binding and, when they point at
// it, the rejoin keys.
func (s *Store) Forget(code string) error {
	code = NormalizeCode(code)
	if code == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.kv.Delete(bindingKey(code)); err != nil {
		return err
	}
	if last, ok := s.kv.Get(keyLastRoom); ok && NormalizeCode(last) == code {
		if err := s.kv.Delete(keyLastRoom); err != nil {
			return err
		}
		return s.kv.Delete(keyLastStation)
	}
	return nil
}

// Renumber moves the binding for code from oldID to newID. It reports false
// and changes nothing when the stored binding is not oldID.
func (s *Store) Renumber(code string, oldID, newID int) (bool, error) {
	code = NormalizeCode(code)
	if code == "" || newID <= 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.readInt(bindingKey(code))
	if !ok || cur != oldID {
		return false, nil
	}
	if err := s.kv.Set(bindingKey(code), strconv.Itoa(newID)); err != nil {
		return false, err
	}
	if last, ok := s.kv.Get(keyLastRoom); ok && NormalizeCode(last) == code {
		if legacy, ok := s.readInt(keyLastStation); ok && legacy == oldID {
			if err := s.kv.Set(keyLastStation, strconv.Itoa(newID)); err != nil {
				return true, err
			}
		}
	}
	return true, nil
}

func (s *Store) readInt(key string) (int, bool) {
	raw, ok := s.kv.Get(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
