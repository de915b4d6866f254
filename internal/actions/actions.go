// Package actions issues the client's requests to the server, one
// request/acknowledgement round trip per call.
package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jeabsfamily-wq/stimer/internal/identity"
	"github.com/jeabsfamily-wq/stimer/internal/room"
)

// Outbound event names.
const (
	EventCreateRoom    = "central:createRoom"
	EventUpdateConfig  = "central:updateConfig"
	EventDeleteRoom    = "central:deleteRoom"
	EventPauseRound    = "central:pauseRound"
	EventResumeRound   = "central:resumeRound"
	EventResetRoom     = "central:resetRoom"
	EventSkipRound     = "central:skipRound"
	EventRemoveStation = "central:removeStation"
	EventJoin          = "station:join"
	EventSetReady      = "station:setReady"
	EventLeave         = "station:leave"
)

var (
	// ErrNoRoom is returned without contacting the server when an action
	// needs a room code and none is cached.
	ErrNoRoom = errors.New("no room")
	// ErrNothingToToggle is returned by TogglePause when the room is neither
	// running nor resumable.
	ErrNothingToToggle = errors.New("round is neither running nor resumable")
)

// Emitter sends one request and waits for its acknowledgement. A non-nil
// apply sees the acknowledgement before any push that arrived after it.
type Emitter interface {
	EmitApply(ctx context.Context, event string, payload any, apply func(json.RawMessage)) (json.RawMessage, error)
}

// RoomStore is the slice of the room state store the dispatcher reads and
// seeds.
type RoomStore interface {
	RoomCode() string
	Room() room.Snapshot
	Seed(snap room.Snapshot)
}

// Bindings is the slice of the identity store the dispatcher writes.
type Bindings interface {
	SetBinding(code string, stationID int) error
	Remember(code string, stationID int) error
	Forget(code string) error
}

// Dispatcher maps user intents onto server requests. It never retries.
type Dispatcher struct {
	emitter  Emitter
	store    RoomStore
	bindings Bindings
	clientID string
}

// New builds a Dispatcher acting as clientID.
func New(emitter Emitter, store RoomStore, bindings Bindings, clientID string) *Dispatcher {
	return &Dispatcher{
		emitter:  emitter,
		store:    store,
		bindings: bindings,
		clientID: clientID,
	}
}

// ClientID returns the identity requests are sent as.
func (d *Dispatcher) ClientID() string {
	return d.clientID
}

type createRoomRequest struct {
	StationsCount    int `json:"stationsCount"`
	RoundDurationSec int `json:"roundDurationSec"`
}

type updateConfigRequest struct {
	Code             string `json:"code"`
	StationsCount    int    `json:"stationsCount"`
	RoundDurationSec int    `json:"roundDurationSec"`
}

type deleteRoomRequest struct {
	Code  string `json:"code"`
	Force bool   `json:"force,omitempty"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type removeStationRequest struct {
	RoomCode  string `json:"roomCode"`
	StationID int    `json:"stationId"`
}

type joinRequest struct {
	RoomCode  string `json:"roomCode"`
	StationID int    `json:"stationId,omitempty"`
	ClientID  string `json:"clientId"`
}

type setReadyRequest struct {
	RoomCode string `json:"roomCode"`
	Ready    bool   `json:"ready"`
}

type leaveRequest struct {
	RoomCode string `json:"roomCode"`
}

// CreateRoom asks the server for a new room and caches the returned snapshot.
func (d *Dispatcher) CreateRoom(ctx context.Context, stationsCount, roundDurationSec int) (room.Snapshot, error) {
	ack, err := d.seedCall(ctx, EventCreateRoom, createRoomRequest{
		StationsCount:    stationsCount,
		RoundDurationSec: roundDurationSec,
	})
	if err != nil {
		return room.Snapshot{}, err
	}
	if ack.Room == nil {
		return room.Snapshot{}, nil
	}
	log.Info().Str("room", ack.Room.Code).Int("stations", stationsCount).Msg("room created")
	return *ack.Room, nil
}

// UpdateConfig changes the slot count and round length of the cached room.
func (d *Dispatcher) UpdateConfig(ctx context.Context, stationsCount, roundDurationSec int) error {
	code, err := d.roomCode()
	if err != nil {
		return err
	}
	_, err = d.call(ctx, EventUpdateConfig, updateConfigRequest{
		Code:             code,
		StationsCount:    stationsCount,
		RoundDurationSec: roundDurationSec,
	})
	return err
}

// DeleteRoom removes the cached room. force is required while a round runs.
func (d *Dispatcher) DeleteRoom(ctx context.Context, force bool) error {
	code, err := d.roomCode()
	if err != nil {
		return err
	}
	_, err = d.call(ctx, EventDeleteRoom, deleteRoomRequest{Code: code, Force: force})
	return err
}

// PauseRound stops the running round, keeping its residual time.
func (d *Dispatcher) PauseRound(ctx context.Context) error {
	return d.simple(ctx, EventPauseRound)
}

// ResumeRound continues an ended round that still has time left.
func (d *Dispatcher) ResumeRound(ctx context.Context) error {
	return d.simple(ctx, EventResumeRound)
}

// ResetRoom returns the room to WAITING.
func (d *Dispatcher) ResetRoom(ctx context.Context) error {
	return d.simple(ctx, EventResetRoom)
}

// SkipRound ends the running round immediately.
func (d *Dispatcher) SkipRound(ctx context.Context) error {
	return d.simple(ctx, EventSkipRound)
}

// TogglePause pauses a running round or resumes a paused one, based on the
// cached snapshot.
func (d *Dispatcher) TogglePause(ctx context.Context) error {
	snap := d.store.Room()
	if snap.Empty() {
		return ErrNoRoom
	}
	switch {
	case snap.State == room.StateRunning:
		return d.PauseRound(ctx)
	case snap.CanResume():
		return d.ResumeRound(ctx)
	default:
		return ErrNothingToToggle
	}
}

// RemoveStation kicks the owner of a slot while running, or removes and
// compacts the slot while waiting.
func (d *Dispatcher) RemoveStation(ctx context.Context, stationID int) error {
	code, err := d.roomCode()
	if err != nil {
		return err
	}
	_, err = d.call(ctx, EventRemoveStation, removeStationRequest{RoomCode: code, StationID: stationID})
	return err
}

// Join claims a slot in code. A stationID of zero lets the server assign
// one. On success the returned snapshot is cached and the binding stored.
func (d *Dispatcher) Join(ctx context.Context, code string, stationID int) (room.Snapshot, error) {
	code = identity.NormalizeCode(code)
	if code == "" {
		return room.Snapshot{}, ErrNoRoom
	}
	ack, err := d.seedCall(ctx, EventJoin, joinRequest{RoomCode: code, StationID: stationID, ClientID: d.clientID})
	if err != nil {
		return room.Snapshot{}, err
	}

	var snap room.Snapshot
	if ack.Room != nil {
		snap = *ack.Room
	}

	owned := stationID
	if st, ok := snap.StationOwnedBy(d.clientID); ok {
		owned = st.ID
	}
	if owned > 0 {
		if err := d.bindings.SetBinding(code, owned); err != nil {
			return snap, fmt.Errorf("store binding: %w", err)
		}
	}
	if err := d.bindings.Remember(code, owned); err != nil {
		return snap, fmt.Errorf("store last room: %w", err)
	}
	log.Info().Str("room", code).Int("station", owned).Msg("joined room")
	return snap, nil
}

// SetReady flags this device's slot as ready or not.
func (d *Dispatcher) SetReady(ctx context.Context, ready bool) error {
	code, err := d.roomCode()
	if err != nil {
		return err
	}
	_, err = d.call(ctx, EventSetReady, setReadyRequest{RoomCode: code, Ready: ready})
	return err
}

// Leave vacates this device's slot and forgets the binding.
func (d *Dispatcher) Leave(ctx context.Context) error {
	code, err := d.roomCode()
	if err != nil {
		return err
	}
	if _, err := d.call(ctx, EventLeave, leaveRequest{RoomCode: code}); err != nil {
		return err
	}
	if err := d.bindings.Forget(code); err != nil {
		return fmt.Errorf("forget binding: %w", err)
	}
	log.Info().Str("room", code).Msg("left room")
	return nil
}

func (d *Dispatcher) simple(ctx context.Context, event string) error {
	code, err := d.roomCode()
	if err != nil {
		return err
	}
	_, err = d.call(ctx, event, codeRequest{Code: code})
	return err
}

func (d *Dispatcher) roomCode() (string, error) {
	code := d.store.RoomCode()
	if code == "" {
		return "", ErrNoRoom
	}
	return code, nil
}

// call performs one round trip and turns {ok:false} into a RejectedError.
func (d *Dispatcher) call(ctx context.Context, event string, payload any) (Ack, error) {
	return d.roundTrip(ctx, event, payload, nil)
}

// seedCall is call for requests whose acknowledgement carries the room. The
// room is seeded in arrival order, so a push that follows the acknowledgement
// is never overwritten by it.
func (d *Dispatcher) seedCall(ctx context.Context, event string, payload any) (Ack, error) {
	return d.roundTrip(ctx, event, payload, func(data json.RawMessage) {
		ack, err := decodeAck(data)
		if err != nil || !ack.OK || ack.Room == nil {
			return
		}
		d.store.Seed(*ack.Room)
	})
}

func (d *Dispatcher) roundTrip(ctx context.Context, event string, payload any, apply func(json.RawMessage)) (Ack, error) {
	data, err := d.emitter.EmitApply(ctx, event, payload, apply)
	if err != nil {
		return Ack{}, fmt.Errorf("%s: %w", event, err)
	}
	ack, err := decodeAck(data)
	if err != nil {
		return Ack{}, fmt.Errorf("%s: %w", event, err)
	}
	if !ack.OK {
		rej := &RejectedError{Action: event}
		if ack.Error != nil {
			rej.Code = ack.Error.Code
			rej.Message = ack.Error.Message
		}
		log.Debug().Str("event", event).Str("code", rej.Code).Msg("request rejected")
		return ack, rej
	}
	return ack, nil
}

func decodeAck(data json.RawMessage) (Ack, error) {
	var ack Ack
	if len(data) == 0 || string(data) == "null" {
		return ack, nil
	}
	if err := json.Unmarshal(data, &ack); err != nil {
		return Ack{}, fmt.Errorf("decode acknowledgement: %w", err)
	}
	return ack, nil
}
