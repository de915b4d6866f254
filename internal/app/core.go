package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/jeabsfamily-wq/stimer/internal/actions"
	"github.com/jeabsfamily-wq/stimer/internal/config"
	"github.com/jeabsfamily-wq/stimer/internal/countdown"
	"github.com/jeabsfamily-wq/stimer/internal/identity"
	"github.com/jeabsfamily-wq/stimer/internal/notify"
	"github.com/jeabsfamily-wq/stimer/internal/room"
	"github.com/jeabsfamily-wq/stimer/internal/state"
	"github.com/jeabsfamily-wq/stimer/internal/storage"
	"github.com/jeabsfamily-wq/stimer/internal/transport"
)

// Core holds the one instance of every long-lived component. Build it once
// per process and pass it by reference.
type Core struct {
	Config   config.Config
	Identity *identity.Store
	ClientID string
	Store    *state.Store
	Conn     *transport.Manager
	Actions  *actions.Dispatcher
	Signals  *notify.Bus
	API      *transport.Client

	clock clockwork.Clock
}

// NewCore wires the components over kv. A nil clock uses real time.
func NewCore(cfg config.Config, kv storage.KV, clock clockwork.Clock) (*Core, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	ids := identity.New(kv)
	clientID, err := ids.ClientID()
	if err != nil {
		return nil, fmt.Errorf("load client identity: %w", err)
	}

	api, err := transport.NewClient(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("init server client: %w", err)
	}

	bus := &notify.Bus{}
	store := state.NewStore(state.Options{
		ClientID: clientID,
		Bindings: ids,
		Notifier: bus,
		Clock:    clock,
	})

	c := &Core{
		Config:   cfg,
		Identity: ids,
		ClientID: clientID,
		Store:    store,
		Signals:  bus,
		API:      api,
		clock:    clock,
	}
	c.Conn = transport.NewManager(transport.ConnConfig{
		ServerURL:     cfg.ServerURL,
		SocketPath:    cfg.SocketPath,
		ClientID:      clientID,
		ReconnectBase: cfg.ReconnectBase,
	}, transport.Handlers{
		OnConnect:    c.rejoin,
		OnEvent:      c.handleEvent,
		OnDisconnect: c.handleDisconnect,
	}, clock)
	c.Actions = actions.New(c.Conn, store, ids, clientID)

	return c, nil
}

// Start launches the connection and countdown loops. The returned channel
// yields the connection manager's exit error once ctx ends or it fails.
func (c *Core) Start(ctx context.Context) <-chan error {
	errc := make(chan error, 1)
	go func() {
		errc <- c.Conn.Run(ctx)
	}()
	go countdown.Run(ctx, c.clock, c.Config.TickInterval, c.Store)
	return errc
}

// CheckServer checks that the server answers over HTTP. Failure is only logged.
func (c *Core) CheckServer(ctx context.Context) {
	hello, err := c.API.Hello(ctx)
	if err != nil {
		log.Warn().Err(err).Str("server", c.API.BaseURL()).Msg("server check failed")
		return
	}
	log.Debug().Str("server", c.API.BaseURL()).Str("server_client_id", hello.ClientID).Msg("server reachable")
}

// rejoin runs on every successful (re)connection and claims the last bound
// room again without any caller action.
func (c *Core) rejoin(ctx context.Context) {
	c.Store.SetConnected(nil)

	code, stationID, ok := c.Identity.LastRoom()
	if !ok {
		return
	}
	log.Info().Str("room", code).Int("station", stationID).Msg("rejoining room")
	if _, err := c.Actions.Join(ctx, code, stationID); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Warn().Err(err).Str("room", code).Msg("rejoin failed")
	}
}

func (c *Core) handleEvent(name string, data json.RawMessage) {
	ev, err := room.Decode(name, data)
	if err != nil {
		if errors.Is(err, room.ErrUnknownEvent) {
			log.Debug().Str("event", name).Msg("ignoring unknown event")
			return
		}
		log.Warn().Err(err).Str("event", name).Msg("dropping malformed event")
		return
	}
	log.Debug().Str("event", name).Msg("event received")
	if err := c.Store.Apply(ev); err != nil {
		log.Error().Err(err).Str("event", name).Msg("apply event")
	}
}

func (c *Core) handleDisconnect(err error) {
	c.Store.SetConnected(err)
}
