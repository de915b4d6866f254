package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrNotConnected is returned by Emit when no socket is open.
	ErrNotConnected = errors.New("not connected")
	// ErrDisconnected fails requests whose acknowledgement was lost to a drop.
	ErrDisconnected = errors.New("connection lost before acknowledgement")
	// ErrAlreadyRunning guards the one-connection-per-process rule.
	ErrAlreadyRunning = errors.New("connection manager already running")
)

// maxBackoff caps the reconnect delay.
const maxBackoff = 30 * time.Second

// calculateBackoff returns base * 2^failures, capped at maxBackoff.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	d := base
	for i := 0; i < failures; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// ConnConfig configures a Manager.
type ConnConfig struct {
	ServerURL     string
	SocketPath    string
	ClientID      string
	ReconnectBase time.Duration
	PingInterval  time.Duration
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
}

// DefaultConnConfig returns the liveness settings used in production.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		SocketPath:    defaultSocketPath,
		ReconnectBase: time.Second,
		PingInterval:  25 * time.Second,
		ReadTimeout:   60 * time.Second,
		WriteTimeout:  10 * time.Second,
	}
}

func (c ConnConfig) withDefaults() ConnConfig {
	def := DefaultConnConfig()
	if c.SocketPath == "" {
		c.SocketPath = def.SocketPath
	}
	if c.ReconnectBase <= 0 {
		c.ReconnectBase = def.ReconnectBase
	}
	if c.PingInterval <= 0 {
		c.PingInterval = def.PingInterval
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	return c
}

// Handlers receive connection lifecycle callbacks. Any may be nil.
type Handlers struct {
	// OnConnect runs in its own goroutine after every successful dial, so it
	// may call Emit.
	OnConnect func(ctx context.Context)
	// OnEvent receives pushes in arrival order on the read goroutine.
	OnEvent func(name string, data json.RawMessage)
	// OnDisconnect receives every failed dial and every dropped connection.
	OnDisconnect func(err error)
}

type ackResult struct {
	data json.RawMessage
	err  error
}

// pendingRequest is one request awaiting its acknowledgement.
type pendingRequest struct {
	ch    chan ackResult
	apply func(json.RawMessage)
}

// Manager owns the single socket to the server. It reconnects with
// exponential backoff until its context ends.
type Manager struct {
	cfg      ConnConfig
	handlers Handlers
	clock    clockwork.Clock
	dialer   *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[uint64]*pendingRequest
	// nextID only grows so a stale forget never hits a newer request.
	nextID  uint64
	running bool

	writeMu sync.Mutex
}

// NewManager builds a Manager. A nil clock uses real time.
func NewManager(cfg ConnConfig, h Handlers, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		cfg:      cfg.withDefaults(),
		handlers: h,
		clock:    clock,
		dialer:   websocket.DefaultDialer,
		pending:  make(map[uint64]*pendingRequest),
	}
}

// Connected reports whether a socket is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Run dials, serves and redials until ctx is done. It returns nil on
// cancellation and ErrAlreadyRunning when called twice concurrently.
func (m *Manager) Run(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.running = true
	m.mu.Unlock()
	defer func() {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
	}()

	target, err := SocketURL(m.cfg.ServerURL, m.cfg.SocketPath, m.cfg.ClientID)
	if err != nil {
		return err
	}

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}

		conn, _, err := m.dialer.DialContext(ctx, target, http.Header{"User-Agent": []string{defaultUserAgent}})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			wait := calculateBackoff(failures, m.cfg.ReconnectBase)
			failures++
			log.Warn().Err(err).Str("url", target).Dur("retry_in", wait).Msg("dial failed")
			m.disconnected(fmt.Errorf("dial: %w", err))
			if !m.sleep(ctx, wait) {
				return nil
			}
			continue
		}

		failures = 0
		log.Info().Str("url", target).Msg("connected")
		err = m.serve(ctx, conn)
		if ctx.Err() != nil {
			return nil
		}
		log.Warn().Err(err).Msg("connection dropped")
		m.disconnected(err)
		if !m.sleep(ctx, m.cfg.ReconnectBase) {
			return nil
		}
	}
}

// Emit sends event with payload and waits for the matching acknowledgement.
// There is no client-side timeout; ctx bounds the wait.
func (m *Manager) Emit(ctx context.Context, event string, payload any) (json.RawMessage, error) {
	return m.EmitApply(ctx, event, payload, nil)
}

// EmitApply is Emit with a hook. A non-nil apply receives the acknowledgement
// on the read goroutine, before any frame that arrived after it is
// dispatched. It is not called when the request fails.
func (m *Manager) EmitApply(ctx context.Context, event string, payload any, apply func(json.RawMessage)) (json.RawMessage, error) {
	data, err := encodePayload(payload)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}

	m.mu.Lock()
	conn := m.conn
	if conn == nil {
		m.mu.Unlock()
		return nil, ErrNotConnected
	}
	m.nextID++
	id := m.nextID
	req := &pendingRequest{ch: make(chan ackResult, 1), apply: apply}
	m.pending[id] = req
	m.mu.Unlock()

	raw, err := json.Marshal(Frame{Event: event, ID: id, Data: data})
	if err != nil {
		m.forget(id, req)
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}

	m.writeMu.Lock()
	_ = conn.SetWriteDeadline(time.Now().Add(m.cfg.WriteTimeout))
	err = conn.WriteMessage(websocket.TextMessage, raw)
	m.writeMu.Unlock()
	if err != nil {
		m.forget(id, req)
		return nil, fmt.Errorf("send %s: %w", event, err)
	}
	log.Debug().Str("event", event).Uint64("id", id).Msg("request sent")

	select {
	case res := <-req.ch:
		return res.data, res.err
	case <-ctx.Done():
		m.forget(id, req)
		return nil, ctx.Err()
	}
}

func (m *Manager) serve(ctx context.Context, conn *websocket.Conn) error {
	m.attach(conn)
	defer m.detach(conn)

	_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
	})

	done := make(chan struct{})
	defer close(done)
	go m.keepAlive(ctx, conn, done)

	if m.handlers.OnConnect != nil {
		go m.handlers.OnConnect(ctx)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		_ = conn.SetReadDeadline(time.Now().Add(m.cfg.ReadTimeout))
		m.dispatch(data)
	}
}

// keepAlive pings on an interval and closes the socket when ctx ends so the
// blocked read returns.
func (m *Manager) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := m.clock.NewTicker(m.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(m.cfg.WriteTimeout))
			_ = conn.Close()
			return
		case <-ticker.Chan():
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(m.cfg.WriteTimeout)); err != nil {
				log.Debug().Err(err).Msg("ping failed")
				_ = conn.Close()
				return
			}
		}
	}
}

func (m *Manager) dispatch(data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Warn().Err(err).Msg("malformed frame")
		return
	}
	if f.IsAck() {
		m.resolve(f.Ack, ackResult{data: f.Data})
		return
	}
	if f.Event == "" {
		log.Debug().RawJSON("frame", data).Msg("frame without event")
		return
	}
	if m.handlers.OnEvent != nil {
		m.handlers.OnEvent(f.Event, f.Data)
	}
}

func (m *Manager) attach(conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conn = conn
}

// detach fails every outstanding request; acknowledgements never survive a
// reconnect.
func (m *Manager) detach(conn *websocket.Conn) {
	m.mu.Lock()
	if m.conn == conn {
		m.conn = nil
	}
	pending := m.pending
	m.pending = make(map[uint64]*pendingRequest)
	m.mu.Unlock()

	_ = conn.Close()
	for _, req := range pending {
		req.ch <- ackResult{err: ErrDisconnected}
	}
}

func (m *Manager) resolve(id uint64, res ackResult) {
	m.mu.Lock()
	req, ok := m.pending[id]
	delete(m.pending, id)
	m.mu.Unlock()
	if !ok {
		log.Debug().Uint64("ack", id).Msg("acknowledgement for unknown request")
		return
	}
	if req.apply != nil {
		req.apply(res.data)
	}
	req.ch <- res
}

// forget drops id only while it still belongs to req.
func (m *Manager) forget(id uint64, req *pendingRequest) {
	m.mu.Lock()
	if m.pending[id] == req {
		delete(m.pending, id)
	}
	m.mu.Unlock()
}

func (m *Manager) disconnected(err error) {
	if m.handlers.OnDisconnect != nil {
		m.handlers.OnDisconnect(err)
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-m.clock.After(d):
		return true
	}
}
