package ui

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog/log"

	"github.com/jeabsfamily-wq/stimer/internal/actions"
	"github.com/jeabsfamily-wq/stimer/internal/logtail"
	"github.com/jeabsfamily-wq/stimer/internal/notify"
	"github.com/jeabsfamily-wq/stimer/internal/prefs"
	"github.com/jeabsfamily-wq/stimer/internal/room"
	"github.com/jeabsfamily-wq/stimer/internal/state"
)

// SnapshotSource provides the current client view.
type SnapshotSource interface {
	Snapshot() state.Snapshot
}

// Actions is the part of the dispatcher the UI drives.
type Actions interface {
	CreateRoom(ctx context.Context, stationsCount, roundDurationSec int) (room.Snapshot, error)
	UpdateConfig(ctx context.Context, stationsCount, roundDurationSec int) error
	DeleteRoom(ctx context.Context, force bool) error
	TogglePause(ctx context.Context) error
	ResetRoom(ctx context.Context) error
	SkipRound(ctx context.Context) error
	RemoveStation(ctx context.Context, stationID int) error
	Join(ctx context.Context, code string, stationID int) (room.Snapshot, error)
	SetReady(ctx context.Context, ready bool) error
	Leave(ctx context.Context) error
}

// Options configures the UI.
type Options struct {
	Context      context.Context
	Store        SnapshotSource
	Actions      Actions
	Signals      <-chan notify.Signal
	ClientID     string
	Prefs        prefs.Prefs
	PrefsPath    string
	RefreshEvery time.Duration
	LogPath      string    // shown in the log overlay; empty disables it
	Bell         io.Writer // receives the terminal bell; defaults to stderr
}

// Model is the root application state for Bubble Tea.
type Model struct {
	// Configuration
	ctx          context.Context
	store        SnapshotSource
	actions      Actions
	signals      <-chan notify.Signal
	clientID     string
	prefsPath    string
	refreshEvery time.Duration
	logPath      string
	bell         io.Writer

	// UI state
	theme    Theme
	prefs    prefs.Prefs
	keys     keyMap
	help     help.Model
	width    int
	height   int
	ready    bool
	showHelp bool
	showLogs bool
	form     *form
	logs     []logtail.Entry

	// Data state
	snapshot state.Snapshot

	// Central state
	selected      int
	confirmDelete bool

	// Footer status
	status    string
	statusErr bool
	cue       notify.Signal
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	refresh := opts.RefreshEvery
	if refresh <= 0 {
		refresh = time.Second
	}

	p := opts.Prefs
	if p.Theme == "" {
		p = prefs.Default()
	}
	p.Role = prefs.NormalizeRole(p.Role)

	bell := opts.Bell
	if bell == nil {
		bell = os.Stderr
	}

	m := Model{
		ctx:          ctx,
		store:        opts.Store,
		actions:      opts.Actions,
		signals:      opts.Signals,
		clientID:     opts.ClientID,
		prefsPath:    opts.PrefsPath,
		refreshEvery: refresh,
		logPath:      opts.LogPath,
		bell:         bell,
		theme:        GetTheme(p.Theme),
		prefs:        p,
		keys:         DefaultKeyMap(),
		help:         help.New(),
	}
	m.syncKeys()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tickCmd(m.refreshEvery)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	if m.signals != nil {
		cmds = append(cmds, waitSignalCmd(m.signals))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		cmds := []tea.Cmd{tickCmd(m.refreshEvery)}
		if m.store != nil {
			cmds = append(cmds, fetchSnapshotCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case snapshotMsg:
		m.snapshot = state.Snapshot(msg)
		m.clampSelection()
		m.syncKeys()
		return m, nil

	case signalMsg:
		return m.handleSignal(notify.Signal(msg))

	case logLinesMsg:
		if msg.err != nil {
			m.setStatus("read log: "+msg.err.Error(), true)
			return m, nil
		}
		m.logs = msg.entries
		return m, nil

	case actionResultMsg:
		m.setResult(msg)
		if m.store != nil {
			return m, fetchSnapshotCmd(m.store)
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.showLogs {
		return m.renderLogs()
	}
	if m.form != nil {
		return m.renderForm()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}
	if m.showLogs {
		m.showLogs = false
		return m, nil
	}
	if m.form != nil {
		return m.handleFormKey(msg)
	}

	confirming := m.confirmDelete
	m.confirmDelete = false

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.Logs):
		if m.logPath == "" {
			return m, nil
		}
		m.showLogs = true
		return m, readLogsCmd(m.logPath)

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.prefs.Theme = m.theme.Name
		m.savePrefs()
		return m, nil

	case key.Matches(msg, m.keys.Central):
		m.setRole(prefs.RoleCentral)
		return m, nil

	case key.Matches(msg, m.keys.Station):
		m.setRole(prefs.RoleStation)
		return m, nil

	case key.Matches(msg, m.keys.Sound):
		m.prefs.Sound = !m.prefs.Sound
		m.savePrefs()
		if m.prefs.Sound {
			m.setStatus("Sound on", false)
		} else {
			m.setStatus("Sound off", false)
		}
		return m, nil
	}

	if m.isCentral() {
		return m.handleCentralKey(msg, confirming)
	}
	return m.handleStationKey(msg)
}

func (m Model) handleCentralKey(msg tea.KeyMsg, confirming bool) (tea.Model, tea.Cmd) {
	r := m.snapshot.Room

	switch {
	case key.Matches(msg, m.keys.Create):
		m.form = newConfigForm(formCreate, 4, 300)
		return m, nil

	case key.Matches(msg, m.keys.Update):
		m.form = newConfigForm(formUpdate, r.StationsCount, r.RoundDurationSec)
		return m, nil

	case key.Matches(msg, m.keys.Pause):
		return m, m.runAction("toggle pause", func(ctx context.Context) error {
			return m.actions.TogglePause(ctx)
		})

	case key.Matches(msg, m.keys.Reset):
		return m, m.runAction("reset", func(ctx context.Context) error {
			return m.actions.ResetRoom(ctx)
		})

	case key.Matches(msg, m.keys.Skip):
		return m, m.runAction("skip", func(ctx context.Context) error {
			return m.actions.SkipRound(ctx)
		})

	case key.Matches(msg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.selected < len(r.Stations)-1 {
			m.selected++
		}
		return m, nil

	case key.Matches(msg, m.keys.Remove):
		if m.selected >= len(r.Stations) {
			return m, nil
		}
		id := r.Stations[m.selected].ID
		return m, m.runAction("remove station", func(ctx context.Context) error {
			return m.actions.RemoveStation(ctx, id)
		})

	case key.Matches(msg, m.keys.Delete):
		if !confirming {
			m.confirmDelete = true
			m.setStatus("Press D again to delete room "+r.Code, true)
			return m, nil
		}
		force := r.State == room.StateRunning
		return m, m.runAction("delete room", func(ctx context.Context) error {
			return m.actions.DeleteRoom(ctx, force)
		})
	}

	return m, nil
}

func (m Model) handleStationKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Join):
		code := m.snapshot.Room.Code
		id := 0
		if st, ok := m.snapshot.Room.StationOwnedBy(m.clientID); ok {
			id = st.ID
		}
		m.form = newJoinForm(code, id)
		return m, nil

	case key.Matches(msg, m.keys.Ready):
		st, ok := m.snapshot.Room.StationOwnedBy(m.clientID)
		if !ok {
			return m, nil
		}
		ready := !st.Ready
		return m, m.runAction("ready", func(ctx context.Context) error {
			return m.actions.SetReady(ctx, ready)
		})

	case key.Matches(msg, m.keys.Leave):
		return m, m.runAction("leave", func(ctx context.Context) error {
			return m.actions.Leave(ctx)
		})
	}

	return m, nil
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	vals, done, cancelled, cmd := m.form.update(msg, m.keys)
	if cancelled {
		m.form = nil
		return m, nil
	}
	if !done {
		return m, cmd
	}

	kind := m.form.kind
	m.form = nil
	switch kind {
	case formCreate:
		return m, m.runAction("create room", func(ctx context.Context) error {
			_, err := m.actions.CreateRoom(ctx, vals.stationsCount, vals.roundDurationSec)
			return err
		})
	case formUpdate:
		return m, m.runAction("update config", func(ctx context.Context) error {
			return m.actions.UpdateConfig(ctx, vals.stationsCount, vals.roundDurationSec)
		})
	default:
		return m, m.runAction("join "+vals.code, func(ctx context.Context) error {
			_, err := m.actions.Join(ctx, vals.code, vals.stationID)
			return err
		})
	}
}

func (m Model) handleSignal(sig notify.Signal) (tea.Model, tea.Cmd) {
	m.cue = sig
	if m.prefs.Sound {
		n := 1
		if sig == notify.TimeUp {
			n = 3
		}
		for i := 0; i < n; i++ {
			_, _ = io.WriteString(m.bell, "\a")
		}
	}
	cmds := []tea.Cmd{waitSignalCmd(m.signals)}
	if m.store != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.store))
	}
	return m, tea.Batch(cmds...)
}

// isCentral reports whether the central view is active.
func (m Model) isCentral() bool {
	return m.prefs.Role == prefs.RoleCentral
}

// ownsRoom reports whether this device created the cached room.
func (m Model) ownsRoom() bool {
	return m.snapshot.Room.IsCentral(m.clientID)
}

func (m *Model) setRole(role string) {
	if m.prefs.Role == role {
		return
	}
	m.prefs.Role = role
	m.syncKeys()
	m.savePrefs()
}

func (m *Model) syncKeys() {
	m.keys.forRole(m.isCentral(), m.ownsRoom(), m.snapshot.Joined(m.clientID))
}

func (m *Model) clampSelection() {
	n := len(m.snapshot.Room.Stations)
	if m.selected >= n {
		m.selected = n - 1
	}
	if m.selected < 0 {
		m.selected = 0
	}
}

func (m *Model) savePrefs() {
	if err := prefs.Save(m.prefsPath, m.prefs); err != nil {
		log.Warn().Err(err).Msg("save preferences")
		m.setStatus("Could not save preferences", true)
	}
}

func (m *Model) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *Model) setResult(msg actionResultMsg) {
	if msg.err == nil {
		m.setStatus(msg.action+" ok", false)
		return
	}
	var rej *actions.RejectedError
	switch {
	case errors.As(msg.err, &rej):
		m.setStatus(rej.Error(), true)
	case errors.Is(msg.err, actions.ErrNoRoom):
		m.setStatus(msg.action+": no room", true)
	default:
		m.setStatus(msg.action+" failed: "+msg.err.Error(), true)
	}
	log.Warn().Err(msg.err).Str("action", msg.action).Msg("action failed")
}

// runAction dispatches fn off the UI goroutine. The call has no deadline of
// its own; a dropped connection fails it.
func (m Model) runAction(name string, fn func(ctx context.Context) error) tea.Cmd {
	if m.actions == nil {
		return nil
	}
	ctx := m.ctx
	return func() tea.Msg {
		return actionResultMsg{action: name, err: fn(ctx)}
	}
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

type signalMsg notify.Signal

type actionResultMsg struct {
	action string
	err    error
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store SnapshotSource) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// waitSignalCmd blocks until the next cue. A closed channel ends the loop.
func waitSignalCmd(ch <-chan notify.Signal) tea.Cmd {
	return func() tea.Msg {
		sig, ok := <-ch
		if !ok {
			return nil
		}
		return signalMsg(sig)
	}
}

// Run starts the Bubble Tea program and stops it when the context ends.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
