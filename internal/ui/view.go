package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeabsfamily-wq/stimer/internal/notify"
	"github.com/jeabsfamily-wq/stimer/internal/room"
	"github.com/jeabsfamily-wq/stimer/internal/state"
)

// formatClock renders seconds as mm:ss. Negative values show as 00:00.
func formatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// shortID trims a client id to something that fits a table cell.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}

func cueLabel(sig notify.Signal) string {
	switch sig {
	case notify.Start:
		return "GO"
	case notify.Warn60:
		return "1 minute left"
	case notify.Warn30:
		return "30 seconds left"
	case notify.TimeUp:
		return "Time's up"
	default:
		return ""
	}
}

func (m Model) renderMain() string {
	header := m.renderHeader()
	footer := m.renderFooter()

	var body string
	if m.isCentral() {
		body = m.renderCentral()
	} else {
		body = m.renderStation()
	}

	bodyHeight := m.height - lipgloss.Height(header) - lipgloss.Height(footer)
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	body = lipgloss.Place(m.width, bodyHeight, lipgloss.Center, lipgloss.Center, body)

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// renderHeader renders the status bar: connection, role and room.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	sep := styles.Text.Render("  ")

	parts := []string{
		styles.Logo.Render("stimer"),
		m.renderConnection(styles),
	}

	role := "STATION"
	if m.isCentral() {
		role = "CENTRAL"
	}
	parts = append(parts, styles.AccentText.Render(role))

	if code := m.snapshot.Room.Code; code != "" {
		parts = append(parts,
			styles.MutedText.Render("room")+styles.Text.Render(" ")+styles.Text.Bold(true).Render(code))
	}
	if !m.prefs.Sound {
		parts = append(parts, styles.FaintText.Render("muted"))
	}

	return styles.Header.Width(m.width).Render(strings.Join(parts, sep))
}

func (m Model) renderConnection(styles Styles) string {
	snap := m.snapshot
	switch {
	case snap.Connected:
		return styles.SuccessText.Render("Connected")
	case snap.IsOffline():
		msg := "Offline"
		if snap.LastError != nil {
			msg += ": " + snap.LastError.Error()
		}
		return styles.DangerText.Render(msg) + styles.Text.Render(" ") +
			styles.MutedText.Render(fmt.Sprintf("(%d attempts)", snap.ConsecutiveFailures))
	case snap.LastError != nil:
		return styles.WarningText.Render("Reconnecting...")
	default:
		return styles.WarningText.Render("Connecting...")
	}
}

func (m Model) renderFooter() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	line := m.help.ShortHelpView(m.keys.ShortHelp())
	if m.status != "" {
		st := styles.MutedText
		if m.statusErr {
			st = styles.DangerText
		}
		line = st.Render(m.status) + styles.Text.Render("  ") + line
	}
	return styles.Footer.Width(m.width).Render(line)
}

func (m Model) renderClock(snap state.Snapshot) string {
	styles := m.theme.Styles()
	left := snap.DisplayTimeLeft()
	clock := styles.Clock
	switch {
	case snap.Room.State == room.StateRunning && left <= 30:
		clock = clock.Foreground(lipgloss.Color(m.theme.Danger))
	case snap.Room.State == room.StateRunning && left <= 60:
		clock = clock.Foreground(lipgloss.Color(m.theme.Warning))
	}
	return clock.Render(formatClock(left))
}

func (m Model) renderState(st room.State) string {
	if st == "" {
		return ""
	}
	return m.theme.Styles().StateStyle(st).Render(string(st))
}

func (m Model) renderCue() string {
	label := cueLabel(m.cue)
	if label == "" {
		return ""
	}
	styles := m.theme.Styles()
	if m.cue == notify.TimeUp {
		return styles.DangerText.Render(label)
	}
	return styles.WarningText.Render(label)
}

func (m Model) renderCentral() string {
	styles := m.theme.Styles()
	r := m.snapshot.Room

	if r.Empty() {
		return styles.MutedText.Render("No room yet. Press n to create one.")
	}
	if !m.ownsRoom() {
		return lipgloss.JoinVertical(lipgloss.Center,
			styles.Text.Bold(true).Render("Room "+r.Code),
			styles.MutedText.Render("This room is controlled by another device."),
			styles.FaintText.Render("Press s to use this device as a station."),
		)
	}

	summary := fmt.Sprintf("%d stations  %s per round  %d/%d ready",
		r.StationsCount, formatClock(r.RoundDurationSec), r.ReadyCount(), len(r.Stations))

	lines := []string{
		styles.Text.Bold(true).Render("Room "+r.Code) + "  " + m.renderState(r.State),
		m.renderClock(m.snapshot),
		styles.MutedText.Render(summary),
	}
	if cue := m.renderCue(); cue != "" {
		lines = append(lines, cue)
	}
	lines = append(lines, "", m.renderStations(r))

	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m Model) renderStations(r room.Snapshot) string {
	styles := m.theme.Styles()
	if len(r.Stations) == 0 {
		return styles.FaintText.Render("No stations")
	}

	rows := make([]string, 0, len(r.Stations))
	for i, st := range r.Stations {
		owner := styles.FaintText.Render("open")
		status := ""
		if !st.Vacant() {
			owner = styles.Text.Render(shortID(st.OwnerClientID))
			if st.Ready {
				status = styles.SuccessText.Render("ready")
			} else {
				status = styles.WarningText.Render("not ready")
			}
			if !st.Connected {
				status += " " + styles.DangerText.Render("offline")
			}
		}
		row := fmt.Sprintf("#%-3d %-10s %s", st.ID, owner, status)
		if i == m.selected {
			row = styles.Selected.Render(row)
		}
		rows = append(rows, row)
	}
	return styles.Panel.Render(strings.Join(rows, "\n"))
}

func (m Model) renderStation() string {
	styles := m.theme.Styles()
	r := m.snapshot.Room

	st, ok := r.StationOwnedBy(m.clientID)
	if !ok {
		msg := "Not joined. Press e to join a room."
		if !r.Empty() {
			msg = "Not joined to room " + r.Code + ". Press e to join."
		}
		return styles.MutedText.Render(msg)
	}

	ready := styles.WarningText.Render("Not ready (press y)")
	if st.Ready {
		ready = styles.SuccessText.Render("Ready")
	}

	lines := []string{
		styles.Text.Bold(true).Render(fmt.Sprintf("Room %s  Station %d", r.Code, st.ID)) + "  " + m.renderState(r.State),
		m.renderClock(m.snapshot),
		ready,
	}
	if cue := m.renderCue(); cue != "" {
		lines = append(lines, cue)
	}
	return lipgloss.JoinVertical(lipgloss.Center, lines...)
}

func (m Model) renderForm() string {
	f := m.form
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render(f.kind.title()))
	b.WriteString("\n\n")
	for i, in := range f.inputs {
		label := styles.MutedText
		if i == f.focus {
			label = styles.FocusField
		}
		b.WriteString(label.Render(f.labels[i]))
		b.WriteString("\n")
		b.WriteString(in.View())
		b.WriteString("\n\n")
	}
	if f.err != "" {
		b.WriteString(styles.DangerText.Render(f.err))
		b.WriteString("\n")
	}
	b.WriteString(styles.FaintText.Render("enter confirm  tab next  esc cancel"))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, styles.Modal.Render(b.String()))
}
