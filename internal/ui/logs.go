package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeabsfamily-wq/stimer/internal/logtail"
)

const logOverlayLines = 200

type logLinesMsg struct {
	entries []logtail.Entry
	err     error
}

func readLogsCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, logOverlayLines)
		if err != nil {
			return logLinesMsg{err: err}
		}
		return logLinesMsg{entries: logtail.ParseLines(lines)}
	}
}

// renderLogs shows the newest entries that fit the screen.
func (m Model) renderLogs() string {
	styles := m.theme.Styles()

	visible := m.height - 6
	if visible < 1 {
		visible = 1
	}
	entries := m.logs
	if len(entries) > visible {
		entries = entries[len(entries)-visible:]
	}

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Recent logs"))
	b.WriteString("  ")
	b.WriteString(styles.FaintText.Render(m.logPath))
	b.WriteString("\n\n")
	if len(entries) == 0 {
		b.WriteString(styles.MutedText.Render("No log entries yet"))
	}
	for i, e := range entries {
		b.WriteString(m.levelStyle(e.Level).Render(e.String()))
		if i < len(entries)-1 {
			b.WriteString("\n")
		}
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Border)).
		Padding(0, 1).
		Width(m.width - 2).
		MaxHeight(m.height).
		Render(b.String())
}

func (m Model) levelStyle(level string) lipgloss.Style {
	styles := m.theme.Styles()
	switch level {
	case "error", "fatal", "panic":
		return styles.DangerText
	case "warn":
		return styles.WarningText
	case "debug", "trace":
		return styles.FaintText
	default:
		return styles.Text
	}
}
