package ui

import (
	"testing"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeabsfamily-wq/stimer/internal/room"
)

func TestThemeNames(t *testing.T) {
	names := ThemeNames()
	if len(names) != 3 {
		t.Fatalf("ThemeNames() returned %d names, want 3", len(names))
	}
	if names[0] != "Nightfox" || names[1] != "Kanagawa" || names[2] != "Slate" {
		t.Fatalf("ThemeNames() = %v, want [Nightfox Kanagawa Slate]", names)
	}
}

func TestNextTheme(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Nightfox", "Kanagawa"},
		{"Kanagawa", "Slate"},
		{"Slate", "Nightfox"},
		{"Unknown", "Nightfox"},
	}
	for _, tt := range tests {
		if got := NextTheme(tt.in); got != tt.want {
			t.Fatalf("NextTheme(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGetTheme_FallsBack(t *testing.T) {
	if got := GetTheme("Dracula").Name; got != "Nightfox" {
		t.Fatalf("GetTheme(Dracula).Name = %q, want Nightfox", got)
	}
}

func TestThemes_ColorEveryRoomState(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		for _, st := range []room.State{room.StateWaiting, room.StateRunning, room.StateEnded} {
			if th.StateColors[st] == "" {
				t.Fatalf("theme %s has no color for %s", name, st)
			}
		}
	}
}

func TestStyles_UseSurfaceAndFocusColors(t *testing.T) {
	for _, name := range ThemeNames() {
		th := GetTheme(name)
		st := th.Styles()
		if got := st.Panel.GetBorderTopForeground(); got != lipgloss.Color(th.BorderMuted) {
			t.Fatalf("%s Panel border = %v, want BorderMuted %s", name, got, th.BorderMuted)
		}
		if got := st.Modal.GetBackground(); got != lipgloss.Color(th.SurfaceAlt) {
			t.Fatalf("%s Modal background = %v, want SurfaceAlt %s", name, got, th.SurfaceAlt)
		}
		if got := st.FocusField.GetBackground(); got != lipgloss.Color(th.FocusBg) {
			t.Fatalf("%s FocusField background = %v, want FocusBg %s", name, got, th.FocusBg)
		}
		// Surface backgrounds must not flatten the focus highlight.
		if got := st.WithBackground(th.SurfaceAlt).FocusField.GetBackground(); got != lipgloss.Color(th.FocusBg) {
			t.Fatalf("%s FocusField background after WithBackground = %v, want %s", name, got, th.FocusBg)
		}
	}
}
