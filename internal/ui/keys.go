package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines all keyboard bindings for the application.
type keyMap struct {
	// Global
	Quit       key.Binding
	Help       key.Binding
	CycleTheme key.Binding
	Central    key.Binding
	Station    key.Binding
	Sound      key.Binding
	Logs       key.Binding

	// Central controls
	Create key.Binding
	Update key.Binding
	Pause  key.Binding
	Reset  key.Binding
	Skip   key.Binding
	Remove key.Binding
	Delete key.Binding
	Up     key.Binding
	Down   key.Binding

	// Station controls
	Join  key.Binding
	Ready key.Binding
	Leave key.Binding

	// Forms
	Confirm   key.Binding
	Cancel    key.Binding
	NextField key.Binding
	PrevField key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() keyMap {
	return keyMap{
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "q"),
			key.WithHelp("q", "Quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "Toggle help"),
		),
		CycleTheme: key.NewBinding(
			key.WithKeys("T"),
			key.WithHelp("T", "Cycle theme"),
		),
		Central: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "Central view"),
		),
		Station: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", "Station view"),
		),
		Sound: key.NewBinding(
			key.WithKeys("b"),
			key.WithHelp("b", "Toggle sound"),
		),
		Logs: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "Recent logs"),
		),

		Create: key.NewBinding(
			key.WithKeys("n"),
			key.WithHelp("n", "New room"),
		),
		Update: key.NewBinding(
			key.WithKeys("u"),
			key.WithHelp("u", "Edit config"),
		),
		Pause: key.NewBinding(
			key.WithKeys("p", " "),
			key.WithHelp("p", "Pause/resume"),
		),
		Reset: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "Reset room"),
		),
		Skip: key.NewBinding(
			key.WithKeys("S"),
			key.WithHelp("S", "Skip round"),
		),
		Remove: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "Remove station"),
		),
		Delete: key.NewBinding(
			key.WithKeys("D"),
			key.WithHelp("D", "Delete room"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/up", "Move up"),
		),
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/down", "Move down"),
		),

		Join: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "Join room"),
		),
		Ready: key.NewBinding(
			key.WithKeys("y"),
			key.WithHelp("y", "Toggle ready"),
		),
		Leave: key.NewBinding(
			key.WithKeys("L"),
			key.WithHelp("L", "Leave room"),
		),

		Confirm: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "Confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "Cancel"),
		),
		NextField: key.NewBinding(
			key.WithKeys("tab", "down"),
			key.WithHelp("tab", "Next field"),
		),
		PrevField: key.NewBinding(
			key.WithKeys("shift+tab", "up"),
			key.WithHelp("shift+tab", "Previous field"),
		),
	}
}

// forRole enables only the bindings that make sense for the active view.
// Central controls stay disabled until this device owns the room.
func (k *keyMap) forRole(central, owner, hasRoom bool) {
	k.Create.SetEnabled(central)
	for _, b := range []*key.Binding{&k.Update, &k.Pause, &k.Reset, &k.Skip, &k.Remove, &k.Delete, &k.Up, &k.Down} {
		b.SetEnabled(central && owner)
	}

	k.Join.SetEnabled(!central)
	k.Ready.SetEnabled(!central && hasRoom)
	k.Leave.SetEnabled(!central && hasRoom)
}

// ShortHelp returns key bindings for the footer.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Create, k.Pause, k.Reset, k.Skip, k.Delete,
		k.Join, k.Ready, k.Leave,
		k.Help, k.Quit,
	}
}

// FullHelp returns key bindings for the full help view.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Create, k.Update, k.Pause, k.Reset, k.Skip},
		{k.Up, k.Down, k.Remove, k.Delete},
		{k.Join, k.Ready, k.Leave},
		{k.Central, k.Station, k.Sound, k.Logs, k.CycleTheme, k.Help, k.Quit},
	}
}
