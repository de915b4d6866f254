package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeabsfamily-wq/stimer/internal/identity"
)

type formKind int

const (
	formCreate formKind = iota
	formUpdate
	formJoin
)

func (k formKind) title() string {
	switch k {
	case formCreate:
		return "New room"
	case formUpdate:
		return "Room config"
	default:
		return "Join room"
	}
}

// form is a small modal of labelled text inputs.
type form struct {
	kind   formKind
	labels []string
	inputs []textinput.Model
	focus  int
	err    string
}

// formValues holds a parsed form submission.
type formValues struct {
	stationsCount    int
	roundDurationSec int
	code             string
	stationID        int
}

func newInput(placeholder, value string, limit int) textinput.Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = placeholder
	ti.CharLimit = limit
	ti.SetValue(value)
	return ti
}

func newConfigForm(kind formKind, stations, seconds int) *form {
	f := &form{
		kind:   kind,
		labels: []string{"Stations", "Round (seconds)"},
		inputs: []textinput.Model{
			newInput("4", intValue(stations), 3),
			newInput("300", intValue(seconds), 5),
		},
	}
	f.inputs[0].Focus()
	return f
}

func newJoinForm(code string, stationID int) *form {
	f := &form{
		kind:   formJoin,
		labels: []string{"Room code", "Station (blank for any)"},
		inputs: []textinput.Model{
			newInput("ABC123", code, 12),
			newInput("", intValue(stationID), 3),
		},
	}
	f.inputs[0].Focus()
	return f
}

func intValue(v int) string {
	if v <= 0 {
		return ""
	}
	return strconv.Itoa(v)
}

// update routes a key to the focused input. done is true when the form was
// submitted with valid values; cancelled when it was dismissed.
func (f *form) update(msg tea.KeyMsg, keys keyMap) (vals formValues, done, cancelled bool, cmd tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Cancel):
		return formValues{}, false, true, nil
	case key.Matches(msg, keys.Confirm):
		v, err := f.values()
		if err != nil {
			f.err = err.Error()
			return formValues{}, false, false, nil
		}
		return v, true, false, nil
	case key.Matches(msg, keys.NextField):
		return formValues{}, false, false, f.move(1)
	case key.Matches(msg, keys.PrevField):
		return formValues{}, false, false, f.move(-1)
	}

	f.err = ""
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return formValues{}, false, false, cmd
}

func (f *form) move(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *form) values() (formValues, error) {
	if f.kind == formJoin {
		code := identity.NormalizeCode(f.inputs[0].Value())
		if code == "" {
			return formValues{}, errors.New("room code is required")
		}
		id, err := optionalInt(f.inputs[1].Value())
		if err != nil {
			return formValues{}, fmt.Errorf("station: %w", err)
		}
		return formValues{code: code, stationID: id}, nil
	}

	stations, err := positiveInt(f.inputs[0].Value())
	if err != nil {
		return formValues{}, fmt.Errorf("stations: %w", err)
	}
	seconds, err := positiveInt(f.inputs[1].Value())
	if err != nil {
		return formValues{}, fmt.Errorf("round: %w", err)
	}
	return formValues{stationsCount: stations, roundDurationSec: seconds}, nil
}

func positiveInt(raw string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || v <= 0 {
		return 0, errors.New("must be a positive number")
	}
	return v, nil
}

func optionalInt(raw string) (int, error) {
	if strings.TrimSpace(raw) == "" {
		return 0, nil
	}
	return positiveInt(raw)
}
