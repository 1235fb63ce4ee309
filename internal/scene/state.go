// Package scene holds the particle tree model and the director that owns the
// tree's macro state.
package scene

import (
	"fmt"
	"strings"
)

// State is the macro display mode of the tree.
type State int

const (
	// Closed gathers the particles into the tree shape.
	Closed State = iota
	// Exploded scatters the particles across the scene.
	Exploded
	// Zoomed keeps the particles scattered and brings one photo forward.
	Zoomed
)

var stateNames = [...]string{
	Closed:   "CLOSED",
	Exploded: "EXPLODED",
	Zoomed:   "ZOOMED",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// ParseState parses a state name, case-insensitively.
func ParseState(s string) (State, error) {
	for i, name := range stateNames {
		if strings.EqualFold(s, name) {
			return State(i), nil
		}
	}
	return Closed, fmt.Errorf("unknown state %q", s)
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	parsed, err := ParseState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Button is a discrete UI action that changes the state.
type Button int

const (
	// Toggle switches CLOSED to EXPLODED and anything else back to CLOSED.
	Toggle Button = iota
	// Close gathers the tree.
	Close
	// Explode scatters the tree.
	Explode
)

var buttonNames = [...]string{
	Toggle:  "toggle",
	Close:   "close",
	Explode: "explode",
}

func (b Button) String() string {
	if b < 0 || int(b) >= len(buttonNames) {
		return fmt.Sprintf("Button(%d)", int(b))
	}
	return buttonNames[b]
}

// ParseButton parses a button name, case-insensitively.
func ParseButton(s string) (Button, error) {
	for i, name := range buttonNames {
		if strings.EqualFold(s, name) {
			return Button(i), nil
		}
	}
	return Toggle, fmt.Errorf("unknown button %q", s)
}
