// Package hook runs external executables when the tree changes state.
package hook

import (
	"slices"
	"strings"
	"time"

	"github.com/ayusman/tinsel/internal/scene"
)

// ManifestFile is the manifest name looked up in each hook directory.
const ManifestFile = "hook.json"

// Manifest describes a hook and the transitions it wants.
type Manifest struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Executable  string `json:"executable"`

	// States limits the hook to transitions into these states. Empty means
	// every state.
	States []string `json:"states,omitempty"`
	// Causes limits the hook to transitions whose cause starts with one of
	// these prefixes, e.g. "gesture:" or "button:". Empty means every cause.
	Causes []string `json:"causes,omitempty"`
}

// Matches reports whether the hook wants transition t.
func (m *Manifest) Matches(t scene.Transition) bool {
	if len(m.States) > 0 && !slices.ContainsFunc(m.States, func(s string) bool {
		return strings.EqualFold(s, t.To.String())
	}) {
		return false
	}
	if len(m.Causes) > 0 && !slices.ContainsFunc(m.Causes, func(c string) bool {
		return strings.HasPrefix(t.Cause, c)
	}) {
		return false
	}
	return true
}

// Event is written to a hook's stdin as JSON.
type Event struct {
	Type      string      `json:"type"` // always "transition"
	From      scene.State `json:"from"`
	To        scene.State `json:"to"`
	Cause     string      `json:"cause"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewEvent wraps a transition.
func NewEvent(t scene.Transition, at time.Time) Event {
	return Event{Type: "transition", From: t.From, To: t.To, Cause: t.Cause, Timestamp: at}
}

// Response is read from a hook's stdout. An empty stdout counts as success.
type Response struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Hook is a discovered hook with its manifest and location.
type Hook struct {
	Manifest   Manifest
	Path       string
	Executable string
}
