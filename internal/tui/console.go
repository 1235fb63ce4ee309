// Package tui provides a terminal console for driving the tree from the
// keyboard and watching the tracker.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/scene"
)

const refreshInterval = 200 * time.Millisecond

// Controls is the part of the director the console drives.
type Controls interface {
	Press(b scene.Button) scene.State
	SetVision(enabled bool)
	Snapshot() scene.Snapshot
}

type tickMsg time.Time

// Console is a bubbletea model showing the tree state and tracker health.
type Console struct {
	controls Controls
	stats    func() capture.TrackerStats

	snap    scene.Snapshot
	tracker capture.TrackerStats
	last    string
}

// NewConsole creates a console. stats may be nil when no camera runs.
func NewConsole(c Controls, stats func() capture.TrackerStats) Console {
	m := Console{controls: c, stats: stats}
	m.refresh()
	return m
}

// Init implements tea.Model interface.
func (m Console) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Update implements tea.Model interface.
func (m Console) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.refresh()
		return m, tick()
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeySpace:
			m.press(scene.Toggle)
		case tea.KeyRunes:
			switch string(msg.Runes) {
			case " ":
				m.press(scene.Toggle)
			case "c":
				m.press(scene.Close)
			case "e":
				m.press(scene.Explode)
			case "v":
				m.controls.SetVision(!m.controls.Snapshot().Vision)
				m.refresh()
				m.last = fmt.Sprintf("vision %s", onOff(m.snap.Vision))
			case "q":
				return m, tea.Quit
			}
		}
	}
	return m, nil
}

func (m *Console) press(b scene.Button) {
	to := m.controls.Press(b)
	m.refresh()
	m.last = fmt.Sprintf("%s -> %s", b, to)
}

func (m *Console) refresh() {
	m.snap = m.controls.Snapshot()
	if m.stats != nil {
		m.tracker = m.stats()
	}
}

// View implements tea.Model interface.
func (m Console) View() string {
	var b strings.Builder

	b.WriteString("tinsel\n")
	b.WriteString("======\n\n")

	b.WriteString(fmt.Sprintf("State:   %s\n", m.snap.State))
	b.WriteString(fmt.Sprintf("Vision:  %s\n", onOff(m.snap.Vision)))
	b.WriteString(fmt.Sprintf("Gesture: %s\n", m.snap.Gesture))
	if m.snap.HasActive {
		b.WriteString(fmt.Sprintf("Photo:   %d of %d\n", m.snap.ActivePhoto+1, m.snap.PhotoCount))
	} else {
		b.WriteString(fmt.Sprintf("Photos:  %d\n", m.snap.PhotoCount))
	}

	if m.stats != nil {
		camera := "disconnected"
		if m.tracker.Connected {
			camera = "connected"
		}
		b.WriteString(fmt.Sprintf("\nCamera:  %s (%d frames, %d dropped, %d reconnects)\n",
			camera, m.tracker.Frames, m.tracker.Dropped, m.tracker.Reconnects))
	}

	if m.last != "" {
		b.WriteString(fmt.Sprintf("\nLast:    %s\n", m.last))
	}

	b.WriteString("\n(space toggle, c close, e explode, v vision, q quit)")

	return b.String()
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// Run starts the console and blocks until the user quits or ctx is done.
func Run(ctx context.Context, c Controls, stats func() capture.TrackerStats) error {
	program := tea.NewProgram(NewConsole(c, stats), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
