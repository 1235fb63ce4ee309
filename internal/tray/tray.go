// Package tray provides a system tray menu for the tinsel particle tree.
package tray

import (
	"sync"

	"github.com/getlantern/systray"

	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
)

// Tray represents the system tray application.
type Tray struct {
	onVision func(enabled bool)
	onButton func(b scene.Button)
	onOpenUI func()
	onQuit   func()
	vision   bool
	state    scene.State
	mu       sync.RWMutex

	// Menu items stored for later updates
	menuVision  *systray.MenuItem
	menuTree    *systray.MenuItem
	menuState   *systray.MenuItem
	menuGesture *systray.MenuItem
}

// New creates a new Tray with vision enabled and the tree closed.
func New() *Tray {
	return &Tray{
		vision: true,
		state:  scene.Closed,
	}
}

// OnVision sets the callback called when vision is toggled from the menu.
func (t *Tray) OnVision(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onVision = fn
}

// OnButton sets the callback called when the tree toggle is clicked.
func (t *Tray) OnButton(fn func(b scene.Button)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onButton = fn
}

// OnOpenUI sets the callback called when the web UI menu item is clicked.
func (t *Tray) OnOpenUI(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpenUI = fn
}

// OnQuit sets the callback function to be called when the quit menu item is clicked.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run starts the system tray application. It must be called on the main
// thread and blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the tray loop.
func (t *Tray) Quit() {
	systray.Quit()
}

func (t *Tray) onReady() {
	systray.SetTitle("Tinsel")
	systray.SetTooltip("Tinsel particle tree")

	t.mu.Lock()
	t.menuVision = systray.AddMenuItem(visionTitle(t.vision), "Toggle gesture control")
	t.menuTree = systray.AddMenuItem(treeTitle(t.state), "Gather or scatter the tree")
	systray.AddSeparator()

	t.menuState = systray.AddMenuItem(stateTitle(t.state), "Current tree state")
	t.menuState.Disable()
	t.menuGesture = systray.AddMenuItem(gestureTitle(gesture.None), "Last detected gesture")
	t.menuGesture.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuOpen := systray.AddMenuItem("Open Web UI...", "Open the web UI in a browser")
	systray.AddSeparator()

	menuQuit := systray.AddMenuItem("Quit", "Quit Tinsel")

	// Handle menu item clicks in a separate goroutine
	go func() {
		for {
			select {
			case <-t.menuVision.ClickedCh:
				t.handleVision()
			case <-t.menuTree.ClickedCh:
				t.handleTree()
			case <-menuOpen.ClickedCh:
				t.handleOpenUI()
			case <-menuQuit.ClickedCh:
				t.handleQuit()
				return
			}
		}
	}()
}

func (t *Tray) onExit() {}

// handleVision handles the vision menu item click.
func (t *Tray) handleVision() {
	t.mu.Lock()
	t.vision = !t.vision
	enabled := t.vision
	if t.menuVision != nil {
		t.menuVision.SetTitle(visionTitle(enabled))
	}
	callback := t.onVision
	t.mu.Unlock()

	// Call the callback outside the lock to prevent deadlocks
	if callback != nil {
		callback(enabled)
	}
}

// handleTree handles the tree toggle click.
func (t *Tray) handleTree() {
	t.mu.RLock()
	callback := t.onButton
	t.mu.RUnlock()

	if callback != nil {
		callback(scene.Toggle)
	}
}

func (t *Tray) handleOpenUI() {
	t.mu.RLock()
	callback := t.onOpenUI
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}
}

// handleQuit handles the quit menu item click.
func (t *Tray) handleQuit() {
	t.mu.RLock()
	callback := t.onQuit
	t.mu.RUnlock()

	if callback != nil {
		callback()
	}

	systray.Quit()
}

// SetState updates the state line and the tree toggle label. It has the
// shape of a director listener when wrapped.
func (t *Tray) SetState(s scene.State) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = s
	if t.menuState != nil {
		t.menuState.SetTitle(stateTitle(s))
	}
	if t.menuTree != nil {
		t.menuTree.SetTitle(treeTitle(s))
	}
}

// SetVision reflects a vision change made elsewhere.
func (t *Tray) SetVision(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.vision = enabled
	if t.menuVision != nil {
		t.menuVision.SetTitle(visionTitle(enabled))
	}
}

// SetGesture updates the last gesture display in the menu.
func (t *Tray) SetGesture(g gesture.Gesture) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.menuGesture != nil {
		t.menuGesture.SetTitle(gestureTitle(g))
	}
}

// Vision returns the vision state shown in the menu.
func (t *Tray) Vision() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.vision
}

// State returns the tree state shown in the menu.
func (t *Tray) State() scene.State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func visionTitle(enabled bool) string {
	if enabled {
		return "● Vision on"
	}
	return "○ Vision off"
}

func treeTitle(s scene.State) string {
	if s == scene.Closed {
		return "Explode tree"
	}
	return "Close tree"
}

func stateTitle(s scene.State) string {
	return "Tree: " + s.String()
}

func gestureTitle(g gesture.Gesture) string {
	if g == gesture.None {
		return "Last: none"
	}
	return "Last: " + g.String()
}
