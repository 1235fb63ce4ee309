package scene

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/ayusman/tinsel/internal/gesture"
)

// Transition describes one state change.
type Transition struct {
	From  State  `json:"from"`
	To    State  `json:"to"`
	Cause string `json:"cause"` // "button:<name>" or "gesture:<name>"
}

// Snapshot is an immutable copy of the director's state, taken once per frame.
type Snapshot struct {
	State         State
	Vision        bool
	Gesture       gesture.Gesture // last observed gesture
	ActivePhoto   int
	HasActive     bool
	PhotoCount    int
	PhotosVersion uint64
}

// Director owns the application state and the active photo index.
//
// State changes come from buttons (Press) and from gestures (Observe). The
// active photo is chosen when a PINCH begins while the tree is EXPLODED and
// at least one photo exists, and cleared once the hand stops pinching
// outside ZOOMED. All methods are safe for concurrent use.
type Director struct {
	mu            sync.Mutex
	state         State
	vision        bool
	lastGesture   gesture.Gesture
	active        int
	hasActive     bool
	photos        []string
	photosVersion uint64
	rng           *rand.Rand
	listeners     []func(Transition)
}

// NewDirector creates a Director in the CLOSED state with vision enabled.
// seed drives the choice of zoomed photo.
func NewDirector(seed uint64) *Director {
	return &Director{
		state:  Closed,
		vision: true,
		rng:    rand.New(rand.NewPCG(seed, seed>>1|1)),
	}
}

// OnChange registers fn to be called after every state transition.
// Listeners run outside the director lock, in registration order.
func (d *Director) OnChange(fn func(Transition)) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// State returns the current state.
func (d *Director) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ActivePhoto returns the zoom candidate index, if any.
func (d *Director) ActivePhoto() (int, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.active, d.hasActive
}

// Snapshot returns a copy of the current state.
func (d *Director) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Snapshot{
		State:         d.state,
		Vision:        d.vision,
		Gesture:       d.lastGesture,
		ActivePhoto:   d.active,
		HasActive:     d.hasActive,
		PhotoCount:    len(d.photos),
		PhotosVersion: d.photosVersion,
	}
}

// SetVision enables or disables gesture-driven state changes. Gestures are
// still observed while vision is off.
func (d *Director) SetVision(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vision = enabled
}

// Vision reports whether gesture-driven state changes are enabled.
func (d *Director) Vision() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.vision
}

// Press applies a UI button and returns the resulting state.
func (d *Director) Press(b Button) State {
	d.mu.Lock()
	to := d.state
	switch b {
	case Toggle:
		if d.state == Closed {
			to = Exploded
		} else {
			to = Closed
		}
	case Close:
		to = Closed
	case Explode:
		to = Exploded
	}
	t, changed := d.setLocked(to, "button:"+b.String())
	d.reconcileLocked()
	listeners := d.listeners
	d.mu.Unlock()

	if changed {
		notify(listeners, t)
	}
	return to
}

// Observe applies a gesture result.
//
// With vision enabled FIST closes the tree, OPEN explodes it and PINCH zooms
// an exploded tree. Independently of vision, any PINCH seen while the tree
// is EXPLODED picks a pseudo-random active photo when none is active, so a
// pinch held across a button press still gets one.
func (d *Director) Observe(r gesture.Result) {
	d.mu.Lock()
	d.lastGesture = r.Gesture
	wasExploded := d.state == Exploded

	if r.Gesture == gesture.Pinch && wasExploded && len(d.photos) > 0 && !d.hasActive {
		d.active = d.rng.IntN(len(d.photos))
		d.hasActive = true
	}

	var (
		t       Transition
		changed bool
	)
	if d.vision {
		cause := "gesture:" + r.Gesture.String()
		switch r.Gesture {
		case gesture.Fist:
			t, changed = d.setLocked(Closed, cause)
		case gesture.Open:
			t, changed = d.setLocked(Exploded, cause)
		case gesture.Pinch:
			if wasExploded {
				t, changed = d.setLocked(Zoomed, cause)
			}
		}
	}
	d.reconcileLocked()
	listeners := d.listeners
	d.mu.Unlock()

	if changed {
		notify(listeners, t)
	}
}

// Photos returns a copy of the photo references.
func (d *Director) Photos() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return slices.Clone(d.photos)
}

// SetPhotos replaces the photo list. An active photo follows its reference
// to its new index and is cleared when the reference is gone.
func (d *Director) SetPhotos(refs []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.hasActive && d.active < len(d.photos) {
		if i := slices.Index(refs, d.photos[d.active]); i >= 0 {
			d.active = i
		} else {
			d.hasActive = false
			d.active = 0
		}
	}
	d.photos = slices.Clone(refs)
	d.photosVersion++
	d.reconcileLocked()
}

// AddPhoto appends a photo and returns its index.
func (d *Director) AddPhoto(ref string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.photos = append(d.photos, ref)
	d.photosVersion++
	return len(d.photos) - 1
}

// RemovePhoto deletes the photo at index i. Later photos shift down by one.
func (d *Director) RemovePhoto(i int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i < 0 || i >= len(d.photos) {
		return fmt.Errorf("photo index %d out of range [0,%d)", i, len(d.photos))
	}
	d.photos = slices.Delete(d.photos, i, i+1)
	d.photosVersion++
	if d.hasActive {
		switch {
		case d.active == i:
			d.hasActive = false
		case d.active > i:
			d.active--
		}
	}
	d.reconcileLocked()
	return nil
}

func (d *Director) setLocked(to State, cause string) (Transition, bool) {
	if to == d.state {
		return Transition{}, false
	}
	t := Transition{From: d.state, To: to, Cause: cause}
	d.state = to
	return t, true
}

// reconcileLocked clears the active photo once the hand has stopped pinching
// outside ZOOMED, or when its photo is gone.
func (d *Director) reconcileLocked() {
	if !d.hasActive {
		return
	}
	if d.lastGesture != gesture.Pinch && d.state != Zoomed {
		d.hasActive = false
	}
	if d.active >= len(d.photos) {
		d.hasActive = false
	}
	if !d.hasActive {
		d.active = 0
	}
}

func notify(listeners []func(Transition), t Transition) {
	for _, fn := range listeners {
		fn(t)
	}
}
