// Package animation drives the particle tree, photo planes and camera toward
// the targets implied by the current state and gesture, one frame at a time.
package animation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
)

// Logf is the package diagnostic logger. Tests may replace it.
var Logf = log.Printf

var (
	// ErrRenderSurfaceLost is returned by a Renderer whose output is gone
	// for good. The driver stops scheduling frames when it sees it.
	ErrRenderSurfaceLost = errors.New("render surface lost")

	// ErrAlreadyRunning is returned by Start on a running driver.
	ErrAlreadyRunning = errors.New("driver already running")
)

// Frame is what a Renderer receives once per frame. The driver reuses the
// same Frame and Scene between frames; renderers must not retain them.
type Frame struct {
	Seq     uint64
	Time    float64 // seconds since Start
	Scene   *scene.Scene
	State   scene.State
	Gesture gesture.Result

	ActivePhoto int
	HasActive   bool
}

// Renderer presents a frame.
type Renderer interface {
	Render(ctx context.Context, f *Frame) error
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, f *Frame) error

// Render calls fn(ctx, f).
func (fn RendererFunc) Render(ctx context.Context, f *Frame) error {
	return fn(ctx, f)
}

// Driver advances a scene once per frame.
//
// All scene mutation happens inside Step, which is serialized. Gesture
// results arrive through a Cell; each new result is forwarded to the
// director before the frame is computed.
type Driver struct {
	config   Config
	scene    *scene.Scene
	director *scene.Director
	gestures *Cell[gesture.Result]
	renderer Renderer

	active atomic.Bool

	runMu   sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	err     error
	onFault func(error)
	started time.Time

	stepMu        sync.Mutex
	frame         Frame
	seenGesture   uint64
	photosVersion uint64
	latest        gesture.Result
}

// NewDriver creates a driver. renderer may be nil for a headless driver.
func NewDriver(config Config, s *scene.Scene, director *scene.Director, gestures *Cell[gesture.Result], renderer Renderer) *Driver {
	if gestures == nil {
		gestures = &Cell[gesture.Result]{}
	}
	d := &Driver{
		config:   config,
		scene:    s,
		director: director,
		gestures: gestures,
		renderer: renderer,
		latest:   gesture.NoHand(),
		done:     make(chan struct{}),
	}
	d.frame.Scene = s
	// A driver that never started counts as finished.
	close(d.done)
	return d
}

// Gestures returns the cell the driver reads gesture results from.
func (d *Driver) Gestures() *Cell[gesture.Result] {
	return d.gestures
}

// OnFault registers fn to be called once when the loop stops because the
// render surface was lost. fn runs on the loop goroutine and must not call
// Stop.
func (d *Driver) OnFault(fn func(error)) {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	d.onFault = fn
}

// Start begins scheduling frames at the configured frame rate. The loop runs
// until ctx is cancelled, Stop is called or the render surface is lost.
func (d *Driver) Start(ctx context.Context) error {
	d.runMu.Lock()
	defer d.runMu.Unlock()

	if d.active.Load() {
		return ErrAlreadyRunning
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.done = make(chan struct{})
	d.err = nil
	d.started = time.Now()
	d.active.Store(true)

	go d.loop(d.ctx, d.done)
	return nil
}

// Stop halts the loop and waits for it to exit. Frame callbacks that arrive
// afterwards are no-ops. Stop is idempotent.
func (d *Driver) Stop() {
	d.runMu.Lock()
	d.active.Store(false)
	cancel := d.cancel
	done := d.done
	d.runMu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed when the loop has exited.
func (d *Driver) Done() <-chan struct{} {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.done
}

// Err returns the error that stopped the loop, if any.
func (d *Driver) Err() error {
	d.runMu.Lock()
	defer d.runMu.Unlock()
	return d.err
}

// Running reports whether frames are being scheduled.
func (d *Driver) Running() bool {
	return d.active.Load()
}

func (d *Driver) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(d.config.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.active.Store(false)
			return
		case <-ticker.C:
			d.Frame()
			if !d.active.Load() {
				return
			}
		}
	}
}

// Frame is the scheduled per-frame callback. It steps the scene at the
// current wall time and renders it. It does nothing once the driver has been
// stopped.
func (d *Driver) Frame() {
	if !d.active.Load() {
		return
	}

	d.runMu.Lock()
	ctx := d.ctx
	t := time.Since(d.started).Seconds()
	d.runMu.Unlock()

	err := d.step(ctx, t)
	if err == nil {
		return
	}
	if errors.Is(err, ErrRenderSurfaceLost) {
		d.fault(err)
		return
	}
	Logf("animation: frame error: %v", err)
}

func (d *Driver) fault(err error) {
	d.runMu.Lock()
	if !d.active.Load() {
		d.runMu.Unlock()
		return
	}
	d.active.Store(false)
	d.err = err
	fn := d.onFault
	d.runMu.Unlock()

	Logf("animation: stopping: %v", err)
	if fn != nil {
		fn(err)
	}
}

// Step advances the scene to time t (in seconds) and renders one frame.
// It is the deterministic core of Frame and may be called directly without
// Start.
func (d *Driver) Step(t float64) error {
	return d.step(context.Background(), t)
}

func (d *Driver) step(ctx context.Context, t float64) (err error) {
	d.stepMu.Lock()
	defer d.stepMu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("frame panic: %v", r)
		}
	}()

	if r, v := d.gestures.Load(); v != 0 && v != d.seenGesture {
		d.seenGesture = v
		d.latest = r
		d.director.Observe(r)
	}

	snap := d.director.Snapshot()
	if snap.PhotosVersion != d.photosVersion {
		d.photosVersion = snap.PhotosVersion
		d.scene.SyncPhotos(d.director.Photos())
	}

	d.stepParticles(snap.State, t)
	d.stepGlitter(t)
	d.stepCamera(t)
	d.stepPlanes(snap, t)

	d.frame.Seq++
	d.frame.Time = t
	d.frame.State = snap.State
	d.frame.Gesture = d.latest
	d.frame.ActivePhoto = snap.ActivePhoto
	d.frame.HasActive = snap.HasActive

	if d.renderer == nil {
		return nil
	}
	if err := d.renderer.Render(ctx, &d.frame); err != nil {
		return fmt.Errorf("render frame %d: %w", d.frame.Seq, err)
	}
	return nil
}

func (d *Driver) stepParticles(state scene.State, t float64) {
	k := d.config.ExplodedLerp
	if state == scene.Closed {
		k = d.config.ClosedLerp
	}

	particles := d.scene.Particles
	poses := d.scene.Poses
	for i := range particles {
		p := &particles[i]
		target := p.Exploded
		if state == scene.Closed {
			target = p.Initial
		}
		p.Current = Ease(p.Current, target, k)

		fi := float64(i)
		pose := &poses[i]
		pose.Position = p.Current
		pose.Rotation = r3.Vec{X: t*0.8 + fi, Y: t*0.5 + fi}
		pose.Scale = 1 + math.Sin(t*3+fi)*0.15
	}
}

func (d *Driver) stepGlitter(t float64) {
	g := &d.scene.Glitter
	g.Yaw += d.config.GlitterYawStep
	g.Offset = math.Sin(t*0.4) * 3
}

func (d *Driver) stepCamera(t float64) {
	target := r3.Vec{
		X: math.Sin(t*0.3) * 6,
		Y: math.Cos(t*0.2) * 4,
	}
	if d.latest.Gesture != gesture.None {
		target.X = (d.latest.Position.X - 0.5) * d.config.CameraGainX
		target.Y = -(d.latest.Position.Y - 0.5) * d.config.CameraGainY
	}

	cam := &d.scene.Camera
	cam.Position.X = EaseScalar(cam.Position.X, target.X, d.config.CameraLerp)
	cam.Position.Y = EaseScalar(cam.Position.Y, target.Y, d.config.CameraLerp)
	cam.Position.Z = d.config.CameraZ
	cam.Focus = d.config.Focus
}

func (d *Driver) stepPlanes(snap scene.Snapshot, t float64) {
	orbit, dist := 1.4, 22.0
	if snap.State == scene.Closed {
		orbit, dist = 0.6, 8.0
	}

	for i := range d.scene.Planes {
		pl := &d.scene.Planes[i]
		if snap.State == scene.Zoomed && snap.HasActive && snap.ActivePhoto == i {
			pl.Position = Ease(pl.Position, d.config.ZoomPosition, d.config.ZoomLerp)
			pl.Scale = Ease(pl.Scale, d.config.ZoomScale, d.config.ZoomLerp)
			pl.Yaw = 0
			continue
		}

		fi := float64(i)
		target := r3.Vec{
			X: math.Sin(fi+t*orbit) * dist,
			Y: math.Cos(fi*0.7+t*orbit*0.5) * dist * 0.8,
			Z: math.Sin(fi*0.4+t*orbit*0.7) * dist * 0.5,
		}
		pl.Position = Ease(pl.Position, target, d.config.PlaneLerp)
		pl.Scale = Ease(pl.Scale, d.config.OrbitScale, d.config.PlaneScaleLerp)
		pl.Yaw += d.config.PlaneYawStep
	}
}
