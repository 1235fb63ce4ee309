package animation

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/scene"
)

func muteLog(t *testing.T) {
	t.Helper()
	orig := Logf
	Logf = func(string, ...any) {}
	t.Cleanup(func() { Logf = orig })
}

func smallScene(particles int) *scene.Scene {
	layout := scene.DefaultLayout()
	layout.Particles = particles
	layout.GlitterStars = 10
	return scene.New(layout)
}

func newTestDriver(t *testing.T, r Renderer) (*Driver, *scene.Director, *Cell[gesture.Result]) {
	t.Helper()
	muteLog(t)
	cfg := DefaultConfig()
	cfg.FrameRate = 200
	director := scene.NewDirector(42)
	cell := &Cell[gesture.Result]{}
	return NewDriver(cfg, smallScene(64), director, cell, r), director, cell
}

func publish(c *Cell[gesture.Result], g gesture.Gesture, x, y float64) {
	r := gesture.NoHand()
	r.Gesture = g
	r.Position.X, r.Position.Y = x, y
	c.Store(r)
}

func TestDriver_ParticlesConvergeWithoutOvershoot(t *testing.T) {
	for _, target := range []scene.Button{scene.Explode, scene.Close} {
		t.Run(target.String(), func(t *testing.T) {
			d, director, _ := newTestDriver(t, nil)
			if target == scene.Close {
				// Start scattered so gathering has somewhere to go.
				for i := range d.scene.Particles {
					d.scene.Particles[i].Current = d.scene.Particles[i].Exploded
				}
			}
			director.Press(target)

			goal := func(p scene.Particle) r3.Vec {
				if target == scene.Close {
					return p.Initial
				}
				return p.Exploded
			}

			prev := make([]float64, len(d.scene.Particles))
			for i, p := range d.scene.Particles {
				prev[i] = r3.Norm(r3.Sub(goal(p), p.Current))
			}

			for frame := 0; frame < 600; frame++ {
				require.NoError(t, d.Step(float64(frame)/60))
				for i, p := range d.scene.Particles {
					dist := r3.Norm(r3.Sub(goal(p), p.Current))
					require.LessOrEqual(t, dist, prev[i]+1e-12, "particle %d moved away at frame %d", i, frame)
					prev[i] = dist
				}
			}

			for i, p := range d.scene.Particles {
				assert.InDelta(t, 0, prev[i], 0.01, "particle %d not converged", i)
				assert.Equal(t, p.Current, d.scene.Poses[i].Position)
			}
		})
	}
}

func TestDriver_ParticlePoses(t *testing.T) {
	d, _, _ := newTestDriver(t, nil)
	require.NoError(t, d.Step(2))

	for _, i := range []int{0, 5, 63} {
		fi := float64(i)
		pose := d.scene.Poses[i]
		assert.InDelta(t, 2*0.8+fi, pose.Rotation.X, 1e-9)
		assert.InDelta(t, 2*0.5+fi, pose.Rotation.Y, 1e-9)
		assert.Zero(t, pose.Rotation.Z)
		assert.InDelta(t, 1+math.Sin(6+fi)*0.15, pose.Scale, 1e-9)
	}
}

func TestDriver_CameraFollowsHand(t *testing.T) {
	d, _, cell := newTestDriver(t, nil)
	publish(cell, gesture.Fist, 1.0, 0.0)

	for frame := 0; frame < 300; frame++ {
		require.NoError(t, d.Step(float64(frame)/60))
	}

	cam := d.scene.Camera
	assert.InDelta(t, 22.5, cam.Position.X, 1e-3)
	assert.InDelta(t, 17.5, cam.Position.Y, 1e-3)
	assert.Equal(t, 28.0, cam.Position.Z)
	assert.Equal(t, r3.Vec{}, cam.Focus)
}

func TestDriver_CameraIdleDrift(t *testing.T) {
	d, _, _ := newTestDriver(t, nil)
	d.config.CameraLerp = 1

	require.NoError(t, d.Step(0))
	assert.InDelta(t, 0, d.scene.Camera.Position.X, 1e-9)
	assert.InDelta(t, 4, d.scene.Camera.Position.Y, 1e-9)

	require.NoError(t, d.Step(5))
	assert.InDelta(t, math.Sin(1.5)*6, d.scene.Camera.Position.X, 1e-9)
	assert.InDelta(t, math.Cos(1.0)*4, d.scene.Camera.Position.Y, 1e-9)
}

func TestDriver_CameraFirstStepFraction(t *testing.T) {
	d, _, cell := newTestDriver(t, nil)
	publish(cell, gesture.Fist, 0.7, 0.5)

	require.NoError(t, d.Step(0))
	// Target x = 0.2*45 = 9, one 8% step from 0.
	assert.InDelta(t, 0.72, d.scene.Camera.Position.X, 1e-9)
	assert.InDelta(t, 0, d.scene.Camera.Position.Y, 1e-9)
}

func TestDriver_ZoomedPhotoPose(t *testing.T) {
	d, director, cell := newTestDriver(t, nil)
	director.SetPhotos([]string{"a.jpg", "b.jpg", "c.jpg"})

	publish(cell, gesture.Open, 0.5, 0.5)
	require.NoError(t, d.Step(0))
	require.Equal(t, scene.Exploded, director.State())

	publish(cell, gesture.Pinch, 0.5, 0.5)
	for frame := 1; frame < 200; frame++ {
		require.NoError(t, d.Step(float64(frame)/60))
	}
	require.Equal(t, scene.Zoomed, director.State())

	active, ok := director.ActivePhoto()
	require.True(t, ok)
	require.Len(t, d.scene.Planes, 3)

	zoomed := d.scene.Planes[active]
	assert.InDelta(t, 0, r3.Norm(r3.Sub(zoomed.Position, r3.Vec{Z: 16})), 1e-3)
	assert.InDelta(t, 0, r3.Norm(r3.Sub(zoomed.Scale, r3.Vec{X: 14, Y: 14, Z: 1})), 1e-3)
	assert.Zero(t, zoomed.Yaw)

	for i, pl := range d.scene.Planes {
		if i == active {
			continue
		}
		assert.InDelta(t, 0.015*200, pl.Yaw, 1e-9, "plane %d keeps orbiting", i)
	}
}

func TestDriver_OrbitPose(t *testing.T) {
	d, director, _ := newTestDriver(t, nil)
	d.config.PlaneLerp = 1
	d.config.PlaneScaleLerp = 1
	director.SetPhotos([]string{"a", "b"})

	require.NoError(t, d.Step(1))
	pl := d.scene.Planes[1]
	want := r3.Vec{
		X: math.Sin(1+1*0.6) * 8,
		Y: math.Cos(0.7+1*0.6*0.5) * 8 * 0.8,
		Z: math.Sin(0.4+1*0.6*0.7) * 8 * 0.5,
	}
	assert.InDelta(t, 0, r3.Norm(r3.Sub(pl.Position, want)), 1e-9)
	assert.Equal(t, r3.Vec{X: 3.8, Y: 3.8, Z: 1}, pl.Scale)

	director.Press(scene.Explode)
	require.NoError(t, d.Step(1))
	pl = d.scene.Planes[1]
	assert.InDelta(t, math.Sin(1+1.4)*22, pl.Position.X, 1e-9)
}

func TestDriver_PhotoListReconciled(t *testing.T) {
	d, director, _ := newTestDriver(t, nil)

	director.AddPhoto("a")
	director.AddPhoto("b")
	require.NoError(t, d.Step(0))
	require.Len(t, d.scene.Planes, 2)

	require.NoError(t, director.RemovePhoto(0))
	require.NoError(t, d.Step(0.1))
	require.Len(t, d.scene.Planes, 1)
	assert.Equal(t, "b", d.scene.Planes[0].Ref)
}

func TestDriver_GlitterDrift(t *testing.T) {
	d, _, _ := newTestDriver(t, nil)
	for i := 0; i < 10; i++ {
		require.NoError(t, d.Step(2))
	}
	assert.InDelta(t, 0.008, d.scene.Glitter.Yaw, 1e-12)
	assert.InDelta(t, math.Sin(0.8)*3, d.scene.Glitter.Offset, 1e-12)
}

func TestDriver_FrameCarriesState(t *testing.T) {
	var got Frame
	d, _, cell := newTestDriver(t, RendererFunc(func(_ context.Context, f *Frame) error {
		got = *f
		return nil
	}))
	publish(cell, gesture.Open, 0.3, 0.4)

	require.NoError(t, d.Step(1.5))

	assert.Equal(t, uint64(1), got.Seq)
	assert.Equal(t, 1.5, got.Time)
	assert.Equal(t, scene.Exploded, got.State)
	assert.Equal(t, gesture.Open, got.Gesture.Gesture)
	assert.Same(t, d.scene, got.Scene)
}

func TestDriver_StaleGestureObservedOnce(t *testing.T) {
	d, director, cell := newTestDriver(t, nil)
	publish(cell, gesture.Open, 0.5, 0.5)
	require.NoError(t, d.Step(0))
	require.Equal(t, scene.Exploded, director.State())

	// A button press sticks until a new gesture arrives.
	director.Press(scene.Close)
	require.NoError(t, d.Step(0.1))
	assert.Equal(t, scene.Closed, director.State())

	publish(cell, gesture.Open, 0.5, 0.5)
	require.NoError(t, d.Step(0.2))
	assert.Equal(t, scene.Exploded, director.State())
}

func TestDriver_RenderPanicIsolated(t *testing.T) {
	d, _, _ := newTestDriver(t, RendererFunc(func(context.Context, *Frame) error {
		panic("boom")
	}))

	err := d.Step(0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// The driver is still usable.
	d.renderer = nil
	assert.NoError(t, d.Step(0.1))
}

func TestDriver_SurfaceLostStopsLoop(t *testing.T) {
	var calls atomic.Int32
	d, _, _ := newTestDriver(t, RendererFunc(func(context.Context, *Frame) error {
		if calls.Add(1) == 3 {
			return ErrRenderSurfaceLost
		}
		return nil
	}))

	faults := make(chan error, 1)
	d.OnFault(func(err error) { faults <- err })

	require.NoError(t, d.Start(context.Background()))

	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after surface loss")
	}

	assert.ErrorIs(t, d.Err(), ErrRenderSurfaceLost)
	assert.False(t, d.Running())
	assert.Equal(t, int32(3), calls.Load())
	assert.ErrorIs(t, <-faults, ErrRenderSurfaceLost)

	d.Frame()
	assert.Equal(t, int32(3), calls.Load(), "Frame after fault must be a no-op")
}

func TestDriver_OtherRenderErrorsKeepRunning(t *testing.T) {
	var calls atomic.Int32
	d, _, _ := newTestDriver(t, RendererFunc(func(context.Context, *Frame) error {
		calls.Add(1)
		return errors.New("transient")
	}))

	require.NoError(t, d.Start(context.Background()))
	require.Eventually(t, func() bool { return calls.Load() >= 5 }, 5*time.Second, 5*time.Millisecond)
	assert.True(t, d.Running())
	assert.NoError(t, d.Err())
	d.Stop()
}

func TestDriver_StopMakesFrameNoop(t *testing.T) {
	var calls atomic.Int32
	d, _, _ := newTestDriver(t, RendererFunc(func(context.Context, *Frame) error {
		calls.Add(1)
		return nil
	}))

	require.NoError(t, d.Start(context.Background()))
	assert.ErrorIs(t, d.Start(context.Background()), ErrAlreadyRunning)
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, 5*time.Second, 5*time.Millisecond)

	d.Stop()
	d.Stop()
	after := calls.Load()

	d.Frame()
	assert.Equal(t, after, calls.Load())
	assert.False(t, d.Running())
	assert.NoError(t, d.Err())
}

func TestDriver_ContextCancelStops(t *testing.T) {
	d, _, _ := newTestDriver(t, nil)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, d.Start(ctx))
	cancel()

	select {
	case <-d.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
	assert.False(t, d.Running())
}

func TestDriver_StopWithoutStart(t *testing.T) {
	d, _, _ := newTestDriver(t, nil)
	d.Stop()
	select {
	case <-d.Done():
	default:
		t.Fatal("Done should be closed for a driver that never started")
	}
}

func TestCell(t *testing.T) {
	var c Cell[int]
	v, version := c.Load()
	assert.Zero(t, v)
	assert.Zero(t, version)

	c.Store(7)
	c.Store(9)
	v, version = c.Load()
	assert.Equal(t, 9, v)
	assert.Equal(t, uint64(2), version)
}

func TestCell_ConcurrentWriters(t *testing.T) {
	var c Cell[int]
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				c.Store(i)
			}
		}()
	}
	wg.Wait()

	_, version := c.Load()
	assert.Equal(t, uint64(8*500), version)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.ZoomLerp = 0
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.CameraLerp = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.FrameRate = 0
	assert.Error(t, cfg.Validate())
	assert.Equal(t, time.Second/60, cfg.Interval())
}

func TestEase(t *testing.T) {
	got := Ease(r3.Vec{}, r3.Vec{X: 10, Y: -10, Z: 4}, 0.5)
	assert.Equal(t, r3.Vec{X: 5, Y: -5, Z: 2}, got)
	assert.Equal(t, 7.5, EaseScalar(5, 10, 0.5))
}
