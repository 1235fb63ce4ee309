// Package config loads the tuning file that overrides classifier thresholds,
// animation smoothing and capture settings.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ayusman/tinsel/internal/animation"
	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/render"
	"github.com/ayusman/tinsel/internal/scene"
)

// DefaultTuningPath is the tuning file shipped with the repository.
const DefaultTuningPath = "config/tuning.defaults.json"

const maxTuningFileSize = 1 << 20

// Tuning is a partial set of overrides. Nil fields fall back to the
// built-in defaults, so an empty file is valid. The same JSON shape is used
// by the tuning file, the settings table and PUT /api/tuning.
type Tuning struct {
	// Classifier
	PinchThreshold *float64 `json:"pinch_threshold,omitempty"`
	FistThreshold  *float64 `json:"fist_threshold,omitempty"`
	OpenThreshold  *float64 `json:"open_threshold,omitempty"`

	// Animation
	FrameRate    *int     `json:"frame_rate,omitempty"`
	ClosedLerp   *float64 `json:"closed_lerp,omitempty"`
	ExplodedLerp *float64 `json:"exploded_lerp,omitempty"`
	CameraLerp   *float64 `json:"camera_lerp,omitempty"`
	ZoomLerp     *float64 `json:"zoom_lerp,omitempty"`
	CameraGainX  *float64 `json:"camera_gain_x,omitempty"`
	CameraGainY  *float64 `json:"camera_gain_y,omitempty"`

	// Scene
	Particles    *int    `json:"particles,omitempty"`
	GlitterStars *int    `json:"glitter_stars,omitempty"`
	Seed         *uint64 `json:"seed,omitempty"`

	// Rendering
	RenderWidth  *int  `json:"render_width,omitempty"`
	RenderHeight *int  `json:"render_height,omitempty"`
	StreamFPS    *int  `json:"stream_fps,omitempty"`
	HUD          *bool `json:"hud,omitempty"`

	// Capture
	CameraDevice    *int     `json:"camera_device,omitempty"`
	CameraMirror    *bool    `json:"camera_mirror,omitempty"`
	MotionGate      *bool    `json:"motion_gate,omitempty"`
	MotionThreshold *float64 `json:"motion_threshold,omitempty"`
	IdleFPS         *int     `json:"idle_fps,omitempty"`
	ActiveFPS       *int     `json:"active_fps,omitempty"`
	IdleTimeout     *string  `json:"idle_timeout,omitempty"` // duration string like "2s"
}

// Defaults returns the built-in tuning with every field set.
func Defaults() *Tuning {
	return (&Tuning{}).Resolved()
}

// Load reads a tuning file. Omitted fields keep their defaults.
func Load(path string) (*Tuning, error) {
	clean := filepath.Clean(path)
	if ext := filepath.Ext(clean); ext != ".json" {
		return nil, fmt.Errorf("tuning file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to stat tuning file: %w", err)
	}
	if info.Size() > maxTuningFileSize {
		return nil, fmt.Errorf("tuning file too large: %d bytes (max %d)", info.Size(), maxTuningFileSize)
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return nil, fmt.Errorf("failed to read tuning file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates tuning JSON.
func Parse(data []byte) (*Tuning, error) {
	t := &Tuning{}
	if err := json.Unmarshal(data, t); err != nil {
		return nil, fmt.Errorf("failed to parse tuning JSON: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tuning: %w", err)
	}
	return t, nil
}

// Validate checks the effective configuration.
func (t *Tuning) Validate() error {
	if err := t.Gesture().Validate(); err != nil {
		return err
	}
	if err := t.Animation().Validate(); err != nil {
		return err
	}
	if t.IdleTimeout != nil && *t.IdleTimeout != "" {
		if _, err := time.ParseDuration(*t.IdleTimeout); err != nil {
			return fmt.Errorf("invalid idle_timeout %q: %w", *t.IdleTimeout, err)
		}
	}
	if t.Particles != nil && *t.Particles < 0 {
		return fmt.Errorf("particles must be non-negative, got %d", *t.Particles)
	}
	if w, h := t.Render().Width, t.Render().Height; w <= 0 || h <= 0 {
		return fmt.Errorf("render size must be positive, got %dx%d", w, h)
	}
	return nil
}

// Merge returns a copy of t with every non-nil field of o applied on top.
func (t *Tuning) Merge(o *Tuning) *Tuning {
	out := *t
	if o == nil {
		return &out
	}
	override(&out.PinchThreshold, o.PinchThreshold)
	override(&out.FistThreshold, o.FistThreshold)
	override(&out.OpenThreshold, o.OpenThreshold)
	override(&out.FrameRate, o.FrameRate)
	override(&out.ClosedLerp, o.ClosedLerp)
	override(&out.ExplodedLerp, o.ExplodedLerp)
	override(&out.CameraLerp, o.CameraLerp)
	override(&out.ZoomLerp, o.ZoomLerp)
	override(&out.CameraGainX, o.CameraGainX)
	override(&out.CameraGainY, o.CameraGainY)
	override(&out.Particles, o.Particles)
	override(&out.GlitterStars, o.GlitterStars)
	override(&out.Seed, o.Seed)
	override(&out.RenderWidth, o.RenderWidth)
	override(&out.RenderHeight, o.RenderHeight)
	override(&out.StreamFPS, o.StreamFPS)
	override(&out.HUD, o.HUD)
	override(&out.CameraDevice, o.CameraDevice)
	override(&out.CameraMirror, o.CameraMirror)
	override(&out.MotionGate, o.MotionGate)
	override(&out.MotionThreshold, o.MotionThreshold)
	override(&out.IdleFPS, o.IdleFPS)
	override(&out.ActiveFPS, o.ActiveFPS)
	override(&out.IdleTimeout, o.IdleTimeout)
	return &out
}

// Resolved returns a Tuning with every field set to its effective value.
func (t *Tuning) Resolved() *Tuning {
	g := t.Gesture()
	a := t.Animation()
	l := t.Layout()
	r := t.Render()
	c := t.Camera()
	tr := t.Tracker()
	idle := tr.Motion.IdleTimeout.String()
	streamFPS := t.GetStreamFPS()

	return &Tuning{
		PinchThreshold:  &g.PinchThreshold,
		FistThreshold:   &g.FistThreshold,
		OpenThreshold:   &g.OpenThreshold,
		FrameRate:       &a.FrameRate,
		ClosedLerp:      &a.ClosedLerp,
		ExplodedLerp:    &a.ExplodedLerp,
		CameraLerp:      &a.CameraLerp,
		ZoomLerp:        &a.ZoomLerp,
		CameraGainX:     &a.CameraGainX,
		CameraGainY:     &a.CameraGainY,
		Particles:       &l.Particles,
		GlitterStars:    &l.GlitterStars,
		Seed:            &l.Seed,
		RenderWidth:     &r.Width,
		RenderHeight:    &r.Height,
		StreamFPS:       &streamFPS,
		HUD:             &r.HUD,
		CameraDevice:    &c.DeviceID,
		CameraMirror:    &c.Mirror,
		MotionGate:      &tr.GateOnMotion,
		MotionThreshold: &tr.Motion.Threshold,
		IdleFPS:         &tr.Motion.IdleFPS,
		ActiveFPS:       &tr.Motion.ActiveFPS,
		IdleTimeout:     &idle,
	}
}

// Gesture returns the classifier thresholds.
func (t *Tuning) Gesture() gesture.Config {
	c := gesture.DefaultConfig()
	c.PinchThreshold = get(t.PinchThreshold, c.PinchThreshold)
	c.FistThreshold = get(t.FistThreshold, c.FistThreshold)
	c.OpenThreshold = get(t.OpenThreshold, c.OpenThreshold)
	return c
}

// Animation returns the driver configuration.
func (t *Tuning) Animation() animation.Config {
	c := animation.DefaultConfig()
	c.FrameRate = get(t.FrameRate, c.FrameRate)
	c.ClosedLerp = get(t.ClosedLerp, c.ClosedLerp)
	c.ExplodedLerp = get(t.ExplodedLerp, c.ExplodedLerp)
	c.CameraLerp = get(t.CameraLerp, c.CameraLerp)
	c.ZoomLerp = get(t.ZoomLerp, c.ZoomLerp)
	c.CameraGainX = get(t.CameraGainX, c.CameraGainX)
	c.CameraGainY = get(t.CameraGainY, c.CameraGainY)
	return c
}

// Layout returns the tree generation parameters.
func (t *Tuning) Layout() scene.Layout {
	l := scene.DefaultLayout()
	l.Particles = get(t.Particles, l.Particles)
	l.GlitterStars = get(t.GlitterStars, l.GlitterStars)
	l.Seed = get(t.Seed, l.Seed)
	return l
}

// Render returns the rasterizer options.
func (t *Tuning) Render() render.Options {
	o := render.DefaultOptions()
	o.Width = get(t.RenderWidth, o.Width)
	o.Height = get(t.RenderHeight, o.Height)
	o.HUD = get(t.HUD, o.HUD)
	return o
}

// GetStreamFPS returns the MJPEG frame rate cap.
func (t *Tuning) GetStreamFPS() int {
	return get(t.StreamFPS, 15)
}

// Camera returns the capture device settings.
func (t *Tuning) Camera() capture.CameraConfig {
	c := capture.DefaultCameraConfig()
	c.DeviceID = get(t.CameraDevice, c.DeviceID)
	c.Mirror = get(t.CameraMirror, c.Mirror)
	return c
}

// Tracker returns the tracker loop settings.
func (t *Tuning) Tracker() capture.TrackerConfig {
	c := capture.DefaultTrackerConfig()
	c.GateOnMotion = get(t.MotionGate, c.GateOnMotion)
	c.Motion.Threshold = get(t.MotionThreshold, c.Motion.Threshold)
	c.Motion.IdleFPS = get(t.IdleFPS, c.Motion.IdleFPS)
	c.Motion.ActiveFPS = get(t.ActiveFPS, c.Motion.ActiveFPS)
	if t.IdleTimeout != nil && *t.IdleTimeout != "" {
		if d, err := time.ParseDuration(*t.IdleTimeout); err == nil {
			c.Motion.IdleTimeout = d
		}
	}
	return c
}

func get[T any](p *T, def T) T {
	if p == nil {
		return def
	}
	return *p
}

func override[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
