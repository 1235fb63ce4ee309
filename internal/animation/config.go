package animation

import (
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"
)

// Config holds the smoothing factors and target poses of the driver.
//
// Every *Lerp field is the fraction of the remaining distance covered per
// frame and must lie in (0, 1].
type Config struct {
	FrameRate int

	ClosedLerp     float64 // particles gathering into the tree
	ExplodedLerp   float64 // particles scattering
	CameraLerp     float64
	ZoomLerp       float64 // active photo moving to the zoom pose
	PlaneLerp      float64 // orbiting photo position
	PlaneScaleLerp float64 // orbiting photo scale

	// CameraGainX and CameraGainY map the palm offset from the image center
	// to camera displacement in scene units.
	CameraGainX float64
	CameraGainY float64
	CameraZ     float64
	Focus       r3.Vec

	ZoomPosition r3.Vec
	ZoomScale    r3.Vec
	OrbitScale   r3.Vec

	PlaneYawStep   float64 // radians per frame
	GlitterYawStep float64 // radians per frame
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		FrameRate:      60,
		ClosedLerp:     0.06,
		ExplodedLerp:   0.03,
		CameraLerp:     0.08,
		ZoomLerp:       0.12,
		PlaneLerp:      0.06,
		PlaneScaleLerp: 0.1,
		CameraGainX:    45,
		CameraGainY:    35,
		CameraZ:        28,
		ZoomPosition:   r3.Vec{Z: 16},
		ZoomScale:      r3.Vec{X: 14, Y: 14, Z: 1},
		OrbitScale:     r3.Vec{X: 3.8, Y: 3.8, Z: 1},
		PlaneYawStep:   0.015,
		GlitterYawStep: 0.0008,
	}
}

// Interval returns the time between scheduled frames.
func (c Config) Interval() time.Duration {
	if c.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.FrameRate)
}

// Validate checks frame rate and smoothing factors.
func (c Config) Validate() error {
	if c.FrameRate <= 0 {
		return errors.New("frame rate must be positive")
	}
	lerps := []struct {
		name  string
		value float64
	}{
		{"closed", c.ClosedLerp},
		{"exploded", c.ExplodedLerp},
		{"camera", c.CameraLerp},
		{"zoom", c.ZoomLerp},
		{"plane", c.PlaneLerp},
		{"plane scale", c.PlaneScaleLerp},
	}
	for _, l := range lerps {
		if l.value <= 0 || l.value > 1 {
			return fmt.Errorf("%s lerp %v out of range (0, 1]", l.name, l.value)
		}
	}
	return nil
}
