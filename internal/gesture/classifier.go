package gesture

import (
	"errors"
	"log"
	"sync/atomic"

	"github.com/ayusman/tinsel/internal/detector"
)

// Logf reports degraded frames. Tests may replace it.
var Logf = log.Printf

// Config holds the classification thresholds, in the same normalized units as
// the landmark coordinates.
type Config struct {
	// PinchThreshold is the thumb-to-index tip distance below which the hand
	// is pinching. Pinch wins over every other gesture.
	PinchThreshold float64 `json:"pinch_threshold"`

	// FistThreshold is the mean palm-to-fingertip distance below which the
	// hand is a fist.
	FistThreshold float64 `json:"fist_threshold"`

	// OpenThreshold is the mean palm-to-fingertip distance above which the
	// hand is open.
	OpenThreshold float64 `json:"open_threshold"`
}

// DefaultConfig returns the tuned default thresholds.
func DefaultConfig() Config {
	return Config{
		PinchThreshold: 0.05,
		FistThreshold:  0.12,
		OpenThreshold:  0.25,
	}
}

// Validate checks that the thresholds are usable.
func (c Config) Validate() error {
	if c.PinchThreshold <= 0 || c.FistThreshold <= 0 || c.OpenThreshold <= 0 {
		return errors.New("gesture thresholds must be positive")
	}
	if c.FistThreshold >= c.OpenThreshold {
		return errors.New("fist threshold must be below open threshold")
	}
	return nil
}

// Classifier maps landmark frames to gesture results. It holds no state
// between calls and is safe for concurrent use.
type Classifier struct {
	config atomic.Pointer[Config]
}

// NewClassifier creates a Classifier with the given thresholds.
func NewClassifier(config Config) *Classifier {
	c := &Classifier{}
	c.config.Store(&config)
	return c
}

// Config returns the classifier thresholds.
func (c *Classifier) Config() Config {
	return *c.config.Load()
}

// SetConfig swaps the thresholds. Frames already being classified finish
// with the old values.
func (c *Classifier) SetConfig(config Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	c.config.Store(&config)
	return nil
}

// Classify computes the gesture, palm position and rotation proxy of one hand.
//
// Algorithm:
// 1. position = midpoint of wrist and palm base (middle finger MCP)
// 2. avgDist = mean distance from palm base to the four non-thumb tips
// 3. pinchDist = distance from thumb tip to index tip
// 4. pinch < PinchThreshold -> PINCH, avg < FistThreshold -> FIST,
//    avg > OpenThreshold -> OPEN, otherwise NONE
// 5. rotation = (2*(palm.y-wrist.y), 2*(pinkyMCP.x-indexMCP.x), 0)
func (c *Classifier) Classify(hand detector.HandLandmarks) Result {
	p := &hand.Points
	wrist := p[detector.Wrist]
	palm := p[detector.PalmBase]

	avgDist := (detector.Distance(palm, p[detector.IndexTip]) +
		detector.Distance(palm, p[detector.MiddleTip]) +
		detector.Distance(palm, p[detector.RingTip]) +
		detector.Distance(palm, p[detector.PinkyTip])) / 4

	pinchDist := detector.Distance(p[detector.ThumbTip], p[detector.IndexTip])

	cfg := c.config.Load()
	g := None
	switch {
	case pinchDist < cfg.PinchThreshold:
		g = Pinch
	case avgDist < cfg.FistThreshold:
		g = Fist
	case avgDist > cfg.OpenThreshold:
		g = Open
	}

	return Result{
		Gesture:  g,
		Position: detector.Midpoint(wrist, palm),
		Rotation: detector.Point3D{
			X: (palm.Y - wrist.Y) * 2,
			Y: (p[detector.PinkyMCP].X - p[detector.IndexMCP].X) * 2,
		},
	}
}

// ClassifyPoints validates a raw point list and classifies it.
// On malformed input it returns NoHand together with ErrInvalidInput.
func (c *Classifier) ClassifyPoints(points []detector.Point3D) (Result, error) {
	hand, err := detector.FromPoints(points)
	if err != nil {
		return NoHand(), err
	}
	return c.Classify(hand), nil
}

// ClassifyHands classifies the first detected hand, or returns NoHand when
// the frame holds none. Additional hands are ignored.
func (c *Classifier) ClassifyHands(hands []detector.HandLandmarks) Result {
	if len(hands) == 0 {
		return NoHand()
	}
	return c.Classify(hands[0])
}

// ClassifyFrame classifies a raw frame of per-hand point lists. Only the
// first hand is used. A malformed hand degrades to NoHand.
func (c *Classifier) ClassifyFrame(frame [][]detector.Point3D) Result {
	if len(frame) == 0 {
		return NoHand()
	}
	r, err := c.ClassifyPoints(frame[0])
	if err != nil {
		Logf("gesture: dropping frame: %v", err)
	}
	return r
}
