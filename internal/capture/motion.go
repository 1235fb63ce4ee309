package capture

import (
	"image"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

const (
	blurKernel    = 21
	diffThreshold = 25
)

// MotionConfig controls how capture slows down while nothing moves.
type MotionConfig struct {
	// Threshold is the percentage of pixels that must change between
	// frames to count as motion.
	Threshold   float64       `json:"threshold"`
	IdleFPS     int           `json:"idle_fps"`
	ActiveFPS   int           `json:"active_fps"`
	IdleTimeout time.Duration `json:"idle_timeout"`
}

// DefaultMotionConfig returns 1% change, 5 fps idle, 15 fps active and a
// two second idle timeout.
func DefaultMotionConfig() MotionConfig {
	return MotionConfig{
		Threshold:   1.0,
		IdleFPS:     5,
		ActiveFPS:   15,
		IdleTimeout: 2 * time.Second,
	}
}

// Cadence decides the capture rate from motion events. It starts active so
// a hand already in view is picked up immediately.
type Cadence struct {
	config     MotionConfig
	lastMotion time.Time
	started    bool
}

// NewCadence creates a cadence.
func NewCadence(config MotionConfig) *Cadence {
	return &Cadence{config: config}
}

// Update records whether motion was seen at now and returns the frame rate
// to capture at.
func (c *Cadence) Update(moving bool, now time.Time) int {
	if moving || !c.started {
		c.lastMotion = now
		c.started = true
	}
	if now.Sub(c.lastMotion) > c.config.IdleTimeout {
		return c.config.IdleFPS
	}
	return c.config.ActiveFPS
}

// Active reports whether the last Update returned the active rate.
func (c *Cadence) Active(now time.Time) bool {
	return c.started && now.Sub(c.lastMotion) <= c.config.IdleTimeout
}

// MotionDetector compares consecutive frames after grayscale conversion and
// a Gaussian blur.
type MotionDetector struct {
	threshold float64
	prev      gocv.Mat
	primed    bool
	mu        sync.Mutex
}

// NewMotionDetector creates a detector that reports motion when more than
// threshold percent of pixels change.
func NewMotionDetector(threshold float64) *MotionDetector {
	return &MotionDetector{threshold: threshold, prev: gocv.NewMat()}
}

// Detect compares frame with the previous one and returns whether it moved
// and the changed pixel percentage. The first frame only sets the baseline.
func (m *MotionDetector) Detect(frame *gocv.Mat) (bool, float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(blurKernel, blurKernel), 0, 0, gocv.BorderDefault)

	if !m.primed || blurred.Rows() != m.prev.Rows() || blurred.Cols() != m.prev.Cols() {
		blurred.CopyTo(&m.prev)
		m.primed = true
		return false, 0
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, m.prev, &diff)
	gocv.Threshold(diff, &diff, diffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(diff)) / float64(diff.Rows()*diff.Cols()) * 100
	blurred.CopyTo(&m.prev)

	return changed > m.threshold, changed
}

// Reset forgets the baseline frame.
func (m *MotionDetector) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primed = false
}

// Close releases the baseline frame. The detector stays usable and primes
// itself again on the next frame.
func (m *MotionDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.primed = false
	err := m.prev.Close()
	m.prev = gocv.NewMat()
	return err
}
