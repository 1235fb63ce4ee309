package detector

import (
	"sync"

	"gocv.io/x/gocv"
)

// MockDetector is a test implementation of the Detector interface.
// It allows tests to control the detection results.
type MockDetector struct {
	mu    sync.Mutex
	hands []HandLandmarks
	err   error
	calls int
}

// NewMockDetector creates a new MockDetector instance.
func NewMockDetector() *MockDetector {
	return &MockDetector{}
}

// SetHands sets the hands that will be returned by Detect.
func (m *MockDetector) SetHands(hands []HandLandmarks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// SetError sets the error that will be returned by Detect.
func (m *MockDetector) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Calls returns how many times Detect has been called.
func (m *MockDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Detect returns the pre-configured hands or error.
func (m *MockDetector) Detect(frame *gocv.Mat) ([]HandLandmarks, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.hands, nil
}

// Close is a no-op for the mock detector.
func (m *MockDetector) Close() error {
	return nil
}

// Shared palm geometry for the preset hands. Y grows downward in image space.
var (
	presetWrist = Point3D{X: 0.50, Y: 0.80, Z: 0.0}
	presetMCPs  = [5]Point3D{
		{X: 0.55, Y: 0.75, Z: 0.0}, // thumb CMC
		{X: 0.56, Y: 0.68, Z: 0.0}, // index
		{X: 0.50, Y: 0.60, Z: 0.0}, // middle (palm base)
		{X: 0.45, Y: 0.62, Z: 0.0}, // ring
		{X: 0.40, Y: 0.66, Z: 0.0}, // pinky
	}
)

// buildHand places the joints of each finger evenly between its base and tip.
// tips are ordered thumb, index, middle, ring, pinky.
func buildHand(tips [5]Point3D) HandLandmarks {
	h := HandLandmarks{Handedness: "Right", Score: 0.95}
	h.Points[Wrist] = presetWrist

	bases := [5]int{ThumbCMC, IndexMCP, MiddleMCP, RingMCP, PinkyMCP}
	for f, base := range bases {
		from, to := presetMCPs[f], tips[f]
		for j := 0; j < 4; j++ {
			t := float64(j) / 3
			h.Points[base+j] = Point3D{
				X: from.X + (to.X-from.X)*t,
				Y: from.Y + (to.Y-from.Y)*t,
				Z: from.Z + (to.Z-from.Z)*t,
			}
		}
	}
	return h
}

// FistLandmarks returns a closed fist: every fingertip curled onto the palm,
// thumb resting beside the index finger.
func FistLandmarks() HandLandmarks {
	return buildHand([5]Point3D{
		{X: 0.60, Y: 0.70, Z: 0.00},
		{X: 0.54, Y: 0.64, Z: -0.03},
		{X: 0.50, Y: 0.66, Z: -0.04},
		{X: 0.46, Y: 0.65, Z: -0.03},
		{X: 0.42, Y: 0.66, Z: -0.02},
	})
}

// OpenPalmLandmarks returns an open palm with all fingers extended.
func OpenPalmLandmarks() HandLandmarks {
	return buildHand([5]Point3D{
		{X: 0.73, Y: 0.60, Z: 0.03},
		{X: 0.58, Y: 0.33, Z: 0.0},
		{X: 0.50, Y: 0.28, Z: 0.0},
		{X: 0.42, Y: 0.33, Z: 0.0},
		{X: 0.34, Y: 0.42, Z: 0.0},
	})
}

// PinchLandmarks returns a pinch: thumb and index tips touching while the
// other fingers stay extended.
func PinchLandmarks() HandLandmarks {
	return buildHand([5]Point3D{
		{X: 0.60, Y: 0.45, Z: 0.0},
		{X: 0.61, Y: 0.46, Z: 0.0},
		{X: 0.50, Y: 0.28, Z: 0.0},
		{X: 0.42, Y: 0.33, Z: 0.0},
		{X: 0.34, Y: 0.42, Z: 0.0},
	})
}

// RelaxedLandmarks returns a half-curled hand that is neither a fist nor an
// open palm.
func RelaxedLandmarks() HandLandmarks {
	return buildHand([5]Point3D{
		{X: 0.68, Y: 0.58, Z: 0.0},
		{X: 0.56, Y: 0.43, Z: 0.0},
		{X: 0.50, Y: 0.42, Z: 0.0},
		{X: 0.44, Y: 0.43, Z: 0.0},
		{X: 0.38, Y: 0.48, Z: 0.0},
	})
}
