package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockCamera plays back a fixed list of frames. It can be told to fail
// opening a number of times to exercise reconnect logic.
type MockCamera struct {
	mu        sync.Mutex
	frames    []gocv.Mat
	index     int
	loop      bool
	open      bool
	fps       int
	openFails int
	opens     int
	readFails int
}

// NewMockCamera creates a mock camera over frames. The camera keeps
// ownership of frames and hands out clones.
func NewMockCamera(frames []gocv.Mat, loop bool) *MockCamera {
	return &MockCamera{frames: frames, loop: loop, fps: 15}
}

// FailOpens makes the next n calls to Open fail with ErrDeviceUnavailable.
func (c *MockCamera) FailOpens(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.openFails = n
}

// FailReads makes the next n reads fail with ErrDeviceUnavailable, as if the
// device had been unplugged.
func (c *MockCamera) FailReads(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readFails = n
}

// Opens returns the number of Open attempts.
func (c *MockCamera) Opens() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

func (c *MockCamera) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.opens++
	if c.openFails > 0 {
		c.openFails--
		return fmt.Errorf("mock camera: %w", ErrDeviceUnavailable)
	}
	c.open = true
	c.index = 0
	return nil
}

func (c *MockCamera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
	return nil
}

func (c *MockCamera) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return nil, ErrCameraNotOpen
	}
	if c.readFails > 0 {
		c.readFails--
		return nil, fmt.Errorf("mock camera read: %w", ErrDeviceUnavailable)
	}
	if len(c.frames) == 0 {
		return nil, fmt.Errorf("mock camera has no frames")
	}
	if c.index >= len(c.frames) {
		if !c.loop {
			return nil, fmt.Errorf("mock camera exhausted after %d frames", len(c.frames))
		}
		c.index = 0
	}

	frame := c.frames[c.index].Clone()
	c.index++
	return &frame, nil
}

func (c *MockCamera) SetFPS(fps int) {
	if fps <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fps = fps
}

func (c *MockCamera) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *MockCamera) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}
