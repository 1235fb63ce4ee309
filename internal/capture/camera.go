// Package capture reads camera frames and turns them into gesture results.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// ErrDeviceUnavailable is returned when the camera cannot be opened or stops
// delivering frames. Callers are expected to retry.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// ErrCameraNotOpen is returned when reading from a camera that is not open.
var ErrCameraNotOpen = fmt.Errorf("camera is not open: %w", ErrDeviceUnavailable)

// CameraConfig selects the device and capture format.
type CameraConfig struct {
	DeviceID int `json:"device_id"`
	Width    int `json:"width"`
	Height   int `json:"height"`
	FPS      int `json:"fps"`
	// Mirror flips frames horizontally so that landmarks match the
	// selfie view shown to the user.
	Mirror bool `json:"mirror"`
}

// DefaultCameraConfig returns device 0 at 640x480, 15 fps, unmirrored.
func DefaultCameraConfig() CameraConfig {
	return CameraConfig{
		Width:  640,
		Height: 480,
		FPS:    15,
	}
}

// Camera is a source of video frames.
type Camera interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller closes it.
	ReadFrame() (*gocv.Mat, error)
	SetFPS(fps int)
	FPS() int
	IsOpen() bool
}

type cameraImpl struct {
	config  CameraConfig
	capture *gocv.VideoCapture
	mu      sync.Mutex
	fps     int
}

// NewCamera creates a camera for the configured device. The device is not
// touched until Open.
func NewCamera(config CameraConfig) Camera {
	fps := config.FPS
	if fps <= 0 {
		fps = DefaultCameraConfig().FPS
	}
	return &cameraImpl{config: config, fps: fps}
}

func (c *cameraImpl) Open() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture != nil {
		return nil
	}

	vc, err := gocv.OpenVideoCapture(c.config.DeviceID)
	if err != nil {
		return fmt.Errorf("open camera %d: %v: %w", c.config.DeviceID, err, ErrDeviceUnavailable)
	}
	if !vc.IsOpened() {
		vc.Close()
		return fmt.Errorf("open camera %d: %w", c.config.DeviceID, ErrDeviceUnavailable)
	}

	if c.config.Width > 0 && c.config.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.config.Width))
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.config.Height))
	}
	vc.Set(gocv.VideoCaptureFPS, float64(c.fps))

	c.capture = vc
	return nil
}

func (c *cameraImpl) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil
	}
	err := c.capture.Close()
	c.capture = nil
	return err
}

func (c *cameraImpl) ReadFrame() (*gocv.Mat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capture == nil {
		return nil, ErrCameraNotOpen
	}

	mat := gocv.NewMat()
	if ok := c.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, fmt.Errorf("read camera %d: %w", c.config.DeviceID, ErrDeviceUnavailable)
	}

	if c.config.Mirror {
		gocv.Flip(mat, &mat, 1)
	}
	return &mat, nil
}

// SetFPS changes the requested capture rate. Values <= 0 are ignored.
func (c *cameraImpl) SetFPS(fps int) {
	if fps <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.fps = fps
	if c.capture != nil {
		c.capture.Set(gocv.VideoCaptureFPS, float64(fps))
	}
}

func (c *cameraImpl) FPS() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fps
}

func (c *cameraImpl) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.capture != nil
}
