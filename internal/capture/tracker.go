package capture

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/gesture"
)

// Logf is the package diagnostic logger. Tests may replace it.
var Logf = log.Printf

// ErrTrackerRunning is returned by Start on a running tracker.
var ErrTrackerRunning = errors.New("tracker already running")

// Backoff produces exponentially growing retry delays between Min and Max.
type Backoff struct {
	Min  time.Duration
	Max  time.Duration
	next time.Duration
}

// Next returns the delay before the next attempt.
func (b *Backoff) Next() time.Duration {
	if b.next == 0 {
		b.next = b.Min
	}
	d := b.next
	b.next = min(b.next*2, b.Max)
	return d
}

// Reset starts the sequence over after a success.
func (b *Backoff) Reset() {
	b.next = 0
}

// TrackerConfig controls the tracker loop.
type TrackerConfig struct {
	Motion MotionConfig
	// GateOnMotion skips detection while the scene is still.
	GateOnMotion bool
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

// DefaultTrackerConfig returns motion gating on and retries from 500ms to 8s.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		Motion:       DefaultMotionConfig(),
		GateOnMotion: true,
		MinBackoff:   500 * time.Millisecond,
		MaxBackoff:   8 * time.Second,
	}
}

// TrackerStats is a snapshot of tracker counters.
type TrackerStats struct {
	Running    bool   `json:"running"`
	Connected  bool   `json:"connected"`
	Active     bool   `json:"active"`
	Frames     uint64 `json:"frames"`
	Dropped    uint64 `json:"dropped"`
	Reconnects uint64 `json:"reconnects"`
}

// Tracker reads camera frames, detects hands and publishes one gesture
// result per analyzed frame to its sinks. Camera and detector outages are
// retried with backoff; the tracker never gives up on its own.
type Tracker struct {
	config     TrackerConfig
	camera     Camera
	detector   detector.Detector
	classifier *gesture.Classifier
	sinks      []func(gesture.Result)

	motion  *MotionDetector
	cadence *Cadence
	backoff Backoff
	sleep   func(ctx context.Context, d time.Duration) bool
	now     func() time.Time

	active  atomic.Bool
	stopped atomic.Bool
	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}

	frames     atomic.Uint64
	dropped    atomic.Uint64
	reconnects atomic.Uint64
	moving     atomic.Bool
}

// NewTracker creates a tracker. Each sink receives every published result on
// the tracker goroutine and must not block.
func NewTracker(config TrackerConfig, camera Camera, det detector.Detector, classifier *gesture.Classifier, sinks ...func(gesture.Result)) *Tracker {
	t := &Tracker{
		config:     config,
		camera:     camera,
		detector:   det,
		classifier: classifier,
		sinks:      sinks,
		cadence:    NewCadence(config.Motion),
		backoff:    Backoff{Min: config.MinBackoff, Max: config.MaxBackoff},
		sleep:      sleepContext,
		now:        time.Now,
		done:       make(chan struct{}),
	}
	if config.GateOnMotion {
		t.motion = NewMotionDetector(config.Motion.Threshold)
	}
	close(t.done)
	return t
}

// Start launches the tracker goroutine.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active.Load() {
		return ErrTrackerRunning
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})
	t.active.Store(true)
	t.stopped.Store(false)
	go t.run(ctx, t.done)
	return nil
}

// Stop cancels the loop, waits for it to exit and closes the camera. Results
// computed after Stop are discarded.
func (t *Tracker) Stop() {
	t.mu.Lock()
	t.active.Store(false)
	t.stopped.Store(true)
	cancel, done := t.cancel, t.done
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed when the loop has exited.
func (t *Tracker) Done() <-chan struct{} {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// Stats returns the current counters.
func (t *Tracker) Stats() TrackerStats {
	return TrackerStats{
		Running:    t.active.Load(),
		Connected:  t.camera.IsOpen(),
		Active:     t.moving.Load(),
		Frames:     t.frames.Load(),
		Dropped:    t.dropped.Load(),
		Reconnects: t.reconnects.Load(),
	}
}

func (t *Tracker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer t.active.Store(false)
	defer func() {
		if err := t.camera.Close(); err != nil {
			Logf("capture: close camera: %v", err)
		}
		if t.motion != nil {
			t.motion.Reset()
		}
	}()

	fps := t.config.Motion.ActiveFPS
	for ctx.Err() == nil {
		if !t.camera.IsOpen() {
			if err := t.camera.Open(); err != nil {
				t.retry(ctx, err)
				continue
			}
			t.backoff.Reset()
			t.camera.SetFPS(fps)
		}

		next, err := t.Step()
		switch {
		case err == nil:
			t.backoff.Reset()
			if next != fps {
				fps = next
				t.camera.SetFPS(fps)
			}
		case errors.Is(err, ErrDeviceUnavailable):
			if cerr := t.camera.Close(); cerr != nil {
				Logf("capture: close camera: %v", cerr)
			}
			t.retry(ctx, err)
			continue
		case errors.Is(err, detector.ErrUnavailable):
			t.retry(ctx, err)
			continue
		default:
			t.dropped.Add(1)
			Logf("capture: %v", err)
		}

		if fps > 0 {
			t.sleep(ctx, time.Second/time.Duration(fps))
		}
	}
}

func (t *Tracker) retry(ctx context.Context, err error) {
	t.reconnects.Add(1)
	t.publish(gesture.NoHand())
	d := t.backoff.Next()
	Logf("capture: %v, retrying in %s", err, d)
	t.sleep(ctx, d)
}

// Step reads and analyzes a single frame and returns the frame rate to
// capture the next one at. A malformed detection degrades to no hand.
func (t *Tracker) Step() (int, error) {
	frame, err := t.camera.ReadFrame()
	if err != nil {
		return 0, err
	}
	defer frame.Close()
	t.frames.Add(1)

	fps := t.config.Motion.ActiveFPS
	if t.motion != nil {
		moving, _ := t.motion.Detect(frame)
		now := t.now()
		fps = t.cadence.Update(moving, now)
		active := t.cadence.Active(now)
		t.moving.Store(active)
		if !active {
			return fps, nil
		}
	} else {
		t.moving.Store(true)
	}

	hands, err := t.detector.Detect(frame)
	switch {
	case errors.Is(err, detector.ErrInvalidInput):
		t.dropped.Add(1)
		Logf("capture: dropping detection: %v", err)
		t.publish(gesture.NoHand())
		return fps, nil
	case err != nil:
		return fps, err
	}

	t.publish(t.classifier.ClassifyHands(hands))
	return fps, nil
}

func (t *Tracker) publish(r gesture.Result) {
	if t.stopped.Load() {
		return
	}
	for _, sink := range t.sinks {
		sink(r)
	}
}

func sleepContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
