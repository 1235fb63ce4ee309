package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/gesture"
)

type resultLog struct {
	mu      sync.Mutex
	results []gesture.Result
}

func (l *resultLog) add(r gesture.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.results = append(l.results, r)
}

func (l *resultLog) snapshot() []gesture.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]gesture.Result(nil), l.results...)
}

type sleepLog struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepLog) sleep(ctx context.Context, d time.Duration) bool {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	// Yield without waiting out the delay.
	time.Sleep(time.Millisecond)
	return ctx.Err() == nil
}

func (s *sleepLog) retries() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []time.Duration
	for _, d := range s.delays {
		if d >= 500*time.Millisecond {
			out = append(out, d)
		}
	}
	return out
}

func muteLog(t *testing.T) {
	t.Helper()
	orig := Logf
	Logf = func(string, ...any) {}
	t.Cleanup(func() { Logf = orig })
}

func newTestTracker(t *testing.T, cam Camera, det detector.Detector, log *resultLog) *Tracker {
	t.Helper()
	muteLog(t)
	cfg := DefaultTrackerConfig()
	cfg.GateOnMotion = false
	return NewTracker(cfg, cam, det, gesture.NewClassifier(gesture.DefaultConfig()), log.add)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestBackoff(t *testing.T) {
	b := Backoff{Min: 500 * time.Millisecond, Max: 8 * time.Second}

	want := []time.Duration{
		500 * time.Millisecond,
		time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		8 * time.Second,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("Next() #%d = %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if got := b.Next(); got != 500*time.Millisecond {
		t.Errorf("Next() after Reset = %v, want 500ms", got)
	}
}

func TestTracker_Step(t *testing.T) {
	frames := blankFrames(1)
	defer closeFrames(frames)

	tests := []struct {
		name    string
		hands   []detector.HandLandmarks
		err     error
		want    gesture.Gesture
		wantErr error
	}{
		{name: "fist", hands: []detector.HandLandmarks{detector.FistLandmarks()}, want: gesture.Fist},
		{name: "open", hands: []detector.HandLandmarks{detector.OpenPalmLandmarks()}, want: gesture.Open},
		{name: "no hand", want: gesture.None},
		{
			name: "malformed landmarks degrade to no hand",
			err:  fmt.Errorf("parse: %w", detector.ErrInvalidInput),
			want: gesture.None,
		},
		{
			name:    "detector down",
			err:     fmt.Errorf("start: %w", detector.ErrUnavailable),
			wantErr: detector.ErrUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cam := NewMockCamera(frames, true)
			cam.Open()
			det := detector.NewMockDetector()
			det.SetHands(tt.hands)
			det.SetError(tt.err)

			var log resultLog
			tr := newTestTracker(t, cam, det, &log)

			_, err := tr.Step()
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Step() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Step() error = %v", err)
			}

			got := log.snapshot()
			if len(got) != 1 {
				t.Fatalf("published %d results, want 1", len(got))
			}
			if got[0].Gesture != tt.want {
				t.Errorf("published %s, want %s", got[0].Gesture, tt.want)
			}
		})
	}
}

func TestTracker_RetriesUnavailableCamera(t *testing.T) {
	frames := blankFrames(1)
	defer closeFrames(frames)

	cam := NewMockCamera(frames, true)
	cam.FailOpens(3)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.OpenPalmLandmarks()})

	var log resultLog
	tr := newTestTracker(t, cam, det, &log)
	sleeps := &sleepLog{}
	tr.sleep = sleeps.sleep

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := tr.Start(context.Background()); !errors.Is(err, ErrTrackerRunning) {
		t.Errorf("second Start() = %v, want ErrTrackerRunning", err)
	}

	waitFor(t, "an OPEN result", func() bool {
		for _, r := range log.snapshot() {
			if r.Gesture == gesture.Open {
				return true
			}
		}
		return false
	})
	tr.Stop()

	retries := sleeps.retries()
	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	if len(retries) != len(want) {
		t.Fatalf("retry delays = %v, want %v", retries, want)
	}
	for i := range want {
		if retries[i] != want[i] {
			t.Errorf("retry %d = %v, want %v", i, retries[i], want[i])
		}
	}

	results := log.snapshot()
	for i := 0; i < 3; i++ {
		if results[i] != gesture.NoHand() {
			t.Errorf("result %d during outage = %+v, want NoHand", i, results[i])
		}
	}

	stats := tr.Stats()
	if stats.Reconnects != 3 {
		t.Errorf("Reconnects = %d, want 3", stats.Reconnects)
	}
	if stats.Running || stats.Connected {
		t.Errorf("stats after Stop = %+v, want stopped and disconnected", stats)
	}
}

func TestTracker_ReopensAfterReadFailure(t *testing.T) {
	frames := blankFrames(1)
	defer closeFrames(frames)

	cam := NewMockCamera(frames, true)
	det := detector.NewMockDetector()

	var log resultLog
	tr := newTestTracker(t, cam, det, &log)
	sleeps := &sleepLog{}
	tr.sleep = sleeps.sleep

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "first frame", func() bool { return tr.Stats().Frames > 0 })

	cam.FailReads(1)
	waitFor(t, "reopen", func() bool { return cam.Opens() >= 2 && tr.Stats().Frames > 2 })
	tr.Stop()

	if got := tr.Stats().Reconnects; got < 1 {
		t.Errorf("Reconnects = %d, want at least 1", got)
	}
}

// closeFailCamera reports an error from every Close while still closing.
type closeFailCamera struct {
	*MockCamera
}

func (c closeFailCamera) Close() error {
	c.MockCamera.Close()
	return errors.New("device busy")
}

func TestTracker_LogsCloseErrorOnReadFailure(t *testing.T) {
	frames := blankFrames(1)
	defer closeFrames(frames)

	mock := NewMockCamera(frames, true)
	var log resultLog
	tr := newTestTracker(t, closeFailCamera{mock}, detector.NewMockDetector(), &log)
	tr.sleep = (&sleepLog{}).sleep

	var (
		mu     sync.Mutex
		closes int
	)
	Logf = func(format string, args ...any) {
		if strings.HasPrefix(format, "capture: close camera") {
			mu.Lock()
			closes++
			mu.Unlock()
		}
	}
	logged := func() int {
		mu.Lock()
		defer mu.Unlock()
		return closes
	}

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "first frame", func() bool { return tr.Stats().Frames > 0 })

	mock.FailReads(1)
	waitFor(t, "close error logged", func() bool { return logged() >= 1 })
	tr.Stop()
}

func TestTracker_StopDiscardsResults(t *testing.T) {
	frames := blankFrames(1)
	defer closeFrames(frames)

	cam := NewMockCamera(frames, true)
	det := detector.NewMockDetector()
	det.SetHands([]detector.HandLandmarks{detector.FistLandmarks()})

	var log resultLog
	tr := newTestTracker(t, cam, det, &log)
	tr.sleep = (&sleepLog{}).sleep

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitFor(t, "a result", func() bool { return len(log.snapshot()) > 0 })

	tr.Stop()
	tr.Stop()
	<-tr.Done()

	if cam.IsOpen() {
		t.Error("Stop should close the camera")
	}

	n := len(log.snapshot())
	cam.Open()
	if _, err := tr.Step(); err != nil {
		t.Fatalf("Step() after Stop error = %v", err)
	}
	if got := len(log.snapshot()); got != n {
		t.Errorf("results after Stop = %d, want %d", got, n)
	}
}

func TestTracker_StopWithoutStart(t *testing.T) {
	var log resultLog
	tr := newTestTracker(t, NewMockCamera(nil, false), detector.NewMockDetector(), &log)
	tr.Stop()

	select {
	case <-tr.Done():
	default:
		t.Fatal("Done should be closed for a tracker that never started")
	}
}
