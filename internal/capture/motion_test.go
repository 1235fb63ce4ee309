package capture

import (
	"testing"
	"time"

	"gocv.io/x/gocv"
)

func TestCadence(t *testing.T) {
	cfg := DefaultMotionConfig()
	c := NewCadence(cfg)
	start := time.Unix(0, 0)

	if got := c.Update(false, start); got != cfg.ActiveFPS {
		t.Errorf("first update = %d, want active %d", got, cfg.ActiveFPS)
	}
	if got := c.Update(false, start.Add(cfg.IdleTimeout)); got != cfg.ActiveFPS {
		t.Errorf("at timeout = %d, want active %d", got, cfg.ActiveFPS)
	}

	idleAt := start.Add(cfg.IdleTimeout + time.Millisecond)
	if got := c.Update(false, idleAt); got != cfg.IdleFPS {
		t.Errorf("after timeout = %d, want idle %d", got, cfg.IdleFPS)
	}
	if c.Active(idleAt) {
		t.Error("cadence should be idle after the timeout")
	}

	wake := idleAt.Add(time.Second)
	if got := c.Update(true, wake); got != cfg.ActiveFPS {
		t.Errorf("after motion = %d, want active %d", got, cfg.ActiveFPS)
	}
	if !c.Active(wake) {
		t.Error("motion should reactivate the cadence")
	}
}

func TestMotionDetector_NoMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	frame1 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame1.Close()
	frame2 := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame2.Close()

	detected, changed := md.Detect(&frame1)
	if detected || changed != 0 {
		t.Errorf("first frame = (%v, %f), want baseline only", detected, changed)
	}

	if detected, changed = md.Detect(&frame2); detected {
		t.Errorf("identical frames reported motion, changed = %f", changed)
	}
}

func TestMotionDetector_WithMotion(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	black := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer black.Close()
	white := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer white.Close()
	white.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&black)
	detected, changed := md.Detect(&white)
	if !detected {
		t.Errorf("black to white should be motion, changed = %f", changed)
	}
	if changed < 50 {
		t.Errorf("changed = %f, want > 50 for a full-frame change", changed)
	}
}

func TestMotionDetector_SizeChangeRebaselines(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)
	defer md.Close()

	small := gocv.NewMatWithSize(120, 160, gocv.MatTypeCV8UC3)
	defer small.Close()
	large := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer large.Close()
	large.SetTo(gocv.NewScalar(255, 255, 255, 0))

	md.Detect(&small)
	if detected, _ := md.Detect(&large); detected {
		t.Error("a resolution change should set a new baseline, not report motion")
	}
}

func TestMotionDetector_ResetAndClose(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping test that requires GoCV Mat creation")
	}

	md := NewMotionDetector(1.0)

	frame := gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3)
	defer frame.Close()

	md.Detect(&frame)
	if !md.primed {
		t.Error("detector should be primed after the first frame")
	}

	md.Reset()
	if md.primed {
		t.Error("Reset should clear the baseline")
	}

	md.Detect(&frame)
	md.Close()
	md.Close()

	if detected, _ := md.Detect(&frame); detected {
		t.Error("first frame after Close should only set the baseline")
	}
	md.Close()
}

func TestMotionDetector_EmptyFrame(t *testing.T) {
	md := NewMotionDetector(1.0)
	defer md.Close()

	if detected, changed := md.Detect(nil); detected || changed != 0 {
		t.Errorf("Detect(nil) = (%v, %f), want (false, 0)", detected, changed)
	}
}
