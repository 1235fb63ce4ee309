package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/tinsel/internal/animation"
)

// Encoder compresses a frame for streaming.
type Encoder func(img *image.RGBA) ([]byte, error)

// JPEGEncoder encodes img as JPEG through OpenCV.
func JPEGEncoder(img *image.RGBA) ([]byte, error) {
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	return bytes.Clone(buf.GetBytes()), nil
}

// Stream keeps the most recent encoded frame for HTTP viewers. Frames are
// only encoded while at least one viewer is subscribed, and at most maxFPS
// times per second.
type Stream struct {
	encode   Encoder
	interval time.Duration
	now      func() time.Time
	viewers  atomic.Int32

	mu     sync.Mutex
	last   time.Time
	data   []byte
	seq    uint64
	notify chan struct{}
}

// NewStream creates a stream surface. A nil encoder means JPEGEncoder.
func NewStream(maxFPS int, encode Encoder) *Stream {
	if encode == nil {
		encode = JPEGEncoder
	}
	if maxFPS <= 0 {
		maxFPS = 15
	}
	return &Stream{
		encode:   encode,
		interval: time.Second / time.Duration(maxFPS),
		now:      time.Now,
		notify:   make(chan struct{}),
	}
}

// Subscribe registers a viewer. The returned function unregisters it.
func (s *Stream) Subscribe() func() {
	s.viewers.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() { s.viewers.Add(-1) })
	}
}

// Viewers returns the number of subscribed viewers.
func (s *Stream) Viewers() int {
	return int(s.viewers.Load())
}

// Present encodes img when a viewer is waiting and the frame interval has
// elapsed.
func (s *Stream) Present(_ context.Context, img *image.RGBA, f *animation.Frame) error {
	if s.viewers.Load() == 0 {
		return nil
	}

	s.mu.Lock()
	now := s.now()
	due := s.seq == 0 || now.Sub(s.last) >= s.interval
	if due {
		s.last = now
	}
	s.mu.Unlock()
	if !due {
		return nil
	}

	data, err := s.encode(img)
	if err != nil {
		return fmt.Errorf("encode stream frame %d: %w", f.Seq, err)
	}

	s.mu.Lock()
	s.data = data
	s.seq++
	close(s.notify)
	s.notify = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// Latest returns the most recent encoded frame and its sequence number.
// The sequence is 0 before the first frame.
func (s *Stream) Latest() ([]byte, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data, s.seq
}

// Next blocks until a frame newer than after is available or ctx is done.
func (s *Stream) Next(ctx context.Context, after uint64) ([]byte, uint64, error) {
	for {
		s.mu.Lock()
		if s.seq > after {
			data, seq := s.data, s.seq
			s.mu.Unlock()
			return data, seq, nil
		}
		wait := s.notify
		s.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, after, ctx.Err()
		case <-wait:
		}
	}
}
