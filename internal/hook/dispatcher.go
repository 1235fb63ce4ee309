package hook

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/ayusman/tinsel/internal/scene"
)

// Logf reports hook failures. Tests may replace it.
var Logf = log.Printf

// ErrDispatcherRunning is returned by Start on a running dispatcher.
var ErrDispatcherRunning = errors.New("hook dispatcher already running")

const queueSize = 16

// Dispatcher runs matching hooks for director transitions on its own
// goroutine, one event at a time. Notify never blocks: when the queue is
// full the event is dropped.
type Dispatcher struct {
	manager  *Manager
	executor *Executor
	now      func() time.Time

	queue chan Event

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewDispatcher creates a dispatcher over the hooks the manager discovered.
func NewDispatcher(m *Manager, e *Executor) *Dispatcher {
	done := make(chan struct{})
	close(done)
	return &Dispatcher{
		manager:  m,
		executor: e,
		now:      time.Now,
		queue:    make(chan Event, queueSize),
		done:     done,
	}
}

// Notify queues a transition. It has the signature of a director listener.
func (d *Dispatcher) Notify(t scene.Transition) {
	select {
	case d.queue <- NewEvent(t, d.now()):
	default:
		Logf("hook: queue full, dropping %s -> %s", t.From, t.To)
	}
}

// Start launches the dispatch goroutine.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		return ErrDispatcherRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{})
	go d.run(ctx, d.done)
	return nil
}

// Stop cancels the goroutine and waits for it. Queued events that have not
// started are discarded.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel = nil
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	<-done
}

// Done is closed once the dispatch goroutine has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.done
}

func (d *Dispatcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.queue:
			d.dispatch(ctx, ev)
		}
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, ev Event) {
	t := scene.Transition{From: ev.From, To: ev.To, Cause: ev.Cause}
	for _, h := range d.manager.List() {
		if !h.Manifest.Matches(t) {
			continue
		}
		resp, err := d.executor.Execute(ctx, h, ev)
		switch {
		case err != nil:
			Logf("hook: %v", err)
		case !resp.Success:
			Logf("hook %s: %s", h.Manifest.Name, resp.Error)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
