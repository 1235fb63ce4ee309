// Package app wires the tinsel components together and runs them.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ayusman/tinsel/internal/animation"
	"github.com/ayusman/tinsel/internal/capture"
	"github.com/ayusman/tinsel/internal/config"
	"github.com/ayusman/tinsel/internal/detector"
	"github.com/ayusman/tinsel/internal/gesture"
	"github.com/ayusman/tinsel/internal/hook"
	"github.com/ayusman/tinsel/internal/render"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/server"
	"github.com/ayusman/tinsel/internal/server/api"
	"github.com/ayusman/tinsel/internal/store"
	"github.com/ayusman/tinsel/internal/tray"
	"github.com/ayusman/tinsel/internal/tui"
)

// HookTimeout bounds a single hook run.
const HookTimeout = 5 * time.Second

// ErrSurfaceConflict is returned when the tray and the window are both
// requested. Both need the main thread for their whole lifetime.
var ErrSurfaceConflict = errors.New("tray and window cannot run together")

// Config holds configuration options for the application.
type Config struct {
	// TuningPath is a tuning JSON file. Empty means built-in defaults.
	TuningPath string
	// DataDir holds the sqlite database.
	DataDir   string
	StaticDir string
	HookDir   string
	Addr      string

	// Camera starts the gesture tracker. Detector overrides the MediaPipe
	// detector; Cam overrides the capture device.
	Camera   bool
	Detector detector.Detector
	Cam      capture.Camera

	Window  bool
	Tray    bool
	Console bool
}

// App is the running tinsel system: tracker, director, animation driver,
// render surfaces and the HTTP server.
type App struct {
	config Config
	tuning *config.Tuning

	store      *store.Store
	classifier *gesture.Classifier
	director   *scene.Director
	scene      *scene.Scene
	gestures   *animation.Cell[gesture.Result]
	driver     *animation.Driver
	pipeline   *render.Pipeline
	images     *render.FileImages
	stream     *render.Stream
	hub        *server.Hub
	server     *server.Server
	hooks      *hook.Dispatcher
	tracker    *capture.Tracker
	detector   detector.Detector
	tray       *tray.Tray

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates the application. Saved tuning overrides in the store are
// layered over the tuning file.
func New(cfg Config) (*App, error) {
	if cfg.Tray && cfg.Window {
		return nil, ErrSurfaceConflict
	}

	base, err := LoadTuning(cfg.TuningPath)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	st, err := store.New(filepath.Join(cfg.DataDir, "tinsel.db"))
	if err != nil {
		return nil, err
	}

	overrides, err := api.LoadOverrides(st)
	if err != nil {
		st.Close()
		return nil, err
	}
	tuning := base.Merge(overrides).Resolved()
	if err := tuning.Validate(); err != nil {
		log.Printf("ignoring saved tuning: %v", err)
		tuning = base.Resolved()
	}

	a := &App{
		config:     cfg,
		tuning:     tuning,
		store:      st,
		classifier: gesture.NewClassifier(tuning.Gesture()),
		director:   scene.NewDirector(*tuning.Seed),
		scene:      scene.New(tuning.Layout()),
		gestures:   &animation.Cell[gesture.Result]{},
		images:     render.NewFileImages(),
		stream:     render.NewStream(tuning.GetStreamFPS(), render.JPEGEncoder),
	}

	if err := api.SyncPhotos(st, a.director); err != nil {
		st.Close()
		return nil, err
	}

	a.pipeline = render.NewPipeline(render.NewRaster(tuning.Render(), a.images), a.stream)
	a.driver = animation.NewDriver(tuning.Animation(), a.scene, a.director, a.gestures, a.pipeline)
	a.hub = server.NewHub(a.director)
	a.director.OnChange(a.hub.PublishTransition)
	a.director.OnChange(func(t scene.Transition) {
		log.Printf("tree %s -> %s (%s)", t.From, t.To, t.Cause)
	})

	if cfg.HookDir != "" {
		manager := hook.NewManager(cfg.HookDir)
		if err := manager.Discover(); err != nil {
			log.Printf("failed to discover hooks: %v", err)
		}
		log.Printf("loaded %d hooks from %s", len(manager.List()), cfg.HookDir)
		a.hooks = hook.NewDispatcher(manager, hook.NewExecutor(HookTimeout))
		a.director.OnChange(a.hooks.Notify)
	}

	if cfg.Tray {
		a.tray = newTray(a)
	}

	if cfg.Camera {
		a.tracker = a.newTracker()
	}

	srvCfg := server.Config{
		StaticDir:   cfg.StaticDir,
		Store:       st,
		Director:    a.director,
		Driver:      a.driver,
		Stream:      a.stream,
		Hub:         a.hub,
		Tuning:      base,
		ApplyTuning: a.ApplyTuning,
		ForgetPhoto: a.images.Forget,
	}
	if a.tracker != nil {
		srvCfg.Tracker = a.tracker
	}
	a.server = server.New(srvCfg)

	return a, nil
}

// LoadTuning reads the tuning file at path, or returns the defaults when path
// is empty.
func LoadTuning(path string) (*config.Tuning, error) {
	if path == "" {
		return config.Defaults(), nil
	}
	t, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return t.Resolved(), nil
}

func (a *App) newTracker() *capture.Tracker {
	det := a.config.Detector
	if det == nil {
		// Try MediaPipe first, fall back to mock detector
		if mp, err := detector.NewMediaPipeDetector(detector.DefaultConfig()); err == nil {
			det = mp
			log.Println("using MediaPipe hand detection")
		} else {
			log.Printf("MediaPipe not available (%v), using mock detector", err)
			det = detector.NewMockDetector()
		}
	}
	a.detector = det

	cam := a.config.Cam
	if cam == nil {
		cam = capture.NewCamera(a.tuning.Camera())
	}

	sinks := []func(gesture.Result){a.gestures.Store, a.hub.Publish}
	if a.tray != nil {
		sinks = append(sinks, func(r gesture.Result) { a.tray.SetGesture(r.Gesture) })
	}
	return capture.NewTracker(a.tuning.Tracker(), cam, det, a.classifier, sinks...)
}

// ApplyTuning applies the parts of t that can change while running. The
// classifier thresholds take effect on the next frame; layout, render and
// camera settings need a restart.
func (a *App) ApplyTuning(t *config.Tuning) error {
	g := t.Gesture()
	if err := a.classifier.SetConfig(g); err != nil {
		return err
	}
	log.Printf("applied gesture thresholds pinch=%.3f fist=%.3f open=%.3f",
		g.PinchThreshold, g.FistThreshold, g.OpenThreshold)
	return nil
}

// Run starts every component and blocks until ctx is cancelled, the user
// quits from the console or tray, or the window is closed. It must be called
// under mainthread.Run when the window or tray is enabled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.mu.Lock()
	a.cancel = cancel
	a.mu.Unlock()

	if a.hooks != nil {
		if err := a.hooks.Start(ctx); err != nil {
			return err
		}
		defer a.hooks.Stop()
	}

	if a.tracker != nil {
		if err := a.tracker.Start(ctx); err != nil {
			return err
		}
		defer a.tracker.Stop()
	}

	if a.config.Window {
		w := a.openWindow()
		defer func() {
			if err := w.Close(); err != nil {
				log.Printf("error closing window: %v", err)
			}
		}()
	}

	a.driver.OnFault(func(err error) {
		log.Printf("render loop stopped: %v", err)
		cancel()
	})
	if err := a.driver.Start(ctx); err != nil {
		return err
	}
	defer a.driver.Stop()

	var wg sync.WaitGroup
	errCh := make(chan error, 2)

	if a.config.Addr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Printf("serving on %s", a.config.Addr)
			if err := a.server.ListenAndServe(ctx, a.config.Addr); err != nil {
				errCh <- fmt.Errorf("server: %w", err)
				cancel()
			}
		}()
	}

	if a.config.Console {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var stats func() capture.TrackerStats
			if a.tracker != nil {
				stats = a.tracker.Stats
			}
			if err := tui.Run(ctx, a.director, stats); err != nil {
				errCh <- fmt.Errorf("console: %w", err)
			}
			cancel()
		}()
	}

	if a.tray != nil {
		runTray(ctx, a.tray)
		cancel()
	}

	<-ctx.Done()
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	if err := a.driver.Err(); err != nil && !errors.Is(err, animation.ErrRenderSurfaceLost) {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Stop asks a running App to shut down.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Close releases the detector and the store.
func (a *App) Close() error {
	var errs []error
	if a.detector != nil {
		if err := a.detector.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close detector: %w", err))
		}
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Director returns the state director.
func (a *App) Director() *scene.Director {
	return a.director
}

// Driver returns the animation driver.
func (a *App) Driver() *animation.Driver {
	return a.driver
}

// Tracker returns the gesture tracker, or nil when the camera is off.
func (a *App) Tracker() *capture.Tracker {
	return a.tracker
}

// Server returns the HTTP handler.
func (a *App) Server() *server.Server {
	return a.server
}

// Store returns the database.
func (a *App) Store() *store.Store {
	return a.store
}

// Tuning returns the effective tuning the app started with.
func (a *App) Tuning() *config.Tuning {
	return a.tuning
}
