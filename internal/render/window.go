package render

import (
	"context"
	"fmt"
	"image"

	"github.com/gopxl/mainthread/v2"
	"gocv.io/x/gocv"

	"github.com/ayusman/tinsel/internal/animation"
	"github.com/ayusman/tinsel/internal/scene"
)

// KeyEscape closes the window.
const KeyEscape = 27

// Key actions understood by the window.
const (
	KeyToggle  = ' '
	KeyClose   = 'c'
	KeyExplode = 'e'
	KeyVision  = 'v'
)

// ButtonForKey maps a window key to a tree button.
func ButtonForKey(key int) (scene.Button, bool) {
	switch key {
	case KeyToggle:
		return scene.Toggle, true
	case KeyClose:
		return scene.Close, true
	case KeyExplode:
		return scene.Explode, true
	}
	return scene.Toggle, false
}

// Window shows frames in a native OpenCV window. All window calls run on the
// main thread, so the program must be started under mainthread.Run.
type Window struct {
	title string
	win   *gocv.Window
	onKey func(key int)
}

// OpenWindow creates the window. onKey, if set, receives every key pressed
// while the window has focus, except KeyEscape.
func OpenWindow(title string, onKey func(key int)) *Window {
	w := &Window{title: title, onKey: onKey}
	mainthread.Call(func() {
		w.win = gocv.NewWindow(title)
	})
	return w
}

// Present shows img. It reports animation.ErrRenderSurfaceLost once the
// window has been closed or Escape was pressed.
func (w *Window) Present(_ context.Context, img *image.RGBA, _ *animation.Frame) error {
	key := -1
	var lost bool
	err := mainthread.CallErr(func() error {
		if w.win.GetWindowProperty(gocv.WindowPropertyVisible) < 1 {
			lost = true
			return nil
		}
		mat, err := gocv.ImageToMatRGB(img)
		if err != nil {
			return err
		}
		defer mat.Close()

		w.win.IMShow(mat)
		if k := w.win.WaitKey(1); k >= 0 {
			key = k & 0xff
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("window %q: %w", w.title, err)
	}

	if lost || key == KeyEscape {
		return fmt.Errorf("window %q: %w", w.title, animation.ErrRenderSurfaceLost)
	}
	if key >= 0 && w.onKey != nil {
		w.onKey(key)
	}
	return nil
}

// Close destroys the window.
func (w *Window) Close() error {
	return mainthread.CallErr(func() error {
		return w.win.Close()
	})
}
