package app

import (
	"context"
	"log"
	"os/exec"
	"runtime"
	"strings"

	"github.com/gopxl/mainthread/v2"

	"github.com/ayusman/tinsel/internal/render"
	"github.com/ayusman/tinsel/internal/scene"
	"github.com/ayusman/tinsel/internal/tray"
)

// openWindow attaches a desktop window to the render pipeline. Keys pressed
// in the window drive the director.
func (a *App) openWindow() *render.Window {
	w := render.OpenWindow("tinsel", a.handleKey)
	a.pipeline.Attach(w)
	return w
}

// handleKey maps window keys onto buttons and the vision toggle.
func (a *App) handleKey(key int) {
	if key == render.KeyVision {
		a.director.SetVision(!a.director.Vision())
		return
	}
	if b, ok := render.ButtonForKey(key); ok {
		a.director.Press(b)
	}
}

func newTray(a *App) *tray.Tray {
	t := tray.New()
	t.OnVision(a.director.SetVision)
	t.OnButton(func(b scene.Button) { a.director.Press(b) })
	t.OnOpenUI(func() { openBrowser(uiURL(a.config.Addr)) })
	t.OnQuit(a.Stop)
	a.director.OnChange(func(tr scene.Transition) { t.SetState(tr.To) })
	return t
}

// runTray runs the tray loop on the main thread until the user quits or ctx
// is cancelled.
func runTray(ctx context.Context, t *tray.Tray) {
	stop := context.AfterFunc(ctx, t.Quit)
	defer stop()
	mainthread.Call(t.Run)
}

func uiURL(addr string) string {
	if strings.HasPrefix(addr, ":") {
		addr = "localhost" + addr
	}
	return "http://" + addr + "/"
}

func openBrowser(url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Printf("failed to open browser: %v", err)
		return
	}
	go cmd.Wait()
}
