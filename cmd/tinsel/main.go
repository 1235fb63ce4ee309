package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gopxl/mainthread/v2"

	"github.com/ayusman/tinsel/internal/app"
)

func main() {
	var (
		addr     = flag.String("addr", ":8080", "HTTP listen address (empty disables the server)")
		tuning   = flag.String("tuning", "", "tuning JSON file (default: built-in values)")
		dataDir  = flag.String("data", "", "data directory (default: ~/.tinsel)")
		webDir   = flag.String("web", "", "static web UI directory (default: search common locations)")
		hookDir  = flag.String("hooks", "", "transition hook directory (default: <data>/hooks)")
		window   = flag.Bool("window", false, "show the tree in a desktop window")
		withTray = flag.Bool("tray", false, "show a system tray menu")
		console  = flag.Bool("tui", false, "run the terminal console")
		noCamera = flag.Bool("no-camera", false, "disable gesture tracking")
	)
	flag.Parse()

	fmt.Println("Tinsel - Gesture-driven particle tree")

	if *dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			log.Fatalf("Failed to get home directory: %v", err)
		}
		*dataDir = filepath.Join(homeDir, ".tinsel")
	}
	if *hookDir == "" {
		*hookDir = filepath.Join(*dataDir, "hooks")
	}
	if *webDir == "" {
		*webDir = findWebDir(*dataDir)
	}
	if *webDir != "" {
		fmt.Printf("Serving static files from: %s\n", *webDir)
	}
	if *console {
		// The console owns the terminal.
		log.SetOutput(openLogFile(filepath.Join(*dataDir, "tinsel.log")))
	}

	cfg := app.Config{
		TuningPath: *tuning,
		DataDir:    *dataDir,
		StaticDir:  *webDir,
		HookDir:    *hookDir,
		Addr:       *addr,
		Camera:     !*noCamera,
		Window:     *window,
		Tray:       *withTray,
		Console:    *console,
	}

	var runErr error
	mainthread.Run(func() {
		runErr = run(cfg)
	})
	if runErr != nil {
		log.Fatalf("tinsel: %v", runErr)
	}
}

func run(cfg app.Config) error {
	a, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

// openLogFile opens path for appending log output, falling back to
// discarding it.
func openLogFile(path string) *os.File {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err == nil {
		if f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
			return f
		}
	}
	f, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0)
	if err != nil {
		return os.Stderr
	}
	return f
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and <dataDir>/web.
// Returns the first existing directory or empty string if none found.
func findWebDir(dataDir string) string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	dataWebDir := filepath.Join(dataDir, "web")
	if info, err := os.Stat(dataWebDir); err == nil && info.IsDir() {
		return dataWebDir
	}

	return ""
}
