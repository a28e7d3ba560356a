// MeshDeck - a desktop 3D asset browser with a PBR preview viewport.
package main

import (
	"flag"
	"fmt"
	"os"
	"runtime"

	"github.com/veandco/go-sdl2/sdl"
	"go.uber.org/zap"

	"github.com/Faultbox/meshdeck/internal/config"
	"github.com/Faultbox/meshdeck/internal/logger"
)

// fatal reports a startup failure on stderr and in a native message
// box, then exits. Safe to call before any window exists.
func fatal(msg string, err error) {
	text := fmt.Sprintf("%s: %v", msg, err)
	fmt.Fprintln(os.Stderr, text)
	_ = sdl.ShowSimpleMessageBox(sdl.MESSAGEBOX_ERROR, "MeshDeck", text, nil)
	os.Exit(1)
}

func main() {
	runtime.LockOSThread()
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fatal("Error loading config", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatal("Error initializing logger", err)
	}
	defer logger.Sync()

	app, err := NewApp(cfg)
	if err != nil {
		logger.Log.Error("startup failed", zap.Error(err))
		fatal("MeshDeck failed to start", err)
	}
	defer app.Close()

	if dir := config.StartDirectory(); dir != "" {
		app.OpenDirectory(dir)
	} else if app.settings.LastDirectory != "" {
		app.OpenDirectory(app.settings.LastDirectory)
	}

	app.Run()
}
