// Package logging configures the process-wide structured logger.
//
// Grounded on the teacher's plain log.Printf style (server/handlers.go,
// server/cmdHandlers.go) generalized to slog so every log line carries
// structured fields (request_id, track_id, lane, ...) instead of baked-in
// string formatting, the way birdnet-go's internal/logging does it.
package logging

import (
	"log/slog"
	"os"
	"sync"
)

var (
	mu      sync.RWMutex
	logger  *slog.Logger
	initted bool
)

// Init sets up the process-wide JSON logger at the given level ("debug",
// "info", "warn", "error"). Safe to call once at startup; subsequent calls
// are no-ops.
func Init(levelName string) {
	mu.Lock()
	defer mu.Unlock()
	if initted {
		return
	}

	var level slog.Level
	switch levelName {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger = slog.New(handler)
	slog.SetDefault(logger)
	initted = true
}

// Default returns the process-wide logger, initializing a sane fallback
// (info level, stdout) if Init was never called.
func Default() *slog.Logger {
	mu.RLock()
	l := logger
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init("info")
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// For returns a logger scoped to one component, e.g. For("exactlane").
func For(component string) *slog.Logger {
	return Default().With("component", component)
}
