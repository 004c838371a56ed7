package logging

import (
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	once   sync.Once
	level  = new(slog.LevelVar)
	logger *slog.Logger
)

// Configure initializes the shared JSON logger writing to w (stdout when nil).
// Only the first call picks the writer; later calls return the same logger.
func Configure(w io.Writer) *slog.Logger {
	once.Do(func() {
		if w == nil {
			w = os.Stdout
		}
		handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
		logger = slog.New(handler)
	})
	return logger
}

// SetVerbose switches the shared logger between INFO and DEBUG.
func SetVerbose(verbose bool) {
	if verbose {
		level.Set(slog.LevelDebug)
		return
	}
	level.Set(slog.LevelInfo)
}

// Logger returns the configured slog logger, configuring it on first use if necessary.
func Logger() *slog.Logger {
	return Configure(nil)
}
