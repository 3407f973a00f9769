// Package logging provides the process-wide zerolog logger and per-component
// child loggers.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu            sync.RWMutex
	defaultLogger = newLogger(os.Stderr)
)

func newLogger(w io.Writer) zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger().
		Level(zerolog.InfoLevel)
}

// GetDefaultLogger returns the process logger.
func GetDefaultLogger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()

	return defaultLogger
}

// SetDefaultLogger replaces the process logger.
func SetDefaultLogger(l zerolog.Logger) {
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
}

// SetOutput redirects the process logger to w. JSON output is used unless
// console is set.
func SetOutput(w io.Writer, console bool) {
	mu.Lock()
	defer mu.Unlock()

	lvl := defaultLogger.GetLevel()
	if console {
		defaultLogger = newLogger(w).Level(lvl)
		return
	}

	defaultLogger = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// SetLevel parses a level name ("debug", "info", "warn", ...) and applies
// it to the process logger.
func SetLevel(name string) error {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return err
	}

	mu.Lock()
	defaultLogger = defaultLogger.Level(lvl)
	mu.Unlock()

	return nil
}

// Component returns a child of the process logger tagged with name.
func Component(name string) zerolog.Logger {
	return GetDefaultLogger().With().Str("component", name).Logger()
}
