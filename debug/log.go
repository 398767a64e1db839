// Package debug is the process-wide logger. It wraps log/slog with JSON
// output so a jam can be followed with `tail -f` while the TUI owns the
// terminal.
package debug

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Log levels accepted by ParseLevel.
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// FileName is the log file written inside the config directory.
const FileName = "debug.log"

var (
	mu       sync.Mutex
	current  = Discard()
	counters = make(map[string]int)
)

// ParseLevel converts a level name to slog.Level. Unknown names mean INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a JSON logger writing to w.
func New(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// Category tags a logger with a subsystem name.
func Category(l *slog.Logger, name string) *slog.Logger {
	if l == nil {
		l = Logger()
	}
	return l.With(slog.String("category", name))
}

// Open creates dir if needed and returns a logger writing to dir/debug.log.
// The file is truncated so each run starts clean.
func Open(dir, level string) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, FileName), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return New(f, level), f, nil
}

// Use installs l as the package logger without owning a file.
func Use(l *slog.Logger) {
	mu.Lock()
	defer mu.Unlock()
	current = l
}

// Disable silences the package logger.
func Disable() {
	mu.Lock()
	defer mu.Unlock()
	current = Discard()
}

// Logger returns the package logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return current
}

// Log writes a printf-style debug line under category.
func Log(category, format string, args ...any) {
	l := Logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug(fmt.Sprintf(format, args...), slog.String("category", category))
}

// LogEvery logs the first call and then every n-th call with the same
// category and format.
func LogEvery(n int, category, format string, args ...any) {
	mu.Lock()
	key := category + format
	counters[key]++
	count := counters[key]
	mu.Unlock()

	if count == 1 || (n > 0 && count%n == 0) {
		Log(category, format+" (every %d, count=%d)", append(args, n, count)...)
	}
}
