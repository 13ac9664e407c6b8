// Package logging provides the leveled logger that main constructs once and passes to
// every component.
package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// Level is a log verbosity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel accepts debug|info|warn|error; anything else is info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes leveled lines through a standard library logger.
type Logger struct {
	out   io.Writer
	std   *log.Logger
	level Level
}

// New creates a Logger writing to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		out:   w,
		std:   log.New(w, "", log.LstdFlags|log.Lmicroseconds),
		level: level,
	}
}

// Discard returns a Logger that drops everything. Used in tests.
func Discard() *Logger {
	return New(io.Discard, LevelError+1)
}

// Setup builds the process logger. When toFile is set, output goes to stdout and to file.
// The returned closer must be closed on shutdown.
func Setup(level, file string, toFile bool) (*Logger, io.Closer, error) {
	lvl := ParseLevel(level)
	if !toFile {
		return New(os.Stdout, lvl), nopCloser{}, nil
	}
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file %s: %w", file, err)
	}
	return New(io.MultiWriter(os.Stdout, f), lvl), f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Writer exposes the underlying writer so request logging can share it.
func (l *Logger) Writer() io.Writer { return l.out }

// Level reports the configured verbosity.
func (l *Logger) Level() Level { return l.level }

func (l *Logger) logf(lvl Level, tag, format string, args ...any) {
	if lvl < l.level {
		return
	}
	l.std.Printf(tag+" "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(LevelDebug, "DEBUG", format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(LevelInfo, "INFO", format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(LevelWarn, "WARN", format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(LevelError, "ERROR", format, args...) }
