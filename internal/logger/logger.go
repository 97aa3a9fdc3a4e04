// Package logger provides a lightweight, centralized logging facility
// with configurable verbosity levels.
//
// Verbosity levels (in increasing order):
//
//	Error < Warn < Info < Debug < Trace
//
// Output goes to stderr, and optionally to a size-rotated log file.
//
// Example usage:
//
//	logger.Configure(logger.Options{Level: "debug", File: "pricer.log"})
//	logger.Infof("pricing chain for %s", underlying)
//	logger.Debugf("spot=%f vol=%f", spot, vol)
package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents a logging verbosity level.
// Higher values mean more verbose logging.
type Level int

const (
	Error Level = iota // Error logs only failures.
	Warn               // Warn logs recoverable problems, e.g. skipped quotes.
	Info               // Info logs high-level application progress.
	Debug              // Debug logs detailed diagnostic information.
	Trace              // Trace logs very fine-grained execution details.
)

// current holds the active verbosity level.
// Only messages with level <= current are logged.
var current atomic.Int32

var std = log.New(os.Stderr, "", log.LstdFlags|log.Lshortfile)

func init() {
	current.Store(int32(Info))
}

// Options configures the package logger.
type Options struct {
	Level      string // error, warn, info, debug, trace
	File       string // optional rotating log file
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool
}

// Configure applies opts. With a File set, output is written to both stderr
// and a lumberjack-rotated file.
func Configure(opts Options) error {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}
	SetLevel(lvl)

	if opts.File == "" {
		SetOutput(os.Stderr)
		return nil
	}
	SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}))
	return nil
}

// ParseLevel maps a level name to a Level. Empty means Info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return Error, nil
	case "warn", "warning":
		return Warn, nil
	case "", "info":
		return Info, nil
	case "debug":
		return Debug, nil
	case "trace", "verbose":
		return Trace, nil
	}
	return Info, fmt.Errorf("unknown log level %q", s)
}

// SetLevel sets the global logging verbosity.
func SetLevel(l Level) {
	current.Store(int32(l))
}

// SetOutput redirects log output, e.g. to a buffer in tests.
func SetOutput(w io.Writer) {
	std.SetOutput(w)
}

// Enabled reports whether messages at l are currently written.
func Enabled(l Level) bool {
	return Level(current.Load()) >= l
}

// logf checks verbosity and delegates to the standard library logger.
func logf(l Level, prefix, format string, args ...any) {
	if Enabled(l) {
		_ = std.Output(3, prefix+fmt.Sprintf(format, args...))
	}
}

// Errorf logs an error-level message.
func Errorf(format string, args ...any) {
	logf(Error, "[ERROR] ", format, args...)
}

// Warnf logs a warning.
func Warnf(format string, args ...any) {
	logf(Warn, "[WARN]  ", format, args...)
}

// Infof logs an informational message.
func Infof(format string, args ...any) {
	logf(Info, "[INFO]  ", format, args...)
}

// Debugf logs debugging information.
func Debugf(format string, args ...any) {
	logf(Debug, "[DEBUG] ", format, args...)
}

// Tracef logs very detailed execution traces.
// Use this sparingly due to high volume.
func Tracef(format string, args ...any) {
	logf(Trace, "[TRACE] ", format, args...)
}
