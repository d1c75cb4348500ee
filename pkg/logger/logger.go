// Package logger provides the process-wide log sink for autopilot.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	globalLogger = zerolog.New(io.Discard)
	logFile      *os.File
	mu           sync.Mutex
)

// Init initializes the global logger with the specified log file path.
func Init(logPath string) error {
	f, err := os.OpenFile(logPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	mu.Lock()
	defer mu.Unlock()

	// Close previous log file if exists
	if logFile != nil {
		logFile.Close()
	}
	logFile = f
	globalLogger = newLogger(f, zerolog.DebugLevel)
	return nil
}

// InitWriter points the global logger at w. Used by the CLI for console
// output and by tests to capture log lines.
func InitWriter(w io.Writer, level zerolog.Level) {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = newLogger(w, level)
}

func newLogger(w io.Writer, level zerolog.Level) zerolog.Logger {
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Close closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logFile.Close()
		logFile = nil
	}
	globalLogger = zerolog.New(io.Discard)
}

// For returns a logger tagged with the given module name.
func For(module string) zerolog.Logger {
	mu.Lock()
	defer mu.Unlock()

	return globalLogger.With().Str("module", module).Logger()
}

// Info logs an info message.
func Info(format string, v ...interface{}) {
	log(zerolog.InfoLevel, format, v...)
}

// Debug logs a debug message.
func Debug(format string, v ...interface{}) {
	log(zerolog.DebugLevel, format, v...)
}

// Error logs an error message.
func Error(format string, v ...interface{}) {
	log(zerolog.ErrorLevel, format, v...)
}

// Warn logs a warning message.
func Warn(format string, v ...interface{}) {
	log(zerolog.WarnLevel, format, v...)
}

func log(level zerolog.Level, format string, v ...interface{}) {
	mu.Lock()
	l := globalLogger
	mu.Unlock()

	l.WithLevel(level).Msgf(format, v...)
}

// ConsoleWriter returns a human-readable zerolog writer for terminal output.
func ConsoleWriter(w io.Writer, noColor bool) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	}
}
