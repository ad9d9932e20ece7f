// Package logger provides standardized logging utilities for the legalizer and its driver.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// ----------------------------
// ----- Type definitions -----
// ----------------------------

// LogLevel represents the logging level.
type LogLevel int

// Config holds logger configuration.
type Config struct {
	Level     LogLevel  // Minimum level written.
	Format    string    // "text" or "json".
	Output    io.Writer // Destination, os.Stderr if nil and LogFile is empty.
	AddSource bool      // Annotate records with the calling source line.
	LogFile   string    // Optional file the records are appended to.
}

// ---------------------
// ----- Constants -----
// ---------------------

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// -------------------
// ----- Globals -----
// -------------------

// Global logger instance.
var defaultLogger *slog.Logger

// ---------------------
// ----- Functions -----
// ---------------------

// DefaultConfig returns the default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelWarn,
		Format: "text",
		Output: os.Stderr,
	}
}

// Init initializes the global logger with the given configuration.
func Init(cfg Config) error {
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.LogFile != "" {
		file, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		output = file
	}

	opts := &slog.HandlerOptions{
		Level:     toSlogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(output, opts)
	} else {
		handler = slog.NewTextHandler(output, opts)
	}

	defaultLogger = slog.New(handler)
	return nil
}

// Discard silences the global logger.
func Discard() {
	defaultLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ParseLevel maps a level name to a LogLevel. Unknown names map to LevelInfo.
func ParseLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func toSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LevelDebug:
		return slog.LevelDebug
	case LevelInfo:
		return slog.LevelInfo
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Debug logs a debug message.
func Debug(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Debug(msg, args...)
	}
}

// Info logs an info message.
func Info(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Info(msg, args...)
	}
}

// Warn logs a warning message.
func Warn(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Warn(msg, args...)
	}
}

// Error logs an error message.
func Error(msg string, args ...any) {
	if defaultLogger != nil {
		defaultLogger.Error(msg, args...)
	}
}

// With returns a new logger with the given attributes.
func With(args ...any) *slog.Logger {
	if defaultLogger != nil {
		return defaultLogger.With(args...)
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil)).With(args...)
}

// Compiler-specific logging helpers

// LogPhase logs the start of a compilation phase.
func LogPhase(phase string) {
	Info("Starting phase", "phase", phase)
}

// LogPhaseComplete logs the completion of a compilation phase.
func LogPhaseComplete(phase string, duration string) {
	Info("Completed phase", "phase", phase, "duration", duration)
}

// LogParsing logs parsing activity.
func LogParsing(file string, funcCount int) {
	Debug("Parsing complete", "file", file, "functions", funcCount)
}

// LogLegalized logs the completion of legalization of a single function.
func LogLegalized(funcName string, iterations int, steps int, instrCount int) {
	Debug("Legalization complete",
		"function", funcName,
		"iterations", iterations,
		"steps", steps,
		"instructions", instrCount)
}

// LogError logs a compilation error.
func LogError(phase string, file string, msg string) {
	Error("Compilation error",
		"phase", phase,
		"file", file,
		"message", msg)
}

// LogCompilerComplete logs compiler completion.
func LogCompilerComplete(success bool, duration string) {
	if success {
		Info("Compilation successful", "duration", duration)
	} else {
		Error("Compilation failed", "duration", duration)
	}
}
