package logging

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

// Logger wraps slog.Logger with application-specific functionality
type Logger struct {
	*slog.Logger
}

// ParseLevel maps a config string onto a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New creates a new logger with the specified level
func New(level string) *Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler)

	return &Logger{Logger: logger}
}

// NewWithFile writes JSON logs to stdout and to logFile. If the file cannot be
// opened the logger falls back to stdout only. The returned cleanup closes the file.
func NewWithFile(level, logFile string) (*Logger, func() error) {
	if logFile == "" {
		return New(level), func() error { return nil }
	}

	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	stdoutHandler := slog.NewJSONHandler(os.Stdout, opts)

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		logger := &Logger{Logger: slog.New(stdoutHandler)}
		logger.Error("failed to open log file, using stdout only", "error", err, "file", logFile)
		return logger, func() error { return nil }
	}

	fileHandler := slog.NewJSONHandler(file, opts)
	logger := &Logger{Logger: slog.New(slogmulti.Fanout(stdoutHandler, fileHandler))}
	return logger, file.Close
}

// Default returns a logger with default settings
func Default() *Logger {
	return New("info")
}
