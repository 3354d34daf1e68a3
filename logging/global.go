// Package logging wires log/slog to the console and a weekly rotating file,
// and provides the request logging middleware.
package logging

import (
	"context"
	"log"
	"log/slog"
	"os"
	"strings"
	"testing"

	"github.com/giygas/httpstats/config"
)

type LoggingService struct {
	Logger *slog.Logger
	rotate *RotatingLogger
}

var DefaultLoggingService *LoggingService

// InitLogger builds the console+file logger and installs it as the slog
// default. If the log directory cannot be used it falls back to console only.
func InitLogger(logDir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	consoleLevel := GetConsoleLogLevel(env, logLevel, false)
	consoleHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: consoleLevel})

	service := &LoggingService{}

	if err := os.MkdirAll(logDir, 0755); err != nil {
		service.Logger = slog.New(consoleHandler)
		service.Logger.Error("Failed to create logs directory, logging to console only", "error", err)
	} else {
		rl := NewRotatingLogger(logDir, retentionWeeks, maxFileSize)
		rl.startCleanup()
		fileHandler := slog.NewJSONHandler(rl, &slog.HandlerOptions{Level: GetFileLogLevel()})

		service.rotate = rl
		service.Logger = slog.New(&multiHandler{handlers: []slog.Handler{consoleHandler, fileHandler}})
	}

	DefaultLoggingService = service
	slog.SetDefault(service.Logger)
}

// Close flushes and closes the rotating log file, if any
func Close() error {
	if DefaultLoggingService == nil || DefaultLoggingService.rotate == nil {
		return nil
	}
	return DefaultLoggingService.rotate.Close()
}

// ResetForTest initialises the global logger in dir and restores the
// previous state when the test ends.
func ResetForTest(t testing.TB, dir string, env config.Environment, logLevel string, retentionWeeks int, maxFileSize int64) {
	t.Helper()
	prev := DefaultLoggingService
	prevDefault := slog.Default()

	InitLogger(dir, env, logLevel, retentionWeeks, maxFileSize)

	t.Cleanup(func() {
		_ = Close()
		DefaultLoggingService = prev
		slog.SetDefault(prevDefault)
	})
}

// parseLogLevel maps a LOG_LEVEL value to a slog level, defaulting to info
func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// GetConsoleLogLevel picks the console level. An explicit LOG_LEVEL wins,
// except in tests where the console stays quiet unless verbose is set.
func GetConsoleLogLevel(env config.Environment, logLevel string, verbose bool) slog.Level {
	if env == config.EnvTest {
		if verbose {
			return slog.LevelInfo
		}
		return slog.LevelError
	}

	if logLevel != "" {
		return parseLogLevel(logLevel)
	}

	switch env {
	case config.EnvProduction, config.EnvStaging:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// GetFileLogLevel keeps everything in the file
func GetFileLogLevel() slog.Level {
	return slog.LevelDebug
}

func logger(fallbackLevel slog.Level) *slog.Logger {
	if DefaultLoggingService == nil || DefaultLoggingService.Logger == nil {
		// Fallback to console logger if not initialized
		return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: fallbackLevel}))
	}
	return DefaultLoggingService.Logger
}

// levelWriter forwards each line written by a standard library logger to
// the current logging service at a fixed level.
type levelWriter struct {
	level slog.Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	logger(w.level).Log(context.Background(), w.level, strings.TrimSpace(string(p)))
	return len(p), nil
}

// StdLogger returns a *log.Logger for net/http components that only accept
// one. Lines end up in the same console and file outputs as slog records.
func StdLogger(level slog.Level) *log.Logger {
	return log.New(levelWriter{level: level}, "", 0)
}

// Package-level functions for direct access

func Info(msg string, args ...any) {
	logger(slog.LevelInfo).Info(msg, args...)
}

func Error(msg string, args ...any) {
	logger(slog.LevelError).Error(msg, args...)
}

func Warn(msg string, args ...any) {
	logger(slog.LevelWarn).Warn(msg, args...)
}

func Debug(msg string, args ...any) {
	logger(slog.LevelDebug).Debug(msg, args...)
}
