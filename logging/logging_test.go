package logging

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/giygas/httpstats/config"
	"github.com/go-chi/chi/v5/middleware"
)

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"ERROR", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLogLevel(tt.input); got != tt.expected {
				t.Errorf("parseLogLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestGetConsoleLogLevel(t *testing.T) {
	tests := []struct {
		name        string
		env         config.Environment
		logLevelStr string
		verbose     bool
		expected    slog.Level
	}{
		{"dev defaults to info", config.EnvDevelopment, "", false, slog.LevelInfo},
		{"test quiet defaults to error", config.EnvTest, "", false, slog.LevelError},
		{"test verbose defaults to info", config.EnvTest, "", true, slog.LevelInfo},
		{"prod defaults to warn", config.EnvProduction, "", false, slog.LevelWarn},
		{"staging defaults to warn", config.EnvStaging, "", false, slog.LevelWarn},
		{"prod with debug override", config.EnvProduction, "debug", false, slog.LevelDebug},
		{"dev with error override", config.EnvDevelopment, "error", false, slog.LevelError},
		{"test ignores override", config.EnvTest, "debug", false, slog.LevelError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := GetConsoleLogLevel(tt.env, tt.logLevelStr, tt.verbose)
			if got != tt.expected {
				t.Errorf("GetConsoleLogLevel(%v, %q, %v) = %v, want %v", tt.env, tt.logLevelStr, tt.verbose, got, tt.expected)
			}
		})
	}
}

func TestGetWeekKey(t *testing.T) {
	testTime := time.Date(2025, 10, 7, 12, 0, 0, 0, time.UTC)
	if got := getWeekKey(testTime); got != "2025-W41" {
		t.Errorf("Expected week key 2025-W41, got %s", got)
	}
}

func TestRotatingLoggerWrites(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1, 0)
	defer rl.Close()

	if _, err := rl.Write([]byte("first line\n")); err != nil {
		t.Fatalf("Failed to write to log: %v", err)
	}

	expected := filepath.Join(tempDir, logFilePrefix+getWeekKey(time.Now())+".log")
	content, err := os.ReadFile(expected)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(content), "first line") {
		t.Errorf("Log file does not contain the message: %s", content)
	}
}

func TestRotatingLoggerSizeRotation(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1, 64)
	defer rl.Close()

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 3; i++ {
		if _, err := rl.Write(line); err != nil {
			t.Fatalf("Failed to write: %v", err)
		}
	}

	week := getWeekKey(time.Now())
	for _, name := range []string{
		logFilePrefix + week + ".log",
		logFilePrefix + week + "_01.log",
		logFilePrefix + week + "_02.log",
	} {
		if _, err := os.Stat(filepath.Join(tempDir, name)); err != nil {
			t.Errorf("Expected %s to exist: %v", name, err)
		}
	}
}

func TestCleanupOldLogs(t *testing.T) {
	tempDir := t.TempDir()
	rl := NewRotatingLogger(tempDir, 1, 0)

	oldFile := filepath.Join(tempDir, logFilePrefix+"2025-W30.log")
	newFile := filepath.Join(tempDir, logFilePrefix+getWeekKey(time.Now())+".log")
	otherFile := filepath.Join(tempDir, "unrelated.log")

	for _, f := range []string{oldFile, newFile, otherFile} {
		if err := os.WriteFile(f, []byte("content"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	threeWeeksAgo := time.Now().AddDate(0, 0, -21)
	for _, f := range []string{oldFile, otherFile} {
		if err := os.Chtimes(f, threeWeeksAgo, threeWeeksAgo); err != nil {
			t.Fatal(err)
		}
	}

	deleted, err := rl.cleanupOldLogs()
	if err != nil {
		t.Fatalf("Failed to cleanup old logs: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 deleted file, got %d", deleted)
	}
	if _, err := os.Stat(oldFile); !os.IsNotExist(err) {
		t.Error("Old log file should have been removed")
	}
	if _, err := os.Stat(newFile); err != nil {
		t.Error("Current log file should be kept")
	}
	if _, err := os.Stat(otherFile); err != nil {
		t.Error("Files without the log prefix should be kept")
	}
}

func TestGlobalLoggingService(t *testing.T) {
	tempDir := t.TempDir()
	ResetForTest(t, tempDir, config.EnvTest, "", 2, 100*1024*1024)

	if DefaultLoggingService == nil {
		t.Fatal("DefaultLoggingService was not initialized")
	}

	Info("message from global logger", "component", "test")

	content, err := os.ReadFile(filepath.Join(tempDir, logFilePrefix+getWeekKey(time.Now())+".log"))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(content), `"component":"test"`) {
		t.Errorf("Expected JSON record in file, got %s", content)
	}
}

func TestStdLoggerGoesToLogFile(t *testing.T) {
	tempDir := t.TempDir()
	ResetForTest(t, tempDir, config.EnvTest, "", 2, 100*1024*1024)

	StdLogger(slog.LevelWarn).Printf("httputil: ReverseProxy read error during body copy: %v", "unexpected EOF")

	content, err := os.ReadFile(filepath.Join(tempDir, logFilePrefix+getWeekKey(time.Now())+".log"))
	if err != nil {
		t.Fatalf("Expected log file: %v", err)
	}
	if !strings.Contains(string(content), `"level":"WARN"`) {
		t.Errorf("Expected WARN record, got %s", content)
	}
	if !strings.Contains(string(content), `"msg":"httputil: ReverseProxy read error during body copy: unexpected EOF"`) {
		t.Errorf("Expected the std logger line as message, got %s", content)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelInfo}))

	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/broken" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	for _, path := range []string{"/health", "/metrics", "/stats"} {
		t.Run(path+" is not logged", func(t *testing.T) {
			logOutput.Reset()
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
			if logOutput.Len() != 0 {
				t.Errorf("Expected no logs for %s, got: %s", path, logOutput.String())
			}
		})
	}

	t.Run("proxied request is logged", func(t *testing.T) {
		logOutput.Reset()
		req := httptest.NewRequest(http.MethodGet, "/api/items?page=2", nil)
		req = req.WithContext(context.WithValue(req.Context(), middleware.RequestIDKey, "req-42"))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		logs := logOutput.String()
		for _, want := range []string{"request_id=req-42", "status_code=418", "bytes_written=15", "query=\"page=2\""} {
			if !strings.Contains(logs, want) {
				t.Errorf("Expected %q in logs, got: %s", want, logs)
			}
		}
	})

	t.Run("5xx logged as warning", func(t *testing.T) {
		logOutput.Reset()
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/broken", nil))
		if !strings.Contains(logOutput.String(), "level=WARN") {
			t.Errorf("Expected WARN level, got: %s", logOutput.String())
		}
	})
}
