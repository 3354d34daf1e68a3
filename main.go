package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/giygas/httpstats/config"
	"github.com/giygas/httpstats/health"
	"github.com/giygas/httpstats/httpstats"
	"github.com/giygas/httpstats/interfaces"
	"github.com/giygas/httpstats/logging"
	"github.com/giygas/httpstats/proxy"
	"github.com/giygas/httpstats/scheduler"
	"github.com/giygas/httpstats/server"
	"github.com/joho/godotenv"
)

func init() {
	// Get the working directory and read the env variables
	if err := godotenv.Load(); err != nil {
		// If failed, try loading from executable directory
		ex, err := os.Executable()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Failed to get executable path:", err)
			os.Exit(1)
		}
		if err := os.Chdir(filepath.Dir(ex)); err != nil {
			fmt.Fprintln(os.Stderr, "Failed to change directory:", err)
			os.Exit(1)
		}
		_ = godotenv.Load()
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Configuration error:", err)
		os.Exit(1)
	}

	logging.InitLogger(cfg.LogDir, cfg.Env, cfg.LogLevel, cfg.LogRetentionWeeks, cfg.MaxLogFileSize)
	defer func() { _ = logging.Close() }()

	logging.Info("Configuration loaded", "env", cfg.Env.String(), "upstream", cfg.UpstreamURL, "instance", cfg.StatsInstance)

	exposers := []httpstats.Exposer{httpstats.NewPrometheusExposer(nil)}

	var fileExposer *httpstats.FileExposer
	if cfg.SegmentDir != "" {
		fileExposer = httpstats.NewFileExposer(cfg.SegmentDir)
		exposers = append(exposers, fileExposer)
	}

	registry, err := httpstats.New(cfg.StatsInstance, exposers...)
	if err != nil {
		logging.Error("Failed to initialise stats registry", "error", err)
		os.Exit(1)
	}
	logging.Info("Stats registry active", "instance", registry.Instance(), "file_segments", fileExposer != nil)

	upstream, err := proxy.New(cfg.UpstreamURL, registry)
	if err != nil {
		logging.Error("Failed to create proxy", "error", err)
		_ = registry.Close()
		os.Exit(1)
	}

	flushEvery := time.Duration(cfg.SegmentFlushSeconds) * time.Second
	summaryEvery := time.Duration(cfg.SummaryIntervalMinutes) * time.Minute

	// A nil *FileExposer must not reach the interface
	var flusher interfaces.SegmentFlusher
	if fileExposer != nil {
		flusher = fileExposer
	}

	sched := scheduler.NewScheduler(registry, flusher, flushEvery, summaryEvery)
	if err := sched.Start(); err != nil {
		logging.Error("Failed to start scheduler", "error", err)
		_ = registry.Close()
		os.Exit(1)
	}

	var flushes interfaces.FlushReporter
	if fileExposer != nil {
		flushes = sched
	}
	checker := health.NewHealthChecker(registry, flushes, flushEvery)

	srv := server.NewServer(cfg, registry, upstream, checker, nil)

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until a signal is received or the listener fails
	exitCode := 0
	select {
	case sig := <-quit:
		logging.Info("Received signal", "signal", sig.String())
	case err := <-serverErr:
		logging.Error("Server failed to start", "error", err)
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logging.Error("Server shutdown error", "error", err)
	}

	// Stop the jobs before Close withdraws the segment files they write
	sched.Stop()

	if err := registry.Close(); err != nil {
		logging.Error("Failed to tear down stats registry", "error", err)
	}

	logging.Info("Shutdown complete", "backend", registry.Snapshot().Backend, "frontend", registry.Snapshot().Frontend)

	if exitCode != 0 {
		_ = logging.Close()
		os.Exit(exitCode)
	}
}
