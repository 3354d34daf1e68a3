// Package scheduler runs the periodic background jobs of the proxy: flushing
// file segments for external readers and logging a traffic summary.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/giygas/httpstats/httpstats"
	"github.com/giygas/httpstats/interfaces"
	"github.com/giygas/httpstats/logging"
	"github.com/giygas/httpstats/metrics"
	"github.com/go-co-op/gocron"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Compile-time checks
var (
	_ interfaces.Scheduler     = (*Scheduler)(nil)
	_ interfaces.FlushReporter = (*Scheduler)(nil)
)

// Scheduler owns the gocron scheduler and the state of its jobs
type Scheduler struct {
	stats        interfaces.StatsReader
	flusher      interfaces.SegmentFlusher
	flushEvery   time.Duration
	summaryEvery time.Duration
	scheduler    *gocron.Scheduler
	printer      *message.Printer

	mu           sync.Mutex
	lastFlush    time.Time
	lastFlushErr error
	lastSummary  httpstats.Snapshot
}

// NewScheduler creates a scheduler. flusher may be nil when no file
// segments are published.
func NewScheduler(stats interfaces.StatsReader, flusher interfaces.SegmentFlusher, flushEvery, summaryEvery time.Duration) *Scheduler {
	return &Scheduler{
		stats:        stats,
		flusher:      flusher,
		flushEvery:   flushEvery,
		summaryEvery: summaryEvery,
		scheduler:    gocron.NewScheduler(time.Local),
		printer:      message.NewPrinter(language.English),
	}
}

// Start registers the jobs and starts the scheduler in the background
func (s *Scheduler) Start() error {
	if s.flusher != nil {
		_, err := s.scheduler.Every(int(s.flushEvery.Seconds())).Seconds().SingletonMode().Do(s.flushSegments)
		if err != nil {
			logging.Error("Failed to schedule segment flush", "error", err)
			return fmt.Errorf("failed to schedule segment flush: %w", err)
		}
	}

	_, err := s.scheduler.Every(int(s.summaryEvery.Minutes())).Minutes().WaitForSchedule().Do(s.logSummary)
	if err != nil {
		logging.Error("Failed to schedule summary", "error", err)
		return fmt.Errorf("failed to schedule summary: %w", err)
	}

	s.scheduler.StartAsync()
	logging.Info("Scheduler started",
		"segment_flush", s.flusher != nil,
		"flush_interval", s.flushEvery.String(),
		"summary_interval", s.summaryEvery.String(),
	)

	return nil
}

// Stop stops both jobs. It does not flush: teardown withdraws the segment
// files right after, and the final totals are logged by the caller.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// LastFlush returns the time and result of the most recent flush
func (s *Scheduler) LastFlush() (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastFlush, s.lastFlushErr
}

func (s *Scheduler) flushSegments() {
	err := s.flusher.Flush()
	if err != nil {
		metrics.SegmentFlushErrorsTotal.Inc()
		logging.Error("Failed to flush stats segments", "error", err)
	}

	s.mu.Lock()
	s.lastFlush = time.Now()
	s.lastFlushErr = err
	s.mu.Unlock()
}

// logSummary logs totals and the change since the previous summary
func (s *Scheduler) logSummary() {
	snap := s.stats.Snapshot()

	s.mu.Lock()
	prev := s.lastSummary
	s.lastSummary = snap
	s.mu.Unlock()

	logging.Info("HTTP response summary",
		"instance", snap.Instance,
		"backend", s.formatCounts(snap.Backend, prev.Backend),
		"frontend", s.formatCounts(snap.Frontend, prev.Frontend),
	)
}

func (s *Scheduler) formatCounts(cur, prev httpstats.Counts) string {
	return s.printer.Sprintf("2xx=%d (+%d) 3xx=%d (+%d) 4xx=%d (+%d) 5xx=%d (+%d) other=%d (+%d)",
		cur.Resp2xx, cur.Resp2xx-prev.Resp2xx,
		cur.Resp3xx, cur.Resp3xx-prev.Resp3xx,
		cur.Resp4xx, cur.Resp4xx-prev.Resp4xx,
		cur.Resp5xx, cur.Resp5xx-prev.Resp5xx,
		cur.Other, cur.Other-prev.Other,
	)
}
