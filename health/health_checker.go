// Package health reports whether the stats registry and its exposure are
// usable by external monitors.
package health

import (
	"math"
	"net/http"
	"time"

	"github.com/giygas/httpstats/httpstats"
	"github.com/giygas/httpstats/interfaces"
)

// Compile-time check
var _ interfaces.HealthChecker = (*HealthCheckerImpl)(nil)

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	stats      interfaces.StatsReader
	flushes    interfaces.FlushReporter // nil when file segments are disabled
	flushEvery time.Duration
	startedAt  time.Time
}

// NewHealthChecker creates a new health checker with injected dependencies
func NewHealthChecker(stats interfaces.StatsReader, flushes interfaces.FlushReporter, flushEvery time.Duration) *HealthCheckerImpl {
	return &HealthCheckerImpl{
		stats:      stats,
		flushes:    flushes,
		flushEvery: flushEvery,
		startedAt:  time.Now(),
	}
}

// HealthCheck returns the status, its details and the HTTP code to send.
//   - unhealthy: registry torn down, counters are no longer exposed
//   - degraded: the last segment flush failed or flushes have stalled
//   - healthy: otherwise
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	state := h.stats.State()
	uptime := time.Since(h.startedAt)

	data = map[string]any{
		"instance":       h.stats.Instance(),
		"registry_state": state.String(),
		"uptime_seconds": math.Round(uptime.Seconds()),
	}

	status, httpStatus = "healthy", http.StatusOK

	if h.flushes != nil {
		at, err := h.flushes.LastFlush()
		if !at.IsZero() {
			data["last_flush"] = at.Format(time.RFC3339)
		}
		if err != nil {
			data["flush_error"] = err.Error()
			status, httpStatus = "degraded", http.StatusServiceUnavailable
		} else if stalled(at, h.startedAt, h.flushEvery) {
			status, httpStatus = "degraded", http.StatusServiceUnavailable
		}
	}

	if state != httpstats.StateActive {
		status, httpStatus = "unhealthy", http.StatusServiceUnavailable
	}

	return status, data, httpStatus
}

// stalled reports whether no flush happened within a few intervals. A
// fresh process gets the same grace period before its first flush.
func stalled(last, startedAt time.Time, every time.Duration) bool {
	if every <= 0 {
		return false
	}
	ref := last
	if ref.IsZero() {
		ref = startedAt
	}
	return time.Since(ref) > 5*every
}
