// Package interfaces defines the contracts shared between the httpstats
// server, proxy, scheduler and health packages so each can be tested with
// fakes.
package interfaces

import (
	"net/http"
	"time"

	"github.com/giygas/httpstats/httpstats"
)

// StatsRecorder classifies and counts observed status codes.
type StatsRecorder interface {
	RecordBackend(status int)
	RecordFrontend(status int)
}

// StatsReader exposes the live counters of a registry.
type StatsReader interface {
	Instance() string
	State() httpstats.State
	Snapshot() httpstats.Snapshot
}

// StatsRegistry is the full registry surface used by the server.
type StatsRegistry interface {
	StatsRecorder
	StatsReader
}

// SegmentFlusher rewrites published segments with current values.
type SegmentFlusher interface {
	Flush() error
}

// FlushReporter tells when segments were last flushed and whether that
// flush failed.
type FlushReporter interface {
	LastFlush() (at time.Time, err error)
}

// Scheduler defines the contract for periodic background jobs.
type Scheduler interface {
	Start() error
	Stop()
}

// HealthChecker reports service health for the /health endpoint.
type HealthChecker interface {
	HealthCheck() (status string, details map[string]any, httpStatus int)
}

// Proxy forwards client requests to the upstream.
type Proxy interface {
	http.Handler
	Upstream() string
}
