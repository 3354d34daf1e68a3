package httpstats

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// State is the lifecycle state of a Registry.
type State int32

const (
	StateActive State = iota
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

// Registry owns the backend and frontend counter groups and their published
// segments. A process is expected to build exactly one and pass it around.
type Registry struct {
	instance string
	backend  *CounterGroup
	frontend *CounterGroup
	segments []*Segment
	exposers []Exposer

	state     atomic.Int32
	closeOnce sync.Once
	closeErr  error
}

// New allocates both counter groups and publishes their segments to every
// exposer. If any publish fails, segments already published are withdrawn
// and the error is returned; the registry cannot run without its exposure.
func New(instance string, exposers ...Exposer) (*Registry, error) {
	if instance == "" {
		instance = DefaultInstance
	}

	r := &Registry{
		instance: instance,
		backend:  newCounterGroup(),
		frontend: newCounterGroup(),
		exposers: exposers,
	}
	r.segments = []*Segment{
		newSegment(BackendSegment, "backend", instance, r.backend),
		newSegment(FrontendSegment, "frontend", instance, r.frontend),
	}

	type published struct {
		exp Exposer
		seg *Segment
	}
	var done []published

	for _, exp := range exposers {
		for _, seg := range r.segments {
			if err := exp.Publish(seg); err != nil {
				for i := len(done) - 1; i >= 0; i-- {
					_ = done[i].exp.Unpublish(done[i].seg)
				}
				return nil, fmt.Errorf("failed to publish segment %s.%s: %w", seg.name, instance, err)
			}
			done = append(done, published{exp: exp, seg: seg})
		}
	}

	r.state.Store(int32(StateActive))
	return r, nil
}

// Instance returns the instance name qualifying both segments.
func (r *Registry) Instance() string { return r.instance }

// State returns the current lifecycle state.
func (r *Registry) State() State { return State(r.state.Load()) }

// Segments returns the published segments, backend first.
func (r *Registry) Segments() []*Segment {
	out := make([]*Segment, len(r.segments))
	copy(out, r.segments)
	return out
}

// RecordBackend counts an upstream response status. Codes outside 200-599
// are silently dropped from the published counters.
func (r *Registry) RecordBackend(status int) {
	if r.State() != StateActive {
		return
	}
	r.backend.Increment(status)
}

// RecordFrontend counts a client-facing response status.
func (r *Registry) RecordFrontend(status int) {
	if r.State() != StateActive {
		return
	}
	r.frontend.Increment(status)
}

// Accessors cast to int64 without an overflow check; a counter past
// math.MaxInt64 reads as negative. External readers depend on the
// uint64 field width, so the raw value is left untouched.

func (r *Registry) Backend2xx() int64  { return int64(r.backend.Read(Bucket2xx)) }
func (r *Registry) Backend3xx() int64  { return int64(r.backend.Read(Bucket3xx)) }
func (r *Registry) Backend4xx() int64  { return int64(r.backend.Read(Bucket4xx)) }
func (r *Registry) Backend5xx() int64  { return int64(r.backend.Read(Bucket5xx)) }
func (r *Registry) Frontend2xx() int64 { return int64(r.frontend.Read(Bucket2xx)) }
func (r *Registry) Frontend3xx() int64 { return int64(r.frontend.Read(Bucket3xx)) }
func (r *Registry) Frontend4xx() int64 { return int64(r.frontend.Read(Bucket4xx)) }
func (r *Registry) Frontend5xx() int64 { return int64(r.frontend.Read(Bucket5xx)) }

// Snapshot is a JSON-friendly view of both directions.
type Snapshot struct {
	Instance string `json:"instance"`
	State    string `json:"state"`
	Backend  Counts `json:"backend"`
	Frontend Counts `json:"frontend"`
}

// Snapshot reads every counter of both groups, including the internal
// "other" bucket.
func (r *Registry) Snapshot() Snapshot {
	return Snapshot{
		Instance: r.instance,
		State:    r.State().String(),
		Backend:  r.backend.counts(),
		Frontend: r.frontend.counts(),
	}
}

// Close withdraws every segment from every exposer, in reverse publish
// order. It is safe to call more than once. Counters stay readable after
// Close; further records are ignored.
func (r *Registry) Close() error {
	r.closeOnce.Do(func() {
		r.state.Store(int32(StateTornDown))

		var errs []error
		for i := len(r.exposers) - 1; i >= 0; i-- {
			for j := len(r.segments) - 1; j >= 0; j-- {
				seg := r.segments[j]
				if err := r.exposers[i].Unpublish(seg); err != nil {
					errs = append(errs, fmt.Errorf("failed to unpublish segment %s.%s: %w", seg.name, r.instance, err))
				}
			}
		}
		r.closeErr = errors.Join(errs...)
	})
	return r.closeErr
}
