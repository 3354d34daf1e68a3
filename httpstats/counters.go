// Package httpstats classifies HTTP status codes into response classes and
// keeps one set of lock-free counters per traffic direction.
//
// A Registry owns the backend and frontend counter groups and publishes them
// as named segments ("httpstats.backend", "httpstats.frontend") to one or more
// Exposers so external monitors can read them by name.
package httpstats

import "sync/atomic"

// Bucket identifies one response class counter.
type Bucket int

const (
	Bucket2xx Bucket = iota
	Bucket3xx
	Bucket4xx
	Bucket5xx
	BucketOther

	bucketCount
)

var bucketLabels = [bucketCount]string{"2xx", "3xx", "4xx", "5xx", "other"}

func (b Bucket) String() string {
	if b < 0 || b >= bucketCount {
		return "invalid"
	}
	return bucketLabels[b]
}

// Classify maps a status code to its response class. Anything outside
// 200-599 lands in BucketOther.
func Classify(status int) Bucket {
	switch {
	case status >= 200 && status <= 299:
		return Bucket2xx
	case status >= 300 && status <= 399:
		return Bucket3xx
	case status >= 400 && status <= 499:
		return Bucket4xx
	case status >= 500 && status <= 599:
		return Bucket5xx
	default:
		return BucketOther
	}
}

// CounterGroup holds the five response class counters of one direction.
// Each cell is independent; there is no cross-bucket atomicity.
type CounterGroup struct {
	cells [bucketCount]atomic.Uint64
}

func newCounterGroup() *CounterGroup {
	return &CounterGroup{}
}

// Increment adds one to the bucket matching status.
func (g *CounterGroup) Increment(status int) {
	g.cells[Classify(status)].Add(1)
}

// Read returns the current value of one bucket, or 0 for an unknown bucket.
func (g *CounterGroup) Read(b Bucket) uint64 {
	if b < 0 || b >= bucketCount {
		return 0
	}
	return g.cells[b].Load()
}

// Counts is a point-in-time copy of a CounterGroup. Buckets are read one
// after another, so the copy is not an atomic snapshot across buckets.
type Counts struct {
	Resp2xx uint64 `json:"resp_2xx"`
	Resp3xx uint64 `json:"resp_3xx"`
	Resp4xx uint64 `json:"resp_4xx"`
	Resp5xx uint64 `json:"resp_5xx"`
	Other   uint64 `json:"other"`
}

func (g *CounterGroup) counts() Counts {
	return Counts{
		Resp2xx: g.Read(Bucket2xx),
		Resp3xx: g.Read(Bucket3xx),
		Resp4xx: g.Read(Bucket4xx),
		Resp5xx: g.Read(Bucket5xx),
		Other:   g.Read(BucketOther),
	}
}
