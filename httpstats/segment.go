package httpstats

// Segment identifiers published for external readers.
const (
	BackendSegment  = "httpstats.backend"
	FrontendSegment = "httpstats.frontend"

	DefaultInstance = "default"
)

// Field describes one counter of a published segment.
type Field struct {
	Name   string
	Help   string
	Bucket Bucket
}

// Fields is the published counter block layout. Order is part of the
// external contract and must not change.
var Fields = [...]Field{
	{Name: "resp_2xx", Help: "2xx responses (successful)", Bucket: Bucket2xx},
	{Name: "resp_3xx", Help: "3xx responses (redirects)", Bucket: Bucket3xx},
	{Name: "resp_4xx", Help: "4xx responses (client errors)", Bucket: Bucket4xx},
	{Name: "resp_5xx", Help: "5xx responses (server errors)", Bucket: Bucket5xx},
}

// Segment is a named, read-only view over one CounterGroup.
type Segment struct {
	name      string
	direction string
	instance  string
	group     *CounterGroup
}

func newSegment(name, direction, instance string, group *CounterGroup) *Segment {
	return &Segment{name: name, direction: direction, instance: instance, group: group}
}

// Name returns the segment identifier, e.g. "httpstats.backend".
func (s *Segment) Name() string { return s.name }

// Direction returns "backend" or "frontend".
func (s *Segment) Direction() string { return s.direction }

// Instance returns the instance name qualifying the segment.
func (s *Segment) Instance() string { return s.instance }

// Values reads the published counters in Fields order.
func (s *Segment) Values() [len(Fields)]uint64 {
	var out [len(Fields)]uint64
	for i, f := range Fields {
		out[i] = s.group.Read(f.Bucket)
	}
	return out
}

// Exposer publishes segments to an external metrics consumer.
type Exposer interface {
	Publish(seg *Segment) error
	Unpublish(seg *Segment) error
}
