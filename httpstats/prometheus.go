package httpstats

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricNamespace = "httpstats"

// Compile-time check
var _ Exposer = (*PrometheusExposer)(nil)

// PrometheusExposer publishes each segment as a collector on a prometheus
// Registerer. Metric names follow httpstats_<direction>_resp_<class>_total
// with constant "segment" and "instance" labels.
type PrometheusExposer struct {
	registerer prometheus.Registerer

	mu         sync.Mutex
	collectors map[*Segment]*segmentCollector
}

// NewPrometheusExposer returns an exposer bound to reg. A nil reg means the
// prometheus default registerer.
func NewPrometheusExposer(reg prometheus.Registerer) *PrometheusExposer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusExposer{
		registerer: reg,
		collectors: make(map[*Segment]*segmentCollector),
	}
}

func (p *PrometheusExposer) Publish(seg *Segment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.collectors[seg]; ok {
		return fmt.Errorf("segment %s already published", seg.Name())
	}

	c := newSegmentCollector(seg)
	if err := p.registerer.Register(c); err != nil {
		return fmt.Errorf("prometheus register: %w", err)
	}
	p.collectors[seg] = c
	return nil
}

func (p *PrometheusExposer) Unpublish(seg *Segment) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.collectors[seg]
	if !ok {
		return nil
	}
	delete(p.collectors, seg)

	if !p.registerer.Unregister(c) {
		return fmt.Errorf("prometheus unregister: collector for %s not found", seg.Name())
	}
	return nil
}

type segmentCollector struct {
	seg   *Segment
	descs [len(Fields)]*prometheus.Desc
}

func newSegmentCollector(seg *Segment) *segmentCollector {
	c := &segmentCollector{seg: seg}
	labels := prometheus.Labels{"segment": seg.Name(), "instance": seg.Instance()}
	for i, f := range Fields {
		c.descs[i] = prometheus.NewDesc(
			prometheus.BuildFQName(metricNamespace, seg.Direction(), f.Name+"_total"),
			f.Help,
			nil,
			labels,
		)
	}
	return c
}

func (c *segmentCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range c.descs {
		ch <- d
	}
}

func (c *segmentCollector) Collect(ch chan<- prometheus.Metric) {
	values := c.seg.Values()
	for i, d := range c.descs {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(values[i]))
	}
}
