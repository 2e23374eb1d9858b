// Package promstat provides a dsk.Statter which exposes stats as Prometheus
// metrics. Metrics are created the first time a stat name is seen; dots in
// names become underscores and every name is prefixed with a namespace.
package promstat

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements dsk.Statter. Counts become counters (with a "_total"
// suffix), gauges become gauges, and histograms and timings become histograms
// (timings in seconds). Sets and tags are ignored.
type Collector struct {
	factory   promauto.Factory
	namespace string

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	gauges     map[string]prometheus.Gauge
	histograms map[string]prometheus.Histogram
}

// New creates a Collector registering its metrics with the default registry.
func New(namespace string) *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer, namespace)
}

// NewWithRegistry creates a Collector which registers its metrics with
// registerer.
func NewWithRegistry(registerer prometheus.Registerer, namespace string) *Collector {
	return &Collector{
		factory:    promauto.With(registerer),
		namespace:  namespace,
		counters:   make(map[string]prometheus.Counter),
		gauges:     make(map[string]prometheus.Gauge),
		histograms: make(map[string]prometheus.Histogram),
	}
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

// Count implements dsk.Statter.
func (c *Collector) Count(name string, value int64, rate float64, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	counter, ok := c.counters[name]
	if !ok {
		counter = c.factory.NewCounter(prometheus.CounterOpts{
			Namespace: c.namespace,
			Name:      metricName(name) + "_total",
			Help:      "Total of " + name,
		})
		c.counters[name] = counter
	}
	if value > 0 {
		counter.Add(float64(value))
	}
}

// Gauge implements dsk.Statter.
func (c *Collector) Gauge(name string, value float64, rate float64, tags ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gauge, ok := c.gauges[name]
	if !ok {
		gauge = c.factory.NewGauge(prometheus.GaugeOpts{
			Namespace: c.namespace,
			Name:      metricName(name),
			Help:      "Latest value of " + name,
		})
		c.gauges[name] = gauge
	}
	gauge.Set(value)
}

func (c *Collector) histogram(name, suffix string) prometheus.Histogram {
	c.mu.Lock()
	defer c.mu.Unlock()
	hist, ok := c.histograms[name]
	if !ok {
		hist = c.factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: c.namespace,
			Name:      metricName(name) + suffix,
			Help:      "Distribution of " + name,
			Buckets:   prometheus.DefBuckets,
		})
		c.histograms[name] = hist
	}
	return hist
}

// Histogram implements dsk.Statter.
func (c *Collector) Histogram(name string, value float64, rate float64, tags ...string) {
	c.histogram(name, "").Observe(value)
}

// Set does nothing.
func (c *Collector) Set(name string, value string, rate float64, tags ...string) {}

// Timing implements dsk.Statter.
func (c *Collector) Timing(name string, value time.Duration, rate float64, tags ...string) {
	c.histogram(name, "_seconds").Observe(value.Seconds())
}
