package imcs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector exports store metrics through client_golang.
type PrometheusCollector struct {
	operations *prometheus.CounterVec   // by op and status
	latency    *prometheus.HistogramVec // by op
	elements   *prometheus.CounterVec   // appended / deleted
	partitions prometheus.Histogram
	snapshot   prometheus.Counter
}

// NewPrometheusCollector registers the store metrics with reg under
// namespace. A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusCollector(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "imcs"
	}
	factory := promauto.With(reg)

	return &PrometheusCollector{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Store operations by type and outcome",
		}, []string{"op", "status"}),
		latency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Store operation latency",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}, []string{"op"}),
		elements: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "elements_total",
			Help:      "Column elements appended or deleted",
		}, []string{"change"}),
		partitions: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "parallel_partitions",
			Help:      "Partitions per parallel evaluation, 0 when rejected",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		snapshot: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_bytes_total",
			Help:      "Encoded bytes written or read by snapshots",
		}),
	}
}

func (p *PrometheusCollector) observe(op string, d time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	p.operations.WithLabelValues(op, status).Inc()
	p.latency.WithLabelValues(op).Observe(d.Seconds())
}

// RecordAppend implements MetricsCollector.
func (p *PrometheusCollector) RecordAppend(n int, d time.Duration, err error) {
	p.observe("append", d, err)
	if err == nil {
		p.elements.WithLabelValues("appended").Add(float64(n))
	}
}

// RecordDelete implements MetricsCollector.
func (p *PrometheusCollector) RecordDelete(n int64, d time.Duration, err error) {
	p.observe("delete", d, err)
	if err == nil {
		p.elements.WithLabelValues("deleted").Add(float64(n))
	}
}

// RecordParallel implements MetricsCollector.
func (p *PrometheusCollector) RecordParallel(partitions int, d time.Duration, err error) {
	p.observe("parallel", d, err)
	if err == nil {
		p.partitions.Observe(float64(partitions))
	}
}

// RecordFlush implements MetricsCollector.
func (p *PrometheusCollector) RecordFlush(d time.Duration, err error) {
	p.observe("flush", d, err)
}

// RecordSnapshot implements MetricsCollector.
func (p *PrometheusCollector) RecordSnapshot(bytes int64, d time.Duration, err error) {
	p.observe("snapshot", d, err)
	if err == nil {
		p.snapshot.Add(float64(bytes))
	}
}
