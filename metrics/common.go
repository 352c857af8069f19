package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Namespace is the prefix of every metric exported by a node.
const Namespace = "nodeprops"

// NewCounter registers a counter vector in the default registry.
func NewCounter(name, subsystem, help string, labels []string) *prometheus.CounterVec {
	return promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewGauge registers a gauge vector in the default registry.
func NewGauge(name, subsystem, help string, labels []string) *prometheus.GaugeVec {
	return promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// NewHistogramWithBuckets registers a histogram vector with custom buckets in the default registry.
func NewHistogramWithBuckets(name, subsystem, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: Namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
		Buckets:   buckets,
	}, labels)
}

// propagationLatency is the time between the publication of a property by its
// owner and its arrival at this node. Revisions of local properties follow the
// wall clock of the owner, so clock skew produces negative observations.
var propagationLatency = NewHistogramWithBuckets(
	"propagation_latency_seconds",
	"",
	"Time between publication of a property and its arrival",
	[]string{"protocol", "sign"},
	prometheus.ExponentialBuckets(0.01, 2, 12),
)

// ReportMessageLatency records the latency of a received message. Negative
// latencies are recorded by their absolute value under sign "neg".
func ReportMessageLatency(protocol string, latency time.Duration) {
	sign := "pos"
	if latency < 0 {
		sign = "neg"
		latency = -latency
	}
	propagationLatency.WithLabelValues(protocol, sign).Observe(latency.Seconds())
}
