package server

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-nodeprops/metrics"
)

const (
	namespace = "server"

	sideServer = "server"
	sideClient = "client"

	resultAccepted    = "accepted"
	resultDropped     = "dropped"
	resultSuccess     = "success"
	resultFailure     = "failure"
	resultServerError = "server_error"
)

var (
	queued = metrics.NewGauge(
		"queued_requests",
		namespace,
		"requests waiting for a free handler",
		[]string{"protocol"},
	)
	requests = metrics.NewCounter(
		"requests",
		namespace,
		"requests by side and result",
		[]string{"protocol", "side", "result"},
	)
	latency = metrics.NewHistogramWithBuckets(
		"latency_seconds",
		namespace,
		"time from accepting a stream (server) or initiating a request (client) until completion",
		[]string{"protocol", "side", "result"},
		prometheus.ExponentialBuckets(0.01, 2, 10),
	)
)

// tracker records metrics of a single protocol. All methods are no-ops on a nil tracker.
type tracker struct {
	protocol string
	queued   prometheus.Gauge
	accepted prometheus.Counter
}

func newTracker(protocol string) *tracker {
	return &tracker{
		protocol: protocol,
		queued:   queued.WithLabelValues(protocol),
		accepted: requests.WithLabelValues(protocol, sideServer, resultAccepted),
	}
}

func (t *tracker) enqueued(size int) {
	if t == nil {
		return
	}
	t.queued.Set(float64(size))
	t.accepted.Inc()
}

func (t *tracker) dropped() {
	if t == nil {
		return
	}
	requests.WithLabelValues(t.protocol, sideServer, resultDropped).Inc()
}

func (t *tracker) served(ok bool, took time.Duration) {
	if t == nil {
		return
	}
	result := resultSuccess
	if !ok {
		result = resultFailure
	}
	t.observe(sideServer, result, took)
}

func (t *tracker) requested(err error, took time.Duration) {
	if t == nil {
		return
	}
	result := resultSuccess
	switch {
	case errors.Is(err, &ServerError{}):
		result = resultServerError
	case err != nil:
		result = resultFailure
	}
	t.observe(sideClient, result, took)
}

func (t *tracker) observe(side, result string, took time.Duration) {
	requests.WithLabelValues(t.protocol, side, result).Inc()
	latency.WithLabelValues(t.protocol, side, result).Observe(took.Seconds())
}
