package prune

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-nodeprops/metrics"
)

const namespace = "prune"

var pruneLatency = metrics.NewHistogramWithBuckets(
	"prune_seconds",
	namespace,
	"prune time in seconds",
	[]string{},
	prometheus.ExponentialBuckets(0.0001, 2, 12),
).WithLabelValues()
