package exchange

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-nodeprops/metrics"
)

const subsystem = "exchange"

var (
	messages = metrics.NewCounter(
		"messages",
		subsystem,
		"exchange messages by type and direction",
		[]string{"type", "direction"},
	)
	sentDeltas     = messages.WithLabelValues("delta", "sent")
	receivedDeltas = messages.WithLabelValues("delta", "received")
	sentInits      = messages.WithLabelValues("init", "sent")
	receivedInits  = messages.WithLabelValues("init", "received")

	entries = metrics.NewCounter(
		"entries",
		subsystem,
		"records carried by exchange messages",
		[]string{"direction"},
	)
	sentEntries     = entries.WithLabelValues("sent")
	receivedEntries = entries.WithLabelValues("received")
	acceptedEntries = entries.WithLabelValues("accepted")
	forwarded       = entries.WithLabelValues("forwarded")

	syncs = metrics.NewCounter(
		"syncs",
		subsystem,
		"initial exchanges with peers",
		[]string{"result"},
	)
	syncSucceeded = syncs.WithLabelValues("success")
	syncFailed    = syncs.WithLabelValues("failure")
	syncSkipped   = syncs.WithLabelValues("cooldown")
	syncRetried   = syncs.WithLabelValues("retry")

	publishFailures = metrics.NewCounter(
		"publish_failures",
		subsystem,
		"delta messages that could not be published",
		[]string{},
	).WithLabelValues()

	pendingEntries = metrics.NewGauge(
		"pending_entries",
		subsystem,
		"records waiting to be published",
		[]string{},
	).WithLabelValues()

	syncDuration = metrics.NewHistogramWithBuckets(
		"sync_duration_seconds",
		subsystem,
		"duration of the initial exchange with a peer",
		[]string{},
		prometheus.ExponentialBuckets(0.01, 2, 10),
	).WithLabelValues()
)
