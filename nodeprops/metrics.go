package nodeprops

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-nodeprops/metrics"
)

const (
	subsystem = "properties"

	kindLabel   = "kind"
	resultLabel = "result"

	kindChange = "change"
	kindRaw    = "raw"
)

var (
	records = metrics.NewCounter(
		"records",
		subsystem,
		"number of property records processed at intake",
		[]string{resultLabel},
	)
	acceptedRecords  = records.WithLabelValues("accepted")
	staleRecords     = records.WithLabelValues("stale")
	malformedRecords = records.WithLabelValues("malformed")

	republished = metrics.NewCounter(
		"republished",
		subsystem,
		"local properties re-published or canceled after receiving a foreign record for the local node",
		[]string{"action"},
	)
	republishedValues = republished.WithLabelValues("republish")
	canceledValues    = republished.WithLabelValues("cancel")

	storeEntries = metrics.NewGauge(
		"store_entries",
		subsystem,
		"number of records in the store, including tombstones",
		[]string{},
	).WithLabelValues()

	listeners = metrics.NewGauge(
		"listeners",
		subsystem,
		"number of registered listeners",
		[]string{kindLabel},
	)

	queuedBatches = metrics.NewGauge(
		"queued_batches",
		subsystem,
		"batches waiting for delivery to listeners",
		[]string{kindLabel},
	)
	deliveredBatches = metrics.NewCounter(
		"delivered_batches",
		subsystem,
		"batches delivered to listeners",
		[]string{kindLabel},
	)
	listenerPanics = metrics.NewCounter(
		"listener_panics",
		subsystem,
		"listener callbacks that panicked",
		[]string{kindLabel},
	)
	coalescedBatches = metrics.NewCounter(
		"coalesced_batches",
		subsystem,
		"aggregation windows that netted out to no change",
		[]string{},
	).WithLabelValues()
	flushDelay = metrics.NewHistogramWithBuckets(
		"flush_delay_seconds",
		subsystem,
		"time between the first pending change and the flush of a window",
		[]string{},
		prometheus.ExponentialBuckets(0.01, 2, 10),
	).WithLabelValues()

	pruned = metrics.NewCounter(
		"pruned_nodes",
		subsystem,
		"nodes forgotten after the retention horizon",
		[]string{},
	).WithLabelValues()
)
