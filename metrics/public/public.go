package public

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry holds metrics that are safe to push to a shared gateway.
var Registry = prometheus.NewRegistry()

var (
	// Connections is the number of open peer connections by direction.
	Connections = promauto.With(Registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "nodeprops",
		Name:      "connections",
	}, []string{"dir"})

	// ConnectedPeers is the number of distinct peers with at least one open connection.
	ConnectedPeers = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "nodeprops",
		Name:      "connected_peers",
	})

	// VisibleNodes is the number of nodes in the visible projection, including the local node.
	VisibleNodes = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "nodeprops",
		Name:      "visible_nodes",
	})

	// KnownNodes is the number of nodes with stored records, reachable or not.
	KnownNodes = promauto.With(Registry).NewGauge(prometheus.GaugeOpts{
		Namespace: "nodeprops",
		Name:      "known_nodes",
	})
)
