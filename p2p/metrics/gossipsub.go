// Package metrics collects gossipsub statistics.
package metrics

import (
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/spacemeshos/go-nodeprops/metrics"
)

const subsystem = "p2p"

var (
	totalPeers       = metrics.NewGauge("total_peers", subsystem, "Total number of gossip peers", nil)
	peersPerProtocol = metrics.NewGauge("peers_per_protocol", subsystem, "Number of peers per protocol", []string{"protocol"})
)

var (
	// ProcessedMessagesDuration in nanoseconds to process a message. Labeled by topic and result.
	ProcessedMessagesDuration = metrics.NewHistogramWithBuckets(
		"processed_messages_duration",
		subsystem,
		"Duration in nanoseconds to process a message",
		[]string{"protocol", "result"},
		prometheus.ExponentialBuckets(100_000, 4, 10),
	)
	deliveredMessagesBytes = metrics.NewCounter(
		"delivered_messages_bytes",
		subsystem,
		"Total amount of delivered payloads (doesn't count gossipsub metadata)",
		[]string{"protocol"},
	)
	receivedMessagesBytes = metrics.NewCounter(
		"received_messages_bytes",
		subsystem,
		"Total amount of received payloads (doesn't count gossipsub metadata)",
		[]string{"protocol"},
	)
	deliveredMessagesCount = metrics.NewCounter(
		"delivered_messages_count",
		subsystem,
		"Total number of delivered messages",
		[]string{"protocol"},
	)
	receivedMessagesCount = metrics.NewCounter(
		"received_messages_count",
		subsystem,
		"Total amount of received messages",
		[]string{"protocol"},
	)
	rejectedMessagesCount = metrics.NewCounter(
		"rejected_messages_count",
		subsystem,
		"Total number of rejected or ignored messages",
		[]string{"reason"},
	)
)

// GossipCollector is a pubsub.RawTracer that counts gossip peers and messages.
type GossipCollector struct {
	mu    sync.Mutex
	peers map[peer.ID]protocol.ID
}

var _ pubsub.RawTracer = (*GossipCollector)(nil)

// NewGossipCollector creates a new GossipCollector.
func NewGossipCollector() *GossipCollector {
	return &GossipCollector{peers: make(map[peer.ID]protocol.ID)}
}

// AddPeer is invoked when a new peer is added.
func (g *GossipCollector) AddPeer(id peer.ID, proto protocol.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if prev, exist := g.peers[id]; exist {
		if prev == proto {
			return
		}
		peersPerProtocol.WithLabelValues(string(prev)).Dec()
	} else {
		totalPeers.WithLabelValues().Inc()
	}
	g.peers[id] = proto
	peersPerProtocol.WithLabelValues(string(proto)).Inc()
}

// RemovePeer is invoked when a peer is removed.
func (g *GossipCollector) RemovePeer(id peer.ID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	proto, exist := g.peers[id]
	if !exist {
		return
	}
	delete(g.peers, id)
	peersPerProtocol.WithLabelValues(string(proto)).Dec()
	totalPeers.WithLabelValues().Dec()
}

// Peers returns the number of tracked peers per protocol.
func (g *GossipCollector) Peers() map[protocol.ID]int {
	g.mu.Lock()
	defer g.mu.Unlock()
	rst := map[protocol.ID]int{}
	for _, proto := range g.peers {
		rst[proto]++
	}
	return rst
}

// Join is invoked when a new topic is joined.
func (*GossipCollector) Join(string) {}

// Leave is invoked when a topic is abandoned.
func (*GossipCollector) Leave(string) {}

// Graft is invoked when a new peer is grafted on the mesh (gossipsub).
func (*GossipCollector) Graft(peer.ID, string) {}

// Prune is invoked when a peer is pruned from the message (gossipsub).
func (*GossipCollector) Prune(peer.ID, string) {}

// ValidateMessage is invoked when a message first enters the validation pipeline.
func (*GossipCollector) ValidateMessage(msg *pubsub.Message) {
	if msg.Topic == nil {
		return
	}
	receivedMessagesBytes.WithLabelValues(*msg.Topic).Add(float64(len(msg.Data)))
	receivedMessagesCount.WithLabelValues(*msg.Topic).Inc()
}

// DeliverMessage is invoked when a message is delivered.
func (*GossipCollector) DeliverMessage(msg *pubsub.Message) {
	if msg.Topic == nil {
		return
	}
	deliveredMessagesBytes.WithLabelValues(*msg.Topic).Add(float64(len(msg.Data)))
	deliveredMessagesCount.WithLabelValues(*msg.Topic).Inc()
}

// RejectMessage is invoked when a message is Rejected or Ignored.
// The reason argument can be one of the named strings Reject*.
func (*GossipCollector) RejectMessage(_ *pubsub.Message, reason string) {
	rejectedMessagesCount.WithLabelValues(reason).Inc()
}

// DuplicateMessage is invoked when a duplicate message is dropped.
func (*GossipCollector) DuplicateMessage(msg *pubsub.Message) {
	if msg.Topic == nil {
		return
	}
	receivedMessagesBytes.WithLabelValues(*msg.Topic).Add(float64(len(msg.Data)))
	receivedMessagesCount.WithLabelValues(*msg.Topic).Inc()
}

// ThrottlePeer is invoked when a peer is throttled by the peer gater.
func (*GossipCollector) ThrottlePeer(peer.ID) {}

// RecvRPC is invoked when an incoming RPC is received.
func (*GossipCollector) RecvRPC(*pubsub.RPC) {}

// SendRPC is invoked when a RPC is sent.
func (*GossipCollector) SendRPC(*pubsub.RPC, peer.ID) {}

// DropRPC is invoked when an outbound RPC is dropped, typically because of a queue full.
func (*GossipCollector) DropRPC(*pubsub.RPC, peer.ID) {}

// UndeliverableMessage is invoked when the consumer of Subscribe is not reading messages fast enough and
// the pressure release mechanism trigger, dropping messages.
func (*GossipCollector) UndeliverableMessage(*pubsub.Message) {}
