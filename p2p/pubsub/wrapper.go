package pubsub

import (
	"context"
	"fmt"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/log"
	"github.com/spacemeshos/go-nodeprops/p2p/metrics"
)

// GossipPubSub is a wrapper around gossipsub that runs application handlers as topic validators.
type GossipPubSub struct {
	logger *zap.Logger
	pubsub *pubsub.PubSub
	host   host.Host

	mu     sync.RWMutex
	topics map[string]*pubsub.Topic
}

var _ PublishSubscriber = (*GossipPubSub)(nil)

// Register handler for topic. Messages published by the local node are accepted
// without calling the handler.
func (ps *GossipPubSub) Register(topic string, handler GossipHandler) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if _, exist := ps.topics[topic]; exist {
		ps.logger.Panic("already registered a topic", zap.String("topic", topic))
	}
	err := ps.pubsub.RegisterTopicValidator(
		topic,
		func(ctx context.Context, pid peer.ID, msg *pubsub.Message) pubsub.ValidationResult {
			if pid == ps.host.ID() {
				return pubsub.ValidationAccept
			}
			start := time.Now()
			rst := handler(log.WithPeer(log.WithNewRequestID(ctx), pid.String()), pid, msg.Data)
			metrics.ProcessedMessagesDuration.WithLabelValues(topic, castResult(rst)).
				Observe(float64(time.Since(start)))
			return rst
		},
	)
	if err != nil {
		ps.logger.Panic("failed to register a topic validator", zap.String("topic", topic), zap.Error(err))
	}
	topich, err := ps.pubsub.Join(topic)
	if err != nil {
		ps.logger.Panic("failed to join a topic", zap.String("topic", topic), zap.Error(err))
	}
	ps.topics[topic] = topich
	if _, err = topich.Relay(); err != nil {
		ps.logger.Panic("failed to enable relay for topic",
			zap.String("topic", topic),
			zap.Error(err),
		)
	}
}

// Publish message to the topic.
func (ps *GossipPubSub) Publish(ctx context.Context, topic string, msg []byte) error {
	ps.mu.RLock()
	topich := ps.topics[topic]
	ps.mu.RUnlock()
	if topich == nil {
		return fmt.Errorf("publish to topic %v before it was registered", topic)
	}
	if err := topich.Publish(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to topic %v: %w", topic, err)
	}
	return nil
}

// ProtocolPeers returns list of peers that are communicating in a given protocol.
func (ps *GossipPubSub) ProtocolPeers(protocol string) []peer.ID {
	return ps.pubsub.ListPeers(protocol)
}

func castResult(rst ValidationResult) string {
	switch rst {
	case pubsub.ValidationAccept:
		return "accept"
	case pubsub.ValidationIgnore:
		return "ignore"
	default:
		return "reject"
	}
}
