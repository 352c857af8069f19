package pubsub

import (
	"context"
	"fmt"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/hash"
	p2pmetrics "github.com/spacemeshos/go-nodeprops/p2p/metrics"
)

// Peer score thresholds. Peers that keep sending rejected deltas drop below
// the graylist threshold and their messages are ignored.
const (
	GossipScoreThreshold             = -500
	PublishScoreThreshold            = -1000
	GraylistScoreThreshold           = -2500
	AcceptPXScoreThreshold           = 1000
	OpportunisticGraftScoreThreshold = 3.5
)

// Config for PubSub.
type Config struct {
	// Flood publishes locally created messages to all peers subscribed to the topic,
	// not only to the mesh.
	Flood          bool
	MaxMessageSize int
}

// New creates a gossipsub router on top of h.
func New(ctx context.Context, logger *zap.Logger, h host.Host, cfg Config) (*GossipPubSub, error) {
	ps, err := pubsub.NewGossipSub(ctx, h, getOptions(cfg)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gossipsub instance: %w", err)
	}
	return &GossipPubSub{
		logger: logger,
		pubsub: ps,
		host:   h,
		topics: map[string]*pubsub.Topic{},
	}, nil
}

// Publisher publishes messages to a topic.
type Publisher interface {
	Publish(context.Context, string, []byte) error
}

// Subscriber registers a handler for a topic.
type Subscriber interface {
	Register(string, GossipHandler)
}

// PublishSubscriber common interface for publisher and subscribing.
type PublishSubscriber interface {
	Publisher
	Subscriber
}

// GossipHandler receives messages of a topic. The handler runs during
// validation and its result decides whether the message is forwarded.
type GossipHandler = func(context.Context, peer.ID, []byte) ValidationResult

// ValidationResult is a one of the validation result constants.
type ValidationResult = pubsub.ValidationResult

const (
	// ValidationAccept forwards the message to other peers.
	ValidationAccept = pubsub.ValidationAccept
	// ValidationIgnore drops the message without penalizing the sender.
	ValidationIgnore = pubsub.ValidationIgnore
	// ValidationReject drops the message and penalizes the sender.
	ValidationReject = pubsub.ValidationReject
)

// msgID deduplicates messages by content, so a message that reaches a node over
// several paths is validated once.
func msgID(msg *pb.Message) string {
	var topic []byte
	if msg.Topic != nil {
		topic = []byte(*msg.Topic)
	}
	digest := hash.Sum(topic, msg.Data)
	return string(digest[:])
}

func getOptions(cfg Config) []pubsub.Option {
	options := []pubsub.Option{
		pubsub.WithFloodPublish(cfg.Flood),
		pubsub.WithMessageIdFn(msgID),
		pubsub.WithNoAuthor(),
		pubsub.WithMessageSignaturePolicy(pubsub.StrictNoSign),
		pubsub.WithPeerOutboundQueueSize(8192),
		pubsub.WithValidateQueueSize(8192),
		pubsub.WithRawTracer(p2pmetrics.NewGossipCollector()),
		pubsub.WithPeerScore(
			&pubsub.PeerScoreParams{
				AppSpecificScore: func(p peer.ID) float64 {
					return 0
				},
				AppSpecificWeight: 1,

				// P7: behavioural penalties, decay after 1hr
				BehaviourPenaltyThreshold: 6,
				BehaviourPenaltyWeight:    -10,
				BehaviourPenaltyDecay:     pubsub.ScoreParameterDecay(time.Hour),

				DecayInterval: pubsub.DefaultDecayInterval,
				DecayToZero:   pubsub.DefaultDecayToZero,

				// this retains non-positive scores for 6 hours
				RetainScore: 6 * time.Hour,
			},
			&pubsub.PeerScoreThresholds{
				GossipThreshold:             GossipScoreThreshold,
				PublishThreshold:            PublishScoreThreshold,
				GraylistThreshold:           GraylistScoreThreshold,
				AcceptPXThreshold:           AcceptPXScoreThreshold,
				OpportunisticGraftThreshold: OpportunisticGraftScoreThreshold,
			},
		),
	}
	if cfg.MaxMessageSize != 0 {
		options = append(options, pubsub.WithMaxMessageSize(cfg.MaxMessageSize))
	}
	return options
}
