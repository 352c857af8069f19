// Package exchange spreads node properties between peers: an initial exchange
// with complementing knowledge when a connection is established, and incremental
// deltas over gossip afterwards.
package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/go-nodeprops/codec"
	"github.com/spacemeshos/go-nodeprops/common/types"
	"github.com/spacemeshos/go-nodeprops/log"
	"github.com/spacemeshos/go-nodeprops/metrics"
	"github.com/spacemeshos/go-nodeprops/p2p/pubsub"
	"github.com/spacemeshos/go-nodeprops/p2p/server"
)

// Config for the exchange of node properties with peers.
type Config struct {
	RequestTimeout      time.Duration `mapstructure:"request-timeout"`
	RequestLimit        int           `mapstructure:"request-limit"`
	QueueSize           int           `mapstructure:"queue-size"`
	RequestsPerInterval int           `mapstructure:"requests-per-interval"`
	Interval            time.Duration `mapstructure:"interval"`

	// SyncCooldown is the minimal time between two initial exchanges with the same peer.
	SyncCooldown    time.Duration `mapstructure:"sync-cooldown"`
	SyncConcurrency int           `mapstructure:"sync-concurrency"`

	// SyncRetries is the number of times a failed initial exchange is repeated
	// after SyncRetryInterval while the peer stays connected.
	SyncRetries       int           `mapstructure:"sync-retries"`
	SyncRetryInterval time.Duration `mapstructure:"sync-retry-interval"`

	// TrackedPeers bounds the number of peers remembered for the cooldown.
	TrackedPeers int `mapstructure:"tracked-peers"`

	// MaxDeltaSize is the approximate upper bound for the size of a gossiped delta.
	// Larger sets of records are split into several messages.
	MaxDeltaSize int `mapstructure:"max-delta-size"`
}

// DefaultConfig for the exchange.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      10 * time.Second,
		RequestLimit:        16 << 20,
		QueueSize:           100,
		RequestsPerInterval: 100,
		Interval:            time.Second,
		SyncCooldown:        30 * time.Second,
		SyncConcurrency:     8,
		SyncRetries:         3,
		SyncRetryInterval:   5 * time.Second,
		TrackedPeers:        1000,
		MaxDeltaSize:        1 << 20,
	}
}

// Opt for configuring Exchange.
type Opt func(*Exchange)

// WithLogger configures logger for the exchange.
func WithLogger(logger *zap.Logger) Opt {
	return func(e *Exchange) {
		e.logger = logger
	}
}

// WithConfig sets Config for the exchange.
func WithConfig(cfg Config) Opt {
	return func(e *Exchange) {
		e.cfg = cfg
	}
}

// WithRelay makes the exchange forward the records accepted from one peer to all other peers.
func WithRelay(relay bool) Opt {
	return func(e *Exchange) {
		e.relay = relay
	}
}

func withClock(clock clockwork.Clock) Opt {
	return func(e *Exchange) {
		e.clock = clock
	}
}

func withRequester(r requester) Opt {
	return func(e *Exchange) {
		e.req = r
	}
}

// Exchange connects the node properties service to the network.
type Exchange struct {
	logger *zap.Logger
	cfg    Config
	relay  bool
	clock  clockwork.Clock
	self   types.NodeID

	svc nodeService
	pub publisher
	srv *server.Server
	req requester

	synced *lru.Cache[peer.ID, time.Time]

	mu       sync.Mutex
	pending  []types.NodeProperty
	joined   []peer.ID
	failures map[peer.ID]int
	publishc chan struct{}
	syncc    chan struct{}
}

// New creates an Exchange. The init protocol is served on h; h may be nil only
// if a requester is provided and the exchange never serves requests.
func New(h host.Host, svc nodeService, pub publisher, opts ...Opt) *Exchange {
	e := &Exchange{
		logger:   zap.NewNop(),
		cfg:      DefaultConfig(),
		clock:    clockwork.NewRealClock(),
		svc:      svc,
		pub:      pub,
		publishc: make(chan struct{}, 1),
		syncc:    make(chan struct{}, 1),
		failures: make(map[peer.ID]int),
	}
	for _, opt := range opts {
		opt(e)
	}
	if h != nil {
		e.self = types.NodeID(h.ID().String())
		e.srv = server.New(h, InitProtocol, e.handleInit,
			server.WithLog(e.logger),
			server.WithTimeout(e.cfg.RequestTimeout),
			server.WithRequestSizeLimit(e.cfg.RequestLimit),
			server.WithQueueSize(e.cfg.QueueSize),
			server.WithRequestsPerInterval(e.cfg.RequestsPerInterval, e.cfg.Interval),
			server.WithMetrics(),
		)
		if e.req == nil {
			e.req = e.srv
		}
	}
	synced, err := lru.New[peer.ID, time.Time](e.cfg.TrackedPeers)
	if err != nil {
		e.logger.Panic("failed to create peers cache", zap.Error(err))
	}
	e.synced = synced
	return e
}

// Run serves the init protocol, publishes pending deltas and performs initial
// exchanges with new peers until ctx is canceled.
func (e *Exchange) Run(ctx context.Context) error {
	var eg errgroup.Group
	if e.srv != nil {
		eg.Go(func() error {
			return e.srv.Run(ctx)
		})
	}
	eg.Go(func() error {
		e.publishLoop(ctx)
		return nil
	})
	eg.Go(func() error {
		e.syncLoop(ctx)
		return nil
	})
	return eg.Wait()
}

// PublishLocal queues records for a delta message. It never blocks.
func (e *Exchange) PublishLocal(records []types.NodeProperty) {
	e.enqueue(records)
}

// OnPeersChanged schedules the initial exchange with every peer in joined and
// forgets the failed attempts of peers in left. It never blocks.
func (e *Exchange) OnPeersChanged(_, joined, left []peer.ID) {
	e.mu.Lock()
	for _, pid := range left {
		delete(e.failures, pid)
	}
	e.mu.Unlock()
	e.schedule(joined...)
}

func (e *Exchange) schedule(joined ...peer.ID) {
	if len(joined) == 0 {
		return
	}
	e.mu.Lock()
	e.joined = append(e.joined, joined...)
	e.mu.Unlock()
	select {
	case e.syncc <- struct{}{}:
	default:
	}
}

// HandleDelta merges a gossiped delta. The message is never forwarded by gossip
// itself: a relay publishes the accepted records as its own delta, which reaches
// every peer subscribed to the topic and not only the ones in the gossip mesh.
func (e *Exchange) HandleDelta(ctx context.Context, pid peer.ID, data []byte) pubsub.ValidationResult {
	var msg Message
	if err := codec.Decode(data, &msg); err != nil {
		e.logger.Debug("malformed delta", log.ZContext(ctx), zap.Error(err))
		return pubsub.ValidationReject
	}
	if msg.Type != TypeDelta {
		e.logger.Debug("unexpected message on delta topic",
			log.ZContext(ctx),
			zap.Stringer("type", msg.Type),
		)
		return pubsub.ValidationReject
	}
	receivedDeltas.Inc()
	receivedEntries.Add(float64(len(msg.Entries)))
	e.reportLatency(msg.Entries)
	accepted := e.svc.OnRawPropertiesAddedOrModified(msg.Entries)
	acceptedEntries.Add(float64(len(accepted)))
	e.logger.Debug("received delta",
		log.ZContext(ctx),
		zap.Stringer("from", pid),
		zap.Int("entries", len(msg.Entries)),
		zap.Int("accepted", len(accepted)),
	)
	if e.relay {
		e.forward(accepted)
	}
	return pubsub.ValidationIgnore
}

// Sync performs the initial exchange with pid: the local knowledge is sent as
// init message and the complementing knowledge of the peer is merged.
func (e *Exchange) Sync(ctx context.Context, pid peer.ID) error {
	start := time.Now()
	knowledge := e.svc.KnowledgeToShare()
	req, err := codec.Encode(&Message{Type: TypeInit, Entries: knowledge})
	if err != nil {
		syncFailed.Inc()
		return fmt.Errorf("encode init message with %d entries: %w", len(knowledge), err)
	}
	sentInits.Inc()
	sentEntries.Add(float64(len(knowledge)))
	resp, err := e.req.Request(ctx, pid, req)
	switch {
	case errors.Is(err, &server.ServerError{}):
		syncFailed.Inc()
		return fmt.Errorf("%w: %w", server.ErrPeerResponseFailed, err)
	case err != nil:
		syncFailed.Inc()
		return fmt.Errorf("init request to %s: %w", pid, err)
	}
	var msg Message
	if err := codec.Decode(resp, &msg); err != nil {
		syncFailed.Inc()
		return fmt.Errorf("decode init response from %s: %w", pid, err)
	}
	if msg.Type != TypeDelta {
		syncFailed.Inc()
		return fmt.Errorf("%w: %s in response to init", ErrUnknownMessage, msg.Type)
	}
	receivedEntries.Add(float64(len(msg.Entries)))
	accepted := e.svc.OnRawPropertiesAddedOrModified(msg.Entries)
	acceptedEntries.Add(float64(len(accepted)))
	if e.relay {
		e.forward(accepted)
	}
	syncSucceeded.Inc()
	syncDuration.Observe(time.Since(start).Seconds())
	e.logger.Debug("initial exchange completed",
		zap.Stringer("peer", pid),
		zap.Int("sent", len(knowledge)),
		zap.Int("received", len(msg.Entries)),
		zap.Int("accepted", len(accepted)),
	)
	return nil
}

func (e *Exchange) handleInit(ctx context.Context, data []byte) ([]byte, error) {
	var msg Message
	if err := codec.Decode(data, &msg); err != nil {
		return nil, fmt.Errorf("decode init message: %w", err)
	}
	if msg.Type != TypeInit {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnknownMessage, msg.Type, InitProtocol)
	}
	receivedInits.Inc()
	receivedEntries.Add(float64(len(msg.Entries)))
	accepted := e.svc.OnRawPropertiesAddedOrModified(msg.Entries)
	acceptedEntries.Add(float64(len(accepted)))
	if e.relay {
		e.forward(accepted)
	}
	complement := e.svc.ComplementingKnowledge(msg.Entries)
	e.logger.Debug("responding to initial exchange",
		log.ZContext(ctx),
		zap.Int("received", len(msg.Entries)),
		zap.Int("accepted", len(accepted)),
		zap.Int("complementing", len(complement)),
	)
	sentEntries.Add(float64(len(complement)))
	return codec.Encode(&Message{Type: TypeDelta, Entries: complement})
}

func (e *Exchange) forward(records []types.NodeProperty) {
	if len(records) == 0 {
		return
	}
	forwarded.Add(float64(len(records)))
	e.enqueue(records)
}

func (e *Exchange) enqueue(records []types.NodeProperty) {
	if len(records) == 0 {
		return
	}
	e.mu.Lock()
	e.pending = append(e.pending, records...)
	pendingEntries.Set(float64(len(e.pending)))
	e.mu.Unlock()
	select {
	case e.publishc <- struct{}{}:
	default:
	}
}

func (e *Exchange) publishLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.publishc:
		}
		e.mu.Lock()
		records := e.pending
		e.pending = nil
		pendingEntries.Set(0)
		e.mu.Unlock()
		for _, batch := range split(records, e.cfg.MaxDeltaSize) {
			e.publish(ctx, batch)
		}
	}
}

func (e *Exchange) publish(ctx context.Context, batch []types.NodeProperty) {
	data, err := codec.Encode(&Message{Type: TypeDelta, Sender: e.self, Entries: batch})
	if err != nil {
		publishFailures.Inc()
		e.logger.Error("failed to encode delta", zap.Int("entries", len(batch)), zap.Error(err))
		return
	}
	if err := e.pub.Publish(ctx, DeltaTopic, data); err != nil {
		publishFailures.Inc()
		e.logger.Warn("failed to publish delta", zap.Int("entries", len(batch)), zap.Error(err))
		return
	}
	sentDeltas.Inc()
	sentEntries.Add(float64(len(batch)))
	e.logger.Debug("published delta", zap.Array("entries", types.NodeProperties(batch)))
}

func (e *Exchange) syncLoop(ctx context.Context) {
	var eg errgroup.Group
	eg.SetLimit(e.cfg.SyncConcurrency)
	defer eg.Wait()
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.syncc:
		}
		e.mu.Lock()
		joined := e.joined
		e.joined = nil
		e.mu.Unlock()
		for _, pid := range joined {
			if !e.shouldSync(pid) {
				syncSkipped.Inc()
				e.logger.Debug("skipping initial exchange during cooldown", zap.Stringer("peer", pid))
				continue
			}
			eg.Go(func() error {
				e.onSynced(ctx, pid, e.Sync(ctx, pid))
				return nil
			})
		}
	}
}

// onSynced resets the cooldown of a failed initial exchange and schedules
// another attempt, unless the peer is gone or the retries are exhausted.
func (e *Exchange) onSynced(ctx context.Context, pid peer.ID, err error) {
	e.mu.Lock()
	if err == nil {
		delete(e.failures, pid)
		e.mu.Unlock()
		return
	}
	e.synced.Remove(pid)
	e.failures[pid]++
	attempt := e.failures[pid]
	retry := !errors.Is(err, server.ErrNotConnected) && attempt <= e.cfg.SyncRetries && ctx.Err() == nil
	if !retry {
		delete(e.failures, pid)
	}
	e.mu.Unlock()

	if !retry {
		e.logger.Debug("initial exchange failed",
			zap.Stringer("peer", pid),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		return
	}
	syncRetried.Inc()
	e.logger.Debug("initial exchange failed, retrying",
		zap.Stringer("peer", pid),
		zap.Int("attempt", attempt),
		zap.Duration("after", e.cfg.SyncRetryInterval),
		zap.Error(err),
	)
	e.clock.AfterFunc(e.cfg.SyncRetryInterval, func() {
		e.schedule(pid)
	})
}

// reportLatency measures the delay since the newest record was created, using
// the millisecond revision assigned by its owner.
func (e *Exchange) reportLatency(records []types.NodeProperty) {
	var newest uint64
	for _, p := range records {
		newest = max(newest, p.Revision)
	}
	if newest == 0 {
		return
	}
	metrics.ReportMessageLatency(DeltaTopic, e.clock.Since(time.UnixMilli(int64(newest))))
}

// split cuts records into batches that fit into a delta of roughly maxSize bytes.
// A single record larger than maxSize gets a batch of its own.
func split(records []types.NodeProperty, maxSize int) [][]types.NodeProperty {
	var (
		rst         [][]types.NodeProperty
		start, size int
	)
	for i, p := range records {
		n := encodedSize(p)
		if i > start && (size+n > maxSize || i-start >= MaxEntries) {
			rst = append(rst, records[start:i])
			start, size = i, 0
		}
		size += n
	}
	if start < len(records) {
		rst = append(rst, records[start:])
	}
	return rst
}

// encodedSize is an upper bound of the scale encoded size of a record.
func encodedSize(p types.NodeProperty) int {
	// three length prefixes, the deleted flag and a compact revision
	const overhead = 3*4 + 1 + 9
	return len(p.Owner) + len(p.Key) + len(p.Value) + overhead
}
