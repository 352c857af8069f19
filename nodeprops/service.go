package nodeprops

import (
	"cmp"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

//go:generate mockgen -typed -package=mocks -destination=./mocks/mocks.go -source=./service.go

// Publisher sends records created by the local node to the network.
// PublishLocal is called while the service holds its lock and must not block.
type Publisher interface {
	PublishLocal(records []types.NodeProperty)
}

// PublisherFunc is an adapter to use a function as Publisher.
type PublisherFunc func(records []types.NodeProperty)

// PublishLocal calls f(records).
func (f PublisherFunc) PublishLocal(records []types.NodeProperty) {
	f(records)
}

type Opt func(*Service)

func WithLogger(logger *zap.Logger) Opt {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg Config) Opt {
	return func(s *Service) {
		s.cfg = cfg
	}
}

// WithPublisher sets the publisher for local records.
func WithPublisher(p Publisher) Opt {
	return func(s *Service) {
		s.publisher = p
	}
}

func withClock(clock clockwork.Clock) Opt {
	return func(s *Service) {
		s.clock = clock
	}
}

func DefaultConfig() Config {
	return Config{
		AggregationWindow: 200 * time.Millisecond,
		PruneInterval:     time.Minute,
	}
}

type Config struct {
	// AggregationWindow is the maximum delay between the first pending change
	// and its delivery to high-level listeners.
	AggregationWindow time.Duration `mapstructure:"aggregation-window"`

	// Relay nodes forward records received from one peer to all other peers and
	// share their complete knowledge during the initial exchange. Other nodes only
	// share what they published themselves.
	Relay bool `mapstructure:"relay"`

	// Retention is how long the properties of an unreachable node are kept.
	// Zero keeps them forever.
	Retention time.Duration `mapstructure:"retention"`

	// PruneInterval is how often nodes beyond the retention horizon are looked up.
	PruneInterval time.Duration `mapstructure:"prune-interval"`
}

type nopPublisher struct{}

func (nopPublisher) PublishLocal([]types.NodeProperty) {}

// Service maintains the node properties of the mesh as seen by the local node
// and notifies listeners about changes of the visible projection.
type Service struct {
	logger    *zap.Logger
	cfg       Config
	clock     clockwork.Clock
	local     types.NodeID
	publisher Publisher

	// mu serializes intake, topology changes and listener registration.
	// Readers take it for reading to observe a consistent projection.
	mu        sync.RWMutex
	store     *Store
	published *Store
	tracker   *Tracker
	seq       *Sequencer

	nextID          uint64
	changeListeners map[uint64]*changeListener
	rawListeners    map[uint64]*worker[[]types.NodeProperty]
	closed          bool
}

// New creates a Service for the local node.
func New(local types.NodeID, opts ...Opt) *Service {
	s := &Service{
		logger:          zap.NewNop(),
		cfg:             DefaultConfig(),
		clock:           clockwork.NewRealClock(),
		local:           local,
		publisher:       nopPublisher{},
		store:           NewStore(),
		published:       NewStore(),
		changeListeners: make(map[uint64]*changeListener),
		rawListeners:    make(map[uint64]*worker[[]types.NodeProperty]),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.tracker = NewTracker(s.logger, s.clock, local)
	s.seq = NewSequencer(s.clock)
	return s
}

// LocalID returns the id of the local node.
func (s *Service) LocalID() types.NodeID {
	return s.local
}

// Config returns the configuration of the service.
func (s *Service) Config() Config {
	return s.cfg
}

// OnRawPropertiesAddedOrModified merges records received from the network
// and returns the subset that was accepted into the store.
//
// Malformed records are dropped with a warning and stale records are ignored;
// neither affects the remaining records.
func (s *Service) OnRawPropertiesAddedOrModified(records []types.NodeProperty) []types.NodeProperty {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	valid := make([]types.NodeProperty, 0, len(records))
	for _, p := range records {
		if err := p.Validate(); err != nil {
			malformedRecords.Inc()
			s.logger.Warn("dropping malformed node property", zap.Error(err))
			continue
		}
		valid = append(valid, p)
	}
	s.republishOrCancel(valid)

	var (
		ids      []types.PropertyID
		trs      []transition
		accepted []types.NodeProperty
	)
	for _, p := range valid {
		res := s.store.Apply(p)
		if !res.Accepted {
			staleRecords.Inc()
			s.logger.Debug("ignoring stale node property",
				zap.Inline(p),
				zap.Uint64("current_revision", res.Previous.Revision),
			)
			continue
		}
		acceptedRecords.Inc()
		accepted = append(accepted, p)
		reachable := s.tracker.IsReachable(p.Owner)
		if !reachable && s.cfg.Retention > 0 {
			s.tracker.MarkUnreachable(p.Owner)
		}
		if tr, changed := visibleTransition(res.Previous, res.HasPrevious, p, reachable); changed {
			ids = append(ids, p.ID())
			trs = append(trs, tr)
		}
	}
	storeEntries.Set(float64(s.store.Len()))
	s.notify(ids, trs, accepted)
	return accepted
}

// republishOrCancel reacts to records that claim to be owned by the local node.
// A key that the local node never published is canceled with a tombstone; a key
// with a newer foreign revision is published again with the local value.
// Must be called with s.mu held.
func (s *Service) republishOrCancel(records []types.NodeProperty) {
	values := map[string]*string{}
	for _, p := range records {
		if p.Owner != s.local {
			continue
		}
		s.seq.Observe(p.Revision)
		own, exist := s.published.Get(s.local, p.Key)
		switch {
		case !exist && !p.Deleted:
			canceledValues.Inc()
			s.logger.Debug("received a property of the local node with no local counterpart, canceling",
				zap.Inline(p),
			)
			values[p.Key] = nil
		case exist && own.Revision < p.Revision:
			republishedValues.Inc()
			s.logger.Warn("received a property of the local node that is newer than the local state;"+
				" is there another node with the same id?",
				zap.Object("local", own),
				zap.Object("received", p),
			)
			values[p.Key] = own.ValuePtr()
		}
	}
	if len(values) > 0 {
		s.publishLocal(values)
	}
}

// OnReachableNodesChanged replaces the reachable set with now. Properties of
// nodes that joined become visible, properties of nodes that left become invisible,
// the store itself is not modified.
func (s *Service) OnReachableNodesChanged(now, added, removed []types.NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	joined, left := s.tracker.Update(now, added, removed)
	var (
		ids []types.PropertyID
		trs []transition
	)
	for _, id := range joined {
		for _, p := range s.sortedEntries(id) {
			ids = append(ids, p.ID())
			trs = append(trs, transition{after: &p})
		}
	}
	for _, id := range left {
		for _, p := range s.sortedEntries(id) {
			ids = append(ids, p.ID())
			trs = append(trs, transition{before: &p})
		}
	}
	s.logger.Debug("reachable nodes changed",
		zap.Array("joined", types.NodeIDs(joined)),
		zap.Array("left", types.NodeIDs(left)),
		zap.Int("transitions", len(ids)),
	)
	for _, l := range s.changeListeners {
		l.agg.scheduleNodes(joined, left)
	}
	s.notify(ids, trs, nil)
}

// AddOrUpdateLocalNodeProperty publishes a property of the local node.
// A nil value deletes the property.
func (s *Service) AddOrUpdateLocalNodeProperty(key string, value *string) {
	s.AddOrUpdateLocalNodeProperties(map[string]*string{key: value})
}

// AddOrUpdateLocalNodeProperties publishes several properties of the local node
// under a single revision. A nil value deletes the property.
func (s *Service) AddOrUpdateLocalNodeProperties(values map[string]*string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.publishLocal(values)
}

// publishLocal must be called with s.mu held.
func (s *Service) publishLocal(values map[string]*string) {
	rev := s.seq.Next()
	var (
		ids      []types.PropertyID
		trs      []transition
		accepted []types.NodeProperty
	)
	for _, key := range slices.Sorted(maps.Keys(values)) {
		var p types.NodeProperty
		if v := values[key]; v == nil {
			p = types.NewTombstone(s.local, key, rev)
		} else {
			p = types.NewProperty(s.local, key, *v, rev)
		}
		if err := p.Validate(); err != nil {
			malformedRecords.Inc()
			s.logger.Warn("refusing to publish malformed local property", zap.Error(err))
			continue
		}
		s.published.Apply(p)
		res := s.store.Apply(p)
		if !res.Accepted {
			// the sequencer observed every revision in the store
			s.logger.Error("local property rejected by the store", zap.Inline(p))
			continue
		}
		accepted = append(accepted, p)
		if tr, changed := visibleTransition(res.Previous, res.HasPrevious, p, true); changed {
			ids = append(ids, p.ID())
			trs = append(trs, tr)
		}
	}
	if len(accepted) == 0 {
		return
	}
	storeEntries.Set(float64(s.store.Len()))
	s.publisher.PublishLocal(accepted)
	s.notify(ids, trs, accepted)
}

// GetAllNodeProperties returns the visible projection: the properties of all
// reachable nodes, including the local node, without tombstones.
func (s *Service) GetAllNodeProperties() map[types.NodeID]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Visible(s.store.Entries(), s.tracker.IsReachable)
}

// GetAllNodePropertiesFor returns the visible projection restricted to ids.
// Nodes without visible properties are absent from the result.
func (s *Service) GetAllNodePropertiesFor(ids []types.NodeID) map[types.NodeID]map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make(map[types.NodeID]map[string]string, len(ids))
	for _, id := range ids {
		if !s.tracker.IsReachable(id) {
			continue
		}
		if values := s.store.NodeProperties(id); len(values) > 0 {
			rst[id] = values
		}
	}
	return rst
}

// GetNodeProperties returns the known properties of a node without tombstones,
// regardless of its reachability.
func (s *Service) GetNodeProperties(id types.NodeID) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.NodeProperties(id)
}

// KnownNodes returns the owners of all stored records, reachable or not.
func (s *Service) KnownNodes() []types.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.SortNodeIDs(s.store.Nodes())
}

// ReachableNodes returns the current reachable set, including the local node.
func (s *Service) ReachableNodes() []types.NodeID {
	return s.tracker.Reachable()
}

// KnowledgeToShare returns the records sent to a peer during the initial exchange:
// the complete knowledge for relays, the locally published records otherwise.
func (s *Service) KnowledgeToShare() []types.NodeProperty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Relay {
		return s.store.Entries()
	}
	return s.published.Entries()
}

// ComplementingKnowledge returns the records the sender of received lacks or
// knows at a lower revision, using the same knowledge as KnowledgeToShare.
func (s *Service) ComplementingKnowledge(received []types.NodeProperty) []types.NodeProperty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg.Relay {
		return s.store.Complementing(received)
	}
	return s.published.Complementing(received)
}

// ForgetUnreachableSince drops all records of nodes that have been unreachable
// since before cutoff and returns them.
func (s *Service) ForgetUnreachableSince(cutoff time.Time) []types.NodeID {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.tracker.UnreachableBefore(cutoff)
	for _, id := range ids {
		n := s.store.Forget(id)
		s.tracker.Forget(id)
		pruned.Inc()
		s.logger.Info("forgot properties of unreachable node", id.Field(), zap.Int("records", n))
	}
	storeEntries.Set(float64(s.store.Len()))
	return ids
}

// Close stops all listeners. Pending change sets are discarded. A callback that
// is being delivered still completes; Close doesn't wait for it, so a callback
// may close the service.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for id, l := range s.changeListeners {
		l.agg.stop()
		l.out.stop()
		delete(s.changeListeners, id)
		listeners.WithLabelValues(kindChange).Dec()
	}
	for id, out := range s.rawListeners {
		out.stop()
		delete(s.rawListeners, id)
		listeners.WithLabelValues(kindRaw).Dec()
	}
	s.mu.Unlock()
}

func (s *Service) view(fn func(visible func(types.NodeID) map[string]string)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.visibleMap)
}

// visibleMap must be called with s.mu held.
func (s *Service) visibleMap(id types.NodeID) map[string]string {
	if !s.tracker.IsReachable(id) {
		return nil
	}
	return s.store.NodeProperties(id)
}

// sortedEntries returns the visible records of id ordered by key.
func (s *Service) sortedEntries(id types.NodeID) []types.NodeProperty {
	entries := s.store.NodeEntries(id)
	slices.SortFunc(entries, func(a, b types.NodeProperty) int {
		return cmp.Compare(a.Key, b.Key)
	})
	return entries
}
