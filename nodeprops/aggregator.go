package nodeprops

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

// ChangeSet is the net change of the visible projection over one
// aggregation window.
type ChangeSet struct {
	Added   []types.NodeProperty
	Updated []types.NodeProperty
	// Removed holds the last visible record of every entry that became invisible,
	// either because it was deleted or because its owner became unreachable.
	Removed []types.NodeProperty
	// NodeMaps holds the complete visible map of every node touched by the change set,
	// as of the end of the window. A nil map means that the node is not visible anymore;
	// every node that became unreachable gets one, even without visible properties.
	NodeMaps map[types.NodeID]map[string]string
}

// Empty returns true if the change set carries no changes.
func (cs ChangeSet) Empty() bool {
	return len(cs.Added)+len(cs.Updated)+len(cs.Removed)+len(cs.NodeMaps) == 0
}

type reachabilityChange struct {
	before, after bool
}

// pendingBatch coalesces transitions per entry and reachability changes per node.
// The state before the window is taken from the first change, the state after
// the window from the last one.
type pendingBatch struct {
	first   time.Time
	order   []types.PropertyID
	entries map[types.PropertyID]transition

	nodeOrder []types.NodeID
	nodes     map[types.NodeID]reachabilityChange
}

func (b *pendingBatch) empty() bool {
	return len(b.order) == 0 && len(b.nodeOrder) == 0
}

func (b *pendingBatch) reach(id types.NodeID, reachable bool) {
	if b.nodes == nil {
		b.nodes = make(map[types.NodeID]reachabilityChange)
	}
	ch, exist := b.nodes[id]
	if !exist {
		b.nodeOrder = append(b.nodeOrder, id)
		ch.before = !reachable
	}
	ch.after = reachable
	b.nodes[id] = ch
}

func (b *pendingBatch) add(id types.PropertyID, tr transition) {
	if b.entries == nil {
		b.entries = make(map[types.PropertyID]transition)
	}
	existing, exist := b.entries[id]
	if !exist {
		b.order = append(b.order, id)
		b.entries[id] = tr
		return
	}
	existing.after = tr.after
	b.entries[id] = existing
}

// changeSet computes the net effect of the batch and the owners that changed:
// owners with changed entries and nodes that became unreachable.
func (b *pendingBatch) changeSet() (ChangeSet, []types.NodeID) {
	var (
		cs      ChangeSet
		touched []types.NodeID
		seen    = map[types.NodeID]struct{}{}
	)
	for _, id := range b.order {
		tr := b.entries[id]
		switch {
		case tr.before == nil && tr.after != nil:
			cs.Added = append(cs.Added, *tr.after)
		case tr.before != nil && tr.after == nil:
			cs.Removed = append(cs.Removed, *tr.before)
		case tr.before != nil && tr.after != nil && tr.before.Revision != tr.after.Revision:
			cs.Updated = append(cs.Updated, *tr.after)
		default:
			continue
		}
		if _, exist := seen[id.Owner]; !exist {
			seen[id.Owner] = struct{}{}
			touched = append(touched, id.Owner)
		}
	}
	for _, id := range b.nodeOrder {
		ch := b.nodes[id]
		if _, exist := seen[id]; exist || !ch.before || ch.after {
			continue
		}
		seen[id] = struct{}{}
		touched = append(touched, id)
	}
	return cs, touched
}

// viewFunc calls fn while no transition can be scheduled. visible returns the
// visible map of a node, or nil if the node is not reachable.
type viewFunc func(fn func(visible func(types.NodeID) map[string]string))

// aggregator accumulates transitions for a single high-level listener and
// flushes them at most window after the first pending transition.
type aggregator struct {
	logger *zap.Logger
	clock  clockwork.Clock
	window time.Duration
	view   viewFunc
	out    *worker[ChangeSet]

	// flushMu keeps batches in order when a flush races with the next timer.
	flushMu sync.Mutex

	mu      sync.Mutex
	pending pendingBatch
	timer   clockwork.Timer
	stopped bool
}

func newAggregator(
	logger *zap.Logger,
	clock clockwork.Clock,
	window time.Duration,
	view viewFunc,
	out *worker[ChangeSet],
) *aggregator {
	return &aggregator{
		logger: logger,
		clock:  clock,
		window: window,
		view:   view,
		out:    out,
	}
}

// schedule merges transitions into the pending batch. It never blocks on delivery.
func (a *aggregator) schedule(ids []types.PropertyID, trs []transition) {
	if len(ids) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.arm()
	for i, id := range ids {
		a.pending.add(id, trs[i])
	}
}

// scheduleNodes merges reachability changes into the pending batch.
func (a *aggregator) scheduleNodes(joined, left []types.NodeID) {
	if len(joined)+len(left) == 0 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		return
	}
	a.arm()
	for _, id := range joined {
		a.pending.reach(id, true)
	}
	for _, id := range left {
		a.pending.reach(id, false)
	}
}

// arm must be called with a.mu held.
func (a *aggregator) arm() {
	if a.pending.empty() {
		a.pending.first = a.clock.Now()
	}
	if a.timer == nil {
		a.timer = a.clock.AfterFunc(a.window, func() { go a.flush() })
	}
}

func (a *aggregator) flush() {
	a.flushMu.Lock()
	defer a.flushMu.Unlock()

	var (
		cs    ChangeSet
		first time.Time
		ok    bool
	)
	a.view(func(visible func(types.NodeID) map[string]string) {
		cs, first, ok = a.take(visible)
	})
	if !ok {
		return
	}
	flushDelay.Observe(a.clock.Since(first).Seconds())
	a.logger.Debug("flushing change set",
		zap.Int("added", len(cs.Added)),
		zap.Int("updated", len(cs.Updated)),
		zap.Int("removed", len(cs.Removed)),
		zap.Int("nodes", len(cs.NodeMaps)),
	)
	a.out.push(cs)
}

// take swaps out the pending batch and computes its change set. Must be called
// from view, so that the node maps reflect exactly the state after the batch.
func (a *aggregator) take(visible func(types.NodeID) map[string]string) (ChangeSet, time.Time, bool) {
	a.mu.Lock()
	batch := a.pending
	a.pending = pendingBatch{}
	a.timer = nil
	stopped := a.stopped
	a.mu.Unlock()
	if stopped || batch.empty() {
		return ChangeSet{}, time.Time{}, false
	}
	cs, touched := batch.changeSet()
	if len(touched) == 0 {
		coalescedBatches.Inc()
		return ChangeSet{}, time.Time{}, false
	}
	cs.NodeMaps = make(map[types.NodeID]map[string]string, len(touched))
	for _, id := range touched {
		cs.NodeMaps[id] = visible(id)
	}
	return cs, batch.first, true
}

// stop discards the pending batch and cancels the flush timer.
func (a *aggregator) stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
	a.pending = pendingBatch{}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}
