package nodeprops

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

type reachableSet = map[types.NodeID]struct{}

// Tracker maintains the set of nodes reachable from the local node.
// The local node is always reachable.
//
// Reads are lock free: the set is replaced on every update.
type Tracker struct {
	logger *zap.Logger
	clock  clockwork.Clock
	local  types.NodeID

	snapshot atomic.Pointer[reachableSet]

	mu sync.Mutex
	// unreachableSince records when a node with known properties left the set.
	unreachableSince map[types.NodeID]time.Time
}

// NewTracker creates a Tracker where only the local node is reachable.
func NewTracker(logger *zap.Logger, clock clockwork.Clock, local types.NodeID) *Tracker {
	t := &Tracker{
		logger:           logger,
		clock:            clock,
		local:            local,
		unreachableSince: make(map[types.NodeID]time.Time),
	}
	initial := reachableSet{local: {}}
	t.snapshot.Store(&initial)
	return t
}

// IsReachable returns true if the node is in the current reachable set.
func (t *Tracker) IsReachable(id types.NodeID) bool {
	_, exist := (*t.snapshot.Load())[id]
	return exist
}

// Reachable returns the current reachable set, including the local node.
func (t *Tracker) Reachable() []types.NodeID {
	set := *t.snapshot.Load()
	rst := make([]types.NodeID, 0, len(set))
	for id := range set {
		rst = append(rst, id)
	}
	return types.SortNodeIDs(rst)
}

// Update replaces the reachable set with now and returns the nodes that
// actually joined and left the set. added and removed are only used to detect
// inconsistent notifications; now is authoritative.
func (t *Tracker) Update(now, added, removed []types.NodeID) (joined, left []types.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(reachableSet, len(now)+1)
	for _, id := range now {
		next[id] = struct{}{}
	}
	next[t.local] = struct{}{}
	for _, id := range added {
		if _, exist := next[id]; !exist {
			t.logger.Warn("node reported as added is not in the reachable set", id.Field())
		}
	}
	for _, id := range removed {
		if _, exist := next[id]; exist && id != t.local {
			t.logger.Warn("node reported as removed is still in the reachable set", id.Field())
		}
	}

	prev := *t.snapshot.Load()
	for id := range next {
		if _, exist := prev[id]; !exist {
			joined = append(joined, id)
			delete(t.unreachableSince, id)
		}
	}
	nowTime := t.clock.Now()
	for id := range prev {
		if _, exist := next[id]; !exist {
			left = append(left, id)
			t.unreachableSince[id] = nowTime
		}
	}
	t.snapshot.Store(&next)
	return types.SortNodeIDs(joined), types.SortNodeIDs(left)
}

// UnreachableBefore returns the nodes that have been unreachable since before cutoff.
func (t *Tracker) UnreachableBefore(cutoff time.Time) []types.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()
	var rst []types.NodeID
	for id, since := range t.unreachableSince {
		if since.Before(cutoff) {
			rst = append(rst, id)
		}
	}
	return types.SortNodeIDs(rst)
}

// MarkUnreachable starts the retention horizon for a node that was never
// reachable, e.g. one whose properties were relayed by a neighbour.
func (t *Tracker) MarkUnreachable(id types.NodeID) {
	if t.IsReachable(id) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exist := t.unreachableSince[id]; !exist {
		t.unreachableSince[id] = t.clock.Now()
	}
}

// Forget drops the retention bookkeeping for the node.
func (t *Tracker) Forget(id types.NodeID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.unreachableSince, id)
}
