package nodeprops

import (
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

// ChangeHandler receives the change sets of the visible projection.
// The first call reflects the complete visible state at registration time.
type ChangeHandler func(ChangeSet)

// RawHandler receives every record accepted into the store, before visibility
// filtering and without aggregation. The slice is shared between raw listeners
// and must not be modified.
type RawHandler func([]types.NodeProperty)

// Subscription identifies a registered listener.
type Subscription struct {
	id   uint64
	kind string
}

type changeListener struct {
	agg *aggregator
	out *worker[ChangeSet]
}

// AddNodePropertiesChangeListener registers handler for change sets of the visible projection.
// The handler first receives a change set with everything currently visible as added, even if
// nothing is visible, and then one change set per aggregation window with changes.
func (s *Service) AddNodePropertiesChangeListener(handler ChangeHandler) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := &Subscription{id: s.nextID, kind: kindChange}
	if s.closed {
		return sub
	}
	logger := s.logger.With(zap.Uint64("listener", sub.id))
	out := newWorker(logger, kindChange, func(cs ChangeSet) { handler(cs) })
	l := &changeListener{
		agg: newAggregator(logger, s.clock, s.cfg.AggregationWindow, s.view, out),
		out: out,
	}
	out.push(s.initialChangeSet())
	s.changeListeners[sub.id] = l
	listeners.WithLabelValues(kindChange).Inc()
	go out.run()
	return sub
}

// RemoveNodePropertiesChangeListener stops delivery to the listener. Pending
// changes are discarded; a change set that is being delivered still completes.
func (s *Service) RemoveNodePropertiesChangeListener(sub *Subscription) {
	if sub == nil || sub.kind != kindChange {
		return
	}
	s.mu.Lock()
	l, exist := s.changeListeners[sub.id]
	delete(s.changeListeners, sub.id)
	s.mu.Unlock()
	if !exist {
		return
	}
	listeners.WithLabelValues(kindChange).Dec()
	l.agg.stop()
	l.out.stop()
}

// AddRawNodePropertiesChangeListener registers handler for records accepted into the store.
// Raw listeners get no replay of the existing state.
func (s *Service) AddRawNodePropertiesChangeListener(handler RawHandler) *Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	sub := &Subscription{id: s.nextID, kind: kindRaw}
	if s.closed {
		return sub
	}
	out := newWorker(s.logger.With(zap.Uint64("listener", sub.id)), kindRaw, func(records []types.NodeProperty) {
		handler(records)
	})
	s.rawListeners[sub.id] = out
	listeners.WithLabelValues(kindRaw).Inc()
	go out.run()
	return sub
}

// RemoveRawNodePropertiesChangeListener stops delivery to the raw listener.
func (s *Service) RemoveRawNodePropertiesChangeListener(sub *Subscription) {
	if sub == nil || sub.kind != kindRaw {
		return
	}
	s.mu.Lock()
	out, exist := s.rawListeners[sub.id]
	delete(s.rawListeners, sub.id)
	s.mu.Unlock()
	if !exist {
		return
	}
	listeners.WithLabelValues(kindRaw).Dec()
	out.stop()
}

// initialChangeSet must be called with s.mu held.
func (s *Service) initialChangeSet() ChangeSet {
	var cs ChangeSet
	cs.NodeMaps = make(map[types.NodeID]map[string]string)
	for _, id := range s.tracker.Reachable() {
		entries := s.sortedEntries(id)
		if len(entries) == 0 {
			continue
		}
		cs.Added = append(cs.Added, entries...)
		cs.NodeMaps[id] = s.store.NodeProperties(id)
	}
	return cs
}

// notify must be called with s.mu held so that batches are queued in acceptance order.
func (s *Service) notify(ids []types.PropertyID, trs []transition, accepted []types.NodeProperty) {
	if len(accepted) > 0 {
		for _, out := range s.rawListeners {
			out.push(accepted)
		}
	}
	if len(ids) > 0 {
		for _, l := range s.changeListeners {
			l.agg.schedule(ids, trs)
		}
	}
}
