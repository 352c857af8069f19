package nodeprops

import (
	"sync"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

// ApplyResult describes the outcome of Store.Apply.
type ApplyResult struct {
	// Accepted is false if the store already had a record with the same or a
	// higher revision for the entry.
	Accepted bool
	// Previous is the record replaced by an accepted update. Only valid if HasPrevious is true.
	Previous    types.NodeProperty
	HasPrevious bool
}

// Store holds the latest known record for every (owner, key) pair ever observed,
// including tombstones and entries of nodes that are currently unreachable.
//
// Store is safe for concurrent use.
type Store struct {
	mu    sync.RWMutex
	table map[types.NodeID]map[string]types.NodeProperty
	size  int
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{table: make(map[types.NodeID]map[string]types.NodeProperty)}
}

// Apply merges record into the store using last-writer-wins by revision.
func (s *Store) Apply(record types.NodeProperty) ApplyResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apply(record)
}

func (s *Store) apply(record types.NodeProperty) ApplyResult {
	entries, exist := s.table[record.Owner]
	if !exist {
		entries = make(map[string]types.NodeProperty)
		s.table[record.Owner] = entries
	}
	prev, exist := entries[record.Key]
	if exist && prev.Revision >= record.Revision {
		return ApplyResult{Previous: prev, HasPrevious: true}
	}
	if !exist {
		s.size++
	}
	entries[record.Key] = record
	return ApplyResult{Accepted: true, Previous: prev, HasPrevious: exist}
}

// Get returns the latest record for the entry, including tombstones.
func (s *Store) Get(owner types.NodeID, key string) (types.NodeProperty, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, exist := s.table[owner][key]
	return p, exist
}

// NodeProperties returns the key/value map of the owner without tombstones.
// The result is never nil.
func (s *Store) NodeProperties(owner types.NodeID) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return valueMap(s.table[owner])
}

// NodeEntries returns the records of the owner without tombstones.
func (s *Store) NodeEntries(owner types.NodeID) []types.NodeProperty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]types.NodeProperty, 0, len(s.table[owner]))
	for _, p := range s.table[owner] {
		if !p.Deleted {
			rst = append(rst, p)
		}
	}
	return rst
}

// Entries returns a detached copy of all records, including tombstones.
func (s *Store) Entries() []types.NodeProperty {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]types.NodeProperty, 0, s.size)
	for _, entries := range s.table {
		for _, p := range entries {
			rst = append(rst, p)
		}
	}
	return rst
}

// Nodes returns the owners that have at least one record.
func (s *Store) Nodes() []types.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rst := make([]types.NodeID, 0, len(s.table))
	for id, entries := range s.table {
		if len(entries) > 0 {
			rst = append(rst, id)
		}
	}
	return rst
}

// Len returns the number of records, including tombstones.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size
}

// Complementing returns the records that the owner of received either lacks
// or knows only at a lower revision.
func (s *Store) Complementing(received []types.NodeProperty) []types.NodeProperty {
	known := make(map[types.PropertyID]uint64, len(received))
	for _, p := range received {
		if rev, exist := known[p.ID()]; !exist || p.Revision > rev {
			known[p.ID()] = p.Revision
		}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var rst []types.NodeProperty
	for _, entries := range s.table {
		for _, p := range entries {
			if rev, exist := known[p.ID()]; !exist || rev < p.Revision {
				rst = append(rst, p)
			}
		}
	}
	return rst
}

// Forget removes all records of the owner and returns how many were removed.
func (s *Store) Forget(owner types.NodeID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.table[owner])
	delete(s.table, owner)
	s.size -= n
	return n
}

func valueMap(entries map[string]types.NodeProperty) map[string]string {
	rst := make(map[string]string, len(entries))
	for key, p := range entries {
		if !p.Deleted {
			rst[key] = p.Value
		}
	}
	return rst
}
