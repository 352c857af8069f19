package nodeprops

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

// Sequencer assigns revisions to records published by the local node.
//
// Revisions are strictly increasing within a process and follow the wall clock
// in milliseconds, so that a restarted node supersedes what it published before.
type Sequencer struct {
	clock clockwork.Clock

	mu   sync.Mutex
	last uint64
}

// NewSequencer creates a Sequencer driven by clock.
func NewSequencer(clock clockwork.Clock) *Sequencer {
	return &Sequencer{clock: clock}
}

// Next returns a revision that is higher than every revision returned or observed before.
func (s *Sequencer) Next() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := max(s.last+1, uint64(s.clock.Now().UnixMilli()))
	s.last = next
	return next
}

// Observe makes the next revision exceed rev.
func (s *Sequencer) Observe(rev uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = max(s.last, rev)
}
