package prune

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

//go:generate mockgen -typed -package=prune -destination=./mocks.go -source=./prune.go

type forgetter interface {
	ForgetUnreachableSince(cutoff time.Time) []types.NodeID
}

type Opt func(*Pruner)

func WithLogger(logger *zap.Logger) Opt {
	return func(p *Pruner) {
		p.logger = logger
	}
}

func withClock(clock clockwork.Clock) Opt {
	return func(p *Pruner) {
		p.clock = clock
	}
}

// New creates a Pruner that forgets nodes unreachable for longer than retention.
func New(state forgetter, retention time.Duration, opts ...Opt) *Pruner {
	p := &Pruner{
		logger:    zap.NewNop(),
		clock:     clockwork.NewRealClock(),
		state:     state,
		retention: retention,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type Pruner struct {
	logger    *zap.Logger
	clock     clockwork.Clock
	state     forgetter
	retention time.Duration
}

// Run prunes every interval until ctx is canceled.
func (p *Pruner) Run(ctx context.Context, interval time.Duration) {
	p.logger.Info("node properties pruning launched",
		zap.Duration("retention", p.retention),
		zap.Duration("interval", interval),
	)
	ticker := p.clock.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.Prune()
		}
	}
}

// Prune forgets nodes that have been unreachable since before the retention horizon.
func (p *Pruner) Prune() []types.NodeID {
	start := p.clock.Now()
	forgotten := p.state.ForgetUnreachableSince(start.Add(-p.retention))
	pruneLatency.Observe(p.clock.Since(start).Seconds())
	if len(forgotten) > 0 {
		p.logger.Debug("pruned unreachable nodes", zap.Array("nodes", types.NodeIDs(forgotten)))
	}
	return forgotten
}
