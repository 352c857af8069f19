package p2p

import (
	"slices"
	"sync"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/spacemeshos/go-nodeprops/metrics/public"
)

// TopologyHandler is notified when the set of connected peers changes.
// now is the complete set of connected peers after the change.
type TopologyHandler func(now, joined, left []peer.ID)

// Topology tracks peers with at least one open connection.
//
// Handlers are called synchronously and in order of changes, so they must not block.
type Topology struct {
	logger *zap.Logger

	mu       sync.Mutex
	conns    map[peer.ID]int
	handlers []TopologyHandler
}

func newTopology(logger *zap.Logger) *Topology {
	return &Topology{
		logger: logger,
		conns:  make(map[peer.ID]int),
	}
}

// Register adds a handler and immediately notifies it about the peers that are already connected.
func (t *Topology) Register(handler TopologyHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers = append(t.handlers, handler)
	if now := t.connected(); len(now) > 0 {
		handler(now, now, nil)
	}
}

// Connected returns peers with open connections.
func (t *Topology) Connected() []peer.ID {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.connected()
}

func (t *Topology) connected() []peer.ID {
	rst := make([]peer.ID, 0, len(t.conns))
	for pid := range t.conns {
		rst = append(rst, pid)
	}
	slices.Sort(rst)
	return rst
}

func (t *Topology) notifiee() *network.NotifyBundle {
	return &network.NotifyBundle{
		ConnectedF: func(_ network.Network, c network.Conn) {
			public.Connections.WithLabelValues(direction(c)).Inc()
			t.onConnected(c.RemotePeer())
		},
		DisconnectedF: func(_ network.Network, c network.Conn) {
			public.Connections.WithLabelValues(direction(c)).Dec()
			t.onDisconnected(c.RemotePeer())
		},
	}
}

func (t *Topology) onConnected(pid peer.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conns[pid]++
	if t.conns[pid] > 1 {
		return
	}
	t.logger.Debug("peer connected", zap.Stringer("peer", pid))
	t.notify([]peer.ID{pid}, nil)
}

func (t *Topology) onDisconnected(pid peer.ID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n, exist := t.conns[pid]
	if !exist {
		return
	}
	if n > 1 {
		t.conns[pid] = n - 1
		return
	}
	delete(t.conns, pid)
	t.logger.Debug("peer disconnected", zap.Stringer("peer", pid))
	t.notify(nil, []peer.ID{pid})
}

func (t *Topology) notify(joined, left []peer.ID) {
	now := t.connected()
	public.ConnectedPeers.Set(float64(len(now)))
	for _, handler := range t.handlers {
		handler(now, joined, left)
	}
}

func direction(c network.Conn) string {
	if c.Stat().Direction == network.DirInbound {
		return "inbound"
	}
	return "outbound"
}
