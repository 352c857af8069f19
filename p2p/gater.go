package p2p

import (
	"github.com/libp2p/go-libp2p/core/control"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/multiformats/go-multiaddr"
)

// gater refuses new connections once max peers are connected.
// Additional connections to peers that are already connected are not limited.
type gater struct {
	h   host.Host
	max int
}

func (g *gater) full() bool {
	if g.h == nil || g.max == 0 {
		return false
	}
	return len(g.h.Network().Peers()) >= g.max
}

func (*gater) InterceptPeerDial(peer.ID) bool {
	return true
}

func (g *gater) InterceptAddrDial(pid peer.ID, _ multiaddr.Multiaddr) bool {
	if g.h != nil && g.h.Network().Connectedness(pid) == network.Connected {
		return true
	}
	return !g.full()
}

func (g *gater) InterceptAccept(network.ConnMultiaddrs) bool {
	return !g.full()
}

func (*gater) InterceptSecured(network.Direction, peer.ID, network.ConnMultiaddrs) bool {
	return true
}

func (*gater) InterceptUpgraded(network.Conn) (allow bool, reason control.DisconnectReason) {
	return true, 0
}
