package p2p

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/go-nodeprops/p2p/pubsub"
)

type topologyEvent struct {
	now, joined, left []peer.ID
}

type topologyRecorder struct {
	mu     sync.Mutex
	events []topologyEvent
}

func (r *topologyRecorder) handle(now, joined, left []peer.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, topologyEvent{now: now, joined: joined, left: left})
}

func (r *topologyRecorder) last() (topologyEvent, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return topologyEvent{}, 0
	}
	return r.events[len(r.events)-1], len(r.events)
}

func TestTopology(t *testing.T) {
	const n = 3
	mesh, err := mocknet.FullMeshLinked(n)
	require.NoError(t, err)
	var hosts []*Host
	for _, h := range mesh.Hosts() {
		fh, err := Upgrade(h, WithLog(zaptest.NewLogger(t)))
		require.NoError(t, err)
		hosts = append(hosts, fh)
	}
	rec := &topologyRecorder{}
	hosts[0].Topology().Register(rec.handle)
	_, count := rec.last()
	require.Zero(t, count, "no peers are connected yet")

	_, err = mesh.ConnectPeers(hosts[0].ID(), hosts[1].ID())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		ev, _ := rec.last()
		return len(ev.now) == 1
	}, time.Second, 10*time.Millisecond)
	ev, _ := rec.last()
	require.Equal(t, []peer.ID{hosts[1].ID()}, ev.joined)
	require.Empty(t, ev.left)

	_, err = mesh.ConnectPeers(hosts[2].ID(), hosts[0].ID())
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return len(hosts[0].Topology().Connected()) == 2
	}, time.Second, 10*time.Millisecond)

	late := &topologyRecorder{}
	hosts[0].Topology().Register(late.handle)
	ev, count = late.last()
	require.Equal(t, 1, count)
	require.ElementsMatch(t, []peer.ID{hosts[1].ID(), hosts[2].ID()}, ev.now)
	require.Equal(t, ev.now, ev.joined)

	require.NoError(t, mesh.DisconnectPeers(hosts[0].ID(), hosts[1].ID()))
	require.Eventually(t, func() bool {
		ev, _ := rec.last()
		return len(ev.left) == 1
	}, time.Second, 10*time.Millisecond)
	ev, _ = rec.last()
	require.Equal(t, []peer.ID{hosts[1].ID()}, ev.left)
	require.Equal(t, []peer.ID{hosts[2].ID()}, ev.now)
	require.Equal(t, []peer.ID{hosts[2].ID()}, hosts[0].Topology().Connected())
}

func TestTopologyExistingConnections(t *testing.T) {
	mesh, err := mocknet.FullMeshConnected(2)
	require.NoError(t, err)
	fh, err := Upgrade(mesh.Hosts()[0])
	require.NoError(t, err)
	require.Equal(t, []peer.ID{mesh.Hosts()[1].ID()}, fh.Topology().Connected())
}

func TestGossip(t *testing.T) {
	const (
		n     = 3
		topic = "test"
	)
	mesh, err := mocknet.FullMeshLinked(n)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	var (
		mu       sync.Mutex
		received = map[peer.ID][]peer.ID{}
	)
	var hosts []*Host
	for _, h := range mesh.Hosts() {
		fh, err := Upgrade(h, WithContext(ctx), WithLog(zaptest.NewLogger(t)))
		require.NoError(t, err)
		self := h.ID()
		fh.Register(topic, func(_ context.Context, from peer.ID, msg []byte) pubsub.ValidationResult {
			mu.Lock()
			defer mu.Unlock()
			received[self] = append(received[self], from)
			return pubsub.ValidationAccept
		})
		hosts = append(hosts, fh)
	}
	require.NoError(t, mesh.ConnectAllButSelf())
	require.Eventually(t, func() bool {
		for _, h := range hosts {
			if len(h.ProtocolPeers(topic)) != n-1 {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, hosts[0].Publish(ctx, topic, []byte("hello")))
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received[hosts[1].ID()]) == 1 && len(received[hosts[2].ID()]) == 1
	}, 5*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Empty(t, received[hosts[0].ID()], "local messages are not passed to the handler")

	require.Error(t, hosts[0].Publish(ctx, "unknown", []byte("hello")))
}

func TestListenAddrs(t *testing.T) {
	mesh, err := mocknet.FullMeshLinked(1)
	require.NoError(t, err)
	fh, err := Upgrade(mesh.Hosts()[0])
	require.NoError(t, err)
	addrs := fh.ListenAddrs()
	require.NotEmpty(t, addrs)
	info, err := peer.AddrInfoFromP2pAddr(addrs[0])
	require.NoError(t, err)
	require.Equal(t, fh.ID(), info.ID)
}

func TestInvalidBootnode(t *testing.T) {
	mesh, err := mocknet.FullMeshLinked(1)
	require.NoError(t, err)
	cfg := DefaultConfig()
	cfg.Bootnodes = []string{"not a multiaddr"}
	_, err = Upgrade(mesh.Hosts()[0], WithConfig(cfg))
	require.Error(t, err)
}

func TestBootstrap(t *testing.T) {
	mesh, err := mocknet.FullMeshLinked(2)
	require.NoError(t, err)
	boot := mesh.Hosts()[1]
	cfg := DefaultConfig()
	cfg.BootstrapInterval = 10 * time.Millisecond
	addrs, err := peer.AddrInfoToP2pAddrs(&peer.AddrInfo{ID: boot.ID(), Addrs: boot.Addrs()})
	require.NoError(t, err)
	for _, addr := range addrs {
		cfg.Bootnodes = append(cfg.Bootnodes, addr.String())
	}
	fh, err := Upgrade(mesh.Hosts()[0], WithConfig(cfg), WithLog(zaptest.NewLogger(t)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- fh.Bootstrap(ctx) }()
	require.Eventually(t, func() bool {
		return len(fh.Topology().Connected()) == 1
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}
