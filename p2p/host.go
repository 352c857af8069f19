package p2p

import (
	"context"
	"fmt"
	"time"

	lp2plog "github.com/ipfs/go-log/v2"
	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/transport"
	"github.com/libp2p/go-libp2p/p2p/host/peerstore/pstoremem"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	"github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/spacemeshos/go-nodeprops/p2p/pubsub"
)

// DefaultConfig config.
func DefaultConfig() Config {
	return Config{
		Listen:             "/ip4/0.0.0.0/tcp/7613",
		Flood:              true,
		MinPeers:           4,
		LowPeers:           40,
		HighPeers:          100,
		GracePeersShutdown: 30 * time.Second,
		BootstrapInterval:  10 * time.Second,
		BootstrapTimeout:   5 * time.Second,
		MaxMessageSize:     2 << 20,
	}
}

// Config for all things related to p2p layer.
type Config struct {
	DataDir  string
	LogLevel zapcore.Level

	GracePeersShutdown time.Duration `mapstructure:"grace-peers-shutdown"`
	MaxMessageSize     int           `mapstructure:"max-message-size"`

	// see https://lwn.net/Articles/542629/ for reuseport explanation
	DisableReusePort  bool          `mapstructure:"disable-reuseport"`
	DisableNatPort    bool          `mapstructure:"disable-natport"`
	Flood             bool          `mapstructure:"flood"`
	Listen            string        `mapstructure:"listen"`
	Bootnodes         []string      `mapstructure:"bootnodes"`
	MinPeers          int           `mapstructure:"min-peers"`
	LowPeers          int           `mapstructure:"low-peers"`
	HighPeers         int           `mapstructure:"high-peers"`
	BootstrapInterval time.Duration `mapstructure:"bootstrap-interval"`
	BootstrapTimeout  time.Duration `mapstructure:"bootstrap-timeout"`
}

// Opt is for configuring Host.
type Opt func(fh *Host)

// WithLog configures logger for Host.
func WithLog(logger *zap.Logger) Opt {
	return func(fh *Host) {
		fh.logger = logger
	}
}

// WithConfig sets Config for Host.
func WithConfig(cfg Config) Opt {
	return func(fh *Host) {
		fh.cfg = cfg
	}
}

// WithContext set context for Host.
func WithContext(ctx context.Context) Opt {
	return func(fh *Host) {
		fh.ctx = ctx
	}
}

// Host is a convenience wrapper for the p2p functionality required by a node:
// the libp2p host, gossip and the set of connected peers.
type Host struct {
	ctx    context.Context
	cfg    Config
	logger *zap.Logger

	host.Host
	*pubsub.GossipPubSub

	topology  *Topology
	bootnodes []peer.AddrInfo
	notifiee  *network.NotifyBundle
}

// New initializes libp2p host configured for node properties exchange.
func New(ctx context.Context, logger *zap.Logger, cfg Config, opts ...Opt) (*Host, error) {
	logger.Info("starting libp2p host", zap.Any("config", &cfg))
	key, err := EnsureIdentity(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	lp2plog.SetPrimaryCore(logger.Core())
	lp2plog.SetAllLoggers(lp2plog.LogLevel(cfg.LogLevel))
	cm, err := connmgr.NewConnManager(cfg.LowPeers, cfg.HighPeers, connmgr.WithGracePeriod(cfg.GracePeersShutdown))
	if err != nil {
		return nil, fmt.Errorf("p2p create conn mgr: %w", err)
	}
	ps, err := pstoremem.NewPeerstore()
	if err != nil {
		return nil, fmt.Errorf("can't create peer store: %w", err)
	}
	g := &gater{max: cfg.HighPeers}
	lopts := []libp2p.Option{
		libp2p.Identity(key),
		libp2p.ListenAddrStrings(cfg.Listen),
		libp2p.UserAgent("go-nodeprops"),
		libp2p.Transport(func(upgrader transport.Upgrader, rcmgr network.ResourceManager) (transport.Transport, error) {
			opts := []tcp.Option{}
			if cfg.DisableReusePort {
				opts = append(opts, tcp.DisableReuseport())
			}
			return tcp.NewTCPTransport(upgrader, rcmgr, opts...)
		}),
		libp2p.Security(noise.ID, noise.New),
		libp2p.Muxer(yamux.ID, yamux.DefaultTransport),
		libp2p.ConnectionManager(cm),
		libp2p.ConnectionGater(g),
		libp2p.Peerstore(ps),
	}
	if !cfg.DisableNatPort {
		lopts = append(lopts, libp2p.NATPortMap())
	}
	h, err := libp2p.New(lopts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize libp2p host: %w", err)
	}
	g.h = h
	logger.Info("local node identity", zap.Stringer("identity", h.ID()))
	opts = append(opts, WithContext(ctx), WithConfig(cfg), WithLog(logger))
	fh, err := Upgrade(h, opts...)
	if err != nil {
		h.Close()
		return nil, err
	}
	return fh, nil
}

// Upgrade creates Host instance from host.Host.
func Upgrade(h host.Host, opts ...Opt) (*Host, error) {
	fh := &Host{
		ctx:    context.Background(),
		cfg:    DefaultConfig(),
		logger: zap.NewNop(),
		Host:   h,
	}
	for _, opt := range opts {
		opt(fh)
	}
	cfg := fh.cfg
	for _, bootnode := range cfg.Bootnodes {
		info, err := peer.AddrInfoFromString(bootnode)
		if err != nil {
			return nil, fmt.Errorf("parse into peer.AddrInfo %s: %w", bootnode, err)
		}
		fh.bootnodes = append(fh.bootnodes, *info)
	}
	var err error
	fh.GossipPubSub, err = pubsub.New(fh.ctx, fh.logger, h, pubsub.Config{
		Flood:          cfg.Flood,
		MaxMessageSize: cfg.MaxMessageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize pubsub: %w", err)
	}
	fh.topology = newTopology(fh.logger)
	fh.notifiee = fh.topology.notifiee()
	h.Network().Notify(fh.notifiee)
	for _, conn := range h.Network().Conns() {
		fh.notifiee.Connected(h.Network(), conn)
	}
	return fh, nil
}

// Topology returns the tracker of connected peers.
func (fh *Host) Topology() *Topology {
	return fh.topology
}

// ListenAddrs returns the full addresses, including the peer id, the host listens on.
func (fh *Host) ListenAddrs() []multiaddr.Multiaddr {
	info := peer.AddrInfo{ID: fh.ID(), Addrs: fh.Addrs()}
	addrs, err := peer.AddrInfoToP2pAddrs(&info)
	if err != nil {
		fh.logger.Warn("failed to build listen addresses", zap.Error(err))
		return nil
	}
	return addrs
}

// Bootstrap connects to bootnodes whenever the number of connected peers drops below MinPeers.
// It blocks until ctx is canceled.
func (fh *Host) Bootstrap(ctx context.Context) error {
	if len(fh.bootnodes) == 0 {
		return nil
	}
	ticker := time.NewTicker(fh.cfg.BootstrapInterval)
	defer ticker.Stop()
	for {
		if len(fh.topology.Connected()) < fh.cfg.MinPeers {
			fh.connectBootnodes(ctx)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (fh *Host) connectBootnodes(ctx context.Context) {
	for _, info := range fh.bootnodes {
		if info.ID == fh.ID() || fh.Network().Connectedness(info.ID) == network.Connected {
			continue
		}
		cctx, cancel := context.WithTimeout(ctx, fh.cfg.BootstrapTimeout)
		err := fh.Connect(cctx, info)
		cancel()
		if err != nil {
			fh.logger.Debug("failed to connect to bootnode",
				zap.Stringer("peer", info.ID),
				zap.Error(err),
			)
			continue
		}
		fh.logger.Info("connected to bootnode", zap.Stringer("peer", info.ID))
	}
}

// Stop background workers and release external resources.
func (fh *Host) Stop() error {
	fh.Network().StopNotify(fh.notifiee)
	if err := fh.Host.Close(); err != nil {
		return fmt.Errorf("failed to close libp2p host: %w", err)
	}
	return nil
}
