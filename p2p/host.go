// Package p2p builds the libp2p host of the node and keeps it connected to
// bootnodes and to peers found on the local network.
package p2p

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	"github.com/libp2p/go-libp2p/core/transport"
	"github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	"github.com/libp2p/go-libp2p/p2p/host/peerstore/pstoremem"
	"github.com/libp2p/go-libp2p/p2p/muxer/yamux"
	"github.com/libp2p/go-libp2p/p2p/net/connmgr"
	tptu "github.com/libp2p/go-libp2p/p2p/net/upgrader"
	"github.com/libp2p/go-libp2p/p2p/security/noise"
	"github.com/libp2p/go-libp2p/p2p/transport/tcp"
	ma "github.com/multiformats/go-multiaddr"
	"go.uber.org/zap"
)

// DefaultConfig config.
func DefaultConfig() Config {
	return Config{
		Listen:             "/ip4/0.0.0.0/tcp/7513",
		NetworkID:          "leafsync",
		LowPeers:           40,
		HighPeers:          100,
		GracePeersShutdown: 30 * time.Second,
		BootstrapInterval:  30 * time.Second,
		MDNS:               true,
	}
}

// Config for all things related to p2p layer.
type Config struct {
	DataDir            string        `mapstructure:"-"`
	GracePeersShutdown time.Duration `mapstructure:"grace-peers-shutdown"`

	// NetworkID is mixed into the noise handshake. Nodes of different
	// networks can not connect.
	NetworkID         string        `mapstructure:"network-id"`
	DisableReusePort  bool          `mapstructure:"disable-reuseport"`
	Listen            string        `mapstructure:"listen"`
	Bootnodes         []string      `mapstructure:"bootnodes"`
	BootstrapInterval time.Duration `mapstructure:"bootstrap-interval"`
	LowPeers          int           `mapstructure:"low-peers"`
	HighPeers         int           `mapstructure:"high-peers"`
	MDNS              bool          `mapstructure:"mdns"`
	Metrics           bool          `mapstructure:"p2p-metrics"`
}

// mdnsServiceName is the service announced on the local network.
const mdnsServiceName = "leafsync"

// Host is a libp2p host that maintains connections to bootnodes.
type Host struct {
	host.Host

	logger    *zap.Logger
	cfg       Config
	bootnodes []peer.AddrInfo

	mu   sync.Mutex
	mdns mdns.Service
}

// New initializes the libp2p host.
func New(logger *zap.Logger, cfg Config) (*Host, error) {
	logger.Info("starting libp2p host", zap.Any("config", &cfg))
	bootnodes, err := ParseBootnodes(cfg.Bootnodes)
	if err != nil {
		return nil, err
	}
	key, err := EnsureIdentity(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	cm, err := connmgr.NewConnManager(cfg.LowPeers, cfg.HighPeers, connmgr.WithGracePeriod(cfg.GracePeersShutdown))
	if err != nil {
		return nil, fmt.Errorf("p2p create conn mgr: %w", err)
	}
	streamer := *yamux.DefaultTransport
	ps, err := pstoremem.NewPeerstore()
	if err != nil {
		return nil, fmt.Errorf("can't create peer store: %w", err)
	}
	prologue := []byte(cfg.NetworkID)
	h, err := libp2p.New(
		libp2p.Identity(key),
		libp2p.ListenAddrStrings(cfg.Listen),
		libp2p.UserAgent("leafsync"),
		libp2p.Transport(func(upgrader transport.Upgrader, rcmgr network.ResourceManager) (transport.Transport, error) {
			opts := []tcp.Option{}
			if cfg.DisableReusePort {
				opts = append(opts, tcp.DisableReuseport())
			}
			if cfg.Metrics {
				opts = append(opts, tcp.WithMetrics())
			}
			return tcp.NewTCPTransport(upgrader, rcmgr, opts...)
		}),
		libp2p.Security(noise.ID, func(id protocol.ID, privkey crypto.PrivKey, muxers []tptu.StreamMuxer) (*noise.SessionTransport, error) {
			tp, err := noise.New(id, privkey, muxers)
			if err != nil {
				return nil, err
			}
			return tp.WithSessionOptions(noise.Prologue(prologue))
		}),
		libp2p.Muxer(yamux.ID, &streamer),
		libp2p.ConnectionManager(cm),
		libp2p.Peerstore(ps),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize libp2p host: %w", err)
	}
	logger.Info("local node identity",
		zap.Stringer("identity", h.ID()),
		zap.Any("addresses", h.Addrs()),
	)
	return &Host{
		Host:      h,
		logger:    logger,
		cfg:       cfg,
		bootnodes: bootnodes,
	}, nil
}

// ParseBootnodes parses multiaddrs that end with a /p2p component.
func ParseBootnodes(addrs []string) ([]peer.AddrInfo, error) {
	infos := make([]peer.AddrInfo, 0, len(addrs))
	for _, addr := range addrs {
		maddr, err := ma.NewMultiaddr(addr)
		if err != nil {
			return nil, fmt.Errorf("parse bootnode %s: %w", addr, err)
		}
		info, err := peer.AddrInfoFromP2pAddr(maddr)
		if err != nil {
			return nil, fmt.Errorf("parse into peer.AddrInfo %s: %w", addr, err)
		}
		infos = append(infos, *info)
	}
	return infos, nil
}

// Run keeps the host connected to bootnodes and discovers peers with mdns
// until ctx is canceled.
func (fh *Host) Run(ctx context.Context) error {
	if fh.cfg.MDNS {
		svc := mdns.NewMdnsService(fh.Host, mdnsServiceName, &notifee{ctx: ctx, h: fh})
		if err := svc.Start(); err != nil {
			return fmt.Errorf("start mdns: %w", err)
		}
		fh.mu.Lock()
		fh.mdns = svc
		fh.mu.Unlock()
	}
	if len(fh.bootnodes) == 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(fh.cfg.BootstrapInterval)
	defer ticker.Stop()
	for {
		fh.connectBootnodes(ctx)
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
		if err := fh.Connect(ctx, info); err != nil {
			fh.logger.Warn("failed to connect to bootnode",
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
	fh.mu.Lock()
	svc := fh.mdns
	fh.mu.Unlock()
	var errs []error
	if svc != nil {
		if err := svc.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mdns: %w", err))
		}
	}
	if err := fh.Host.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close libp2p host: %w", err))
	}
	return errors.Join(errs...)
}

type notifee struct {
	ctx context.Context
	h   *Host
}

// HandlePeerFound connects to peers announced on the local network.
func (n *notifee) HandlePeerFound(info peer.AddrInfo) {
	if info.ID == n.h.ID() {
		return
	}
	if err := n.h.Connect(n.ctx, info); err != nil {
		n.h.logger.Debug("failed to connect to local peer", zap.Stringer("peer", info.ID), zap.Error(err))
		return
	}
	n.h.logger.Debug("connected to local peer", zap.Stringer("peer", info.ID))
}
