package triesync

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/p2p/pubsub"
)

// Discovery listens to root advertisements and starts a session with every
// peer whose root differs from the local one.
type Discovery struct {
	logger *zap.Logger
	self   peer.ID
	roots  rootSource
	syncer initiator
	peers  *lru.Cache[peer.ID, hash.Hash32]
	queue  chan peer.ID
}

// NewDiscovery creates a Discovery. Messages from self are ignored.
func NewDiscovery(logger *zap.Logger, self peer.ID, roots rootSource, syncer initiator, cfg Config) (*Discovery, error) {
	peers, err := lru.New[peer.ID, hash.Hash32](cfg.RootCacheSize)
	if err != nil {
		return nil, fmt.Errorf("root cache: %w", err)
	}
	return &Discovery{
		logger: logger,
		self:   self,
		roots:  roots,
		syncer: syncer,
		peers:  peers,
		queue:  make(chan peer.ID, max(cfg.QueueSize, 1)),
	}, nil
}

// Handle is a pubsub.GossipHandler for RootsTopic.
func (d *Discovery) Handle(_ context.Context, from peer.ID, msg []byte) error {
	if from == d.self {
		return nil
	}
	var adv RootAdvertisement
	if err := decodeMessage(rootSchema, msg, &adv); err != nil {
		return fmt.Errorf("%w: %w", pubsub.ErrValidationReject, err)
	}
	root, err := hash.FromHex(adv.Root)
	if err != nil {
		return fmt.Errorf("%w: %w", pubsub.ErrValidationReject, err)
	}
	rootsReceived.Inc()
	d.peers.Add(from, root)
	if root == d.roots.Root() {
		return nil
	}
	rootsDivergent.Inc()
	select {
	case d.queue <- from:
	default:
		d.logger.Debug("sync queue is full", zap.Stringer("peer", from))
	}
	return nil
}

// PeerRoot returns the last root advertised by pid.
func (d *Discovery) PeerRoot(pid peer.ID) (hash.Hash32, bool) {
	return d.peers.Get(pid)
}

// Run starts sessions with discovered peers, one at a time, until ctx is
// canceled.
func (d *Discovery) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case pid := <-d.queue:
			// the root may have converged while the peer was queued
			if root, ok := d.peers.Get(pid); ok && root == d.roots.Root() {
				continue
			}
			err := d.syncer.Initiate(ctx, pid)
			switch {
			case err == nil:
			case errors.Is(err, ErrSessionRejected), errors.Is(err, ErrDuplicateSession):
				d.logger.Debug("sync session not started", zap.Stringer("peer", pid), zap.Error(err))
			case ctx.Err() != nil:
				return nil
			default:
				d.logger.Warn("sync session failed", zap.Stringer("peer", pid), zap.Error(err))
			}
		}
	}
}
