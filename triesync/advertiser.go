package triesync

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/attestate/leafsync/codec"
)

// AdvertiserOpt configures an Advertiser.
type AdvertiserOpt func(*Advertiser)

// WithAdvertiserClock sets the clock driving the advertisement interval.
func WithAdvertiserClock(clock clockwork.Clock) AdvertiserOpt {
	return func(a *Advertiser) {
		a.clock = clock
	}
}

// WithInterval sets the pause between advertisements.
func WithInterval(interval time.Duration) AdvertiserOpt {
	return func(a *Advertiser) {
		a.interval = interval
	}
}

// Advertiser periodically gossips the local root on RootsTopic. The root is
// published on every tick, changed or not, so that peers joining late learn
// about it.
type Advertiser struct {
	logger   *zap.Logger
	clock    clockwork.Clock
	interval time.Duration
	roots    rootSource
	pub      publisher
}

// NewAdvertiser creates an Advertiser.
func NewAdvertiser(logger *zap.Logger, roots rootSource, pub publisher, opts ...AdvertiserOpt) *Advertiser {
	a := &Advertiser{
		logger:   logger,
		clock:    clockwork.NewRealClock(),
		interval: DefaultConfig().AdvertiseInterval,
		roots:    roots,
		pub:      pub,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run advertises until ctx is canceled.
func (a *Advertiser) Run(ctx context.Context) error {
	ticker := a.clock.NewTicker(a.interval)
	defer ticker.Stop()
	for {
		a.advertise(ctx)
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
		}
	}
}

func (a *Advertiser) advertise(ctx context.Context) {
	root := a.roots.Root()
	msg, err := codec.Marshal(RootAdvertisement{Root: root.Hex()})
	if err != nil {
		a.logger.Error("encode root advertisement", zap.Error(err))
		return
	}
	if err := a.pub.Publish(ctx, RootsTopic, msg); err != nil {
		advertisedFail.Inc()
		if ctx.Err() == nil {
			a.logger.Warn("failed to advertise root", zap.Stringer("root", root), zap.Error(err))
		}
		return
	}
	advertisedOK.Inc()
	a.logger.Debug("advertised root", zap.Stringer("root", root))
}
