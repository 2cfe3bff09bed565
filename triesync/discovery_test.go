package triesync

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/sync/errgroup"

	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/log/logtest"
	"github.com/attestate/leafsync/p2p/pubsub"
)

type discoveryTester struct {
	*Discovery
	roots  *MockrootSource
	syncer *Mockinitiator
}

func newDiscoveryTester(t *testing.T, self peer.ID) *discoveryTester {
	t.Helper()
	ctrl := gomock.NewController(t)
	roots := NewMockrootSource(ctrl)
	syncer := NewMockinitiator(ctrl)
	d, err := NewDiscovery(logtest.New(t), self, roots, syncer, DefaultConfig())
	require.NoError(t, err)
	return &discoveryTester{Discovery: d, roots: roots, syncer: syncer}
}

func advertisement(t *testing.T, root hash.Hash32) []byte {
	t.Helper()
	return encode(t, RootAdvertisement{Root: root.Hex()})
}

func TestDiscoveryIgnoresSelf(t *testing.T) {
	dt := newDiscoveryTester(t, "self")
	require.NoError(t, dt.Handle(context.Background(), "self", []byte("garbage")))
	_, ok := dt.PeerRoot("self")
	require.False(t, ok)
}

func TestDiscoveryRejectsInvalid(t *testing.T) {
	dt := newDiscoveryTester(t, "self")
	for _, msg := range [][]byte{
		[]byte("garbage"),
		encode(t, RootAdvertisement{Root: "abcd"}),
		encode(t, map[string]any{"root": hash.Sum([]byte("a")).Hex(), "extra": "x"}),
	} {
		err := dt.Handle(context.Background(), "remote", msg)
		require.ErrorIs(t, err, pubsub.ErrValidationReject)
	}
	_, ok := dt.PeerRoot("remote")
	require.False(t, ok)
}

func TestDiscoverySameRoot(t *testing.T) {
	dt := newDiscoveryTester(t, "self")
	root := hash.Sum([]byte("root"))
	dt.roots.EXPECT().Root().Return(root).AnyTimes()

	require.NoError(t, dt.Handle(context.Background(), "remote", advertisement(t, root)))
	got, ok := dt.PeerRoot("remote")
	require.True(t, ok)
	require.Equal(t, root, got)
	require.Empty(t, dt.queue)
}

func TestDiscoveryStartsSession(t *testing.T) {
	dt := newDiscoveryTester(t, "self")
	local, remote := hash.Sum([]byte("local")), hash.Sum([]byte("remote"))
	dt.roots.EXPECT().Root().Return(local).AnyTimes()

	started := make(chan peer.ID, 1)
	dt.syncer.EXPECT().Initiate(gomock.Any(), peer.ID("remote")).
		DoAndReturn(func(_ context.Context, pid peer.ID) error {
			started <- pid
			return ErrSessionRejected
		})

	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	eg.Go(func() error { return dt.Run(ctx) })
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
	})

	require.NoError(t, dt.Handle(context.Background(), "remote", advertisement(t, remote)))
	select {
	case pid := <-started:
		require.Equal(t, peer.ID("remote"), pid)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "session not started")
	}
}

func TestDiscoveryQueueFull(t *testing.T) {
	dt := newDiscoveryTester(t, "self")
	dt.roots.EXPECT().Root().Return(hash.Sum([]byte("local"))).AnyTimes()
	remote := advertisement(t, hash.Sum([]byte("remote")))
	for range cap(dt.queue) + 1 {
		require.NoError(t, dt.Handle(context.Background(), "remote", remote))
	}
	require.Len(t, dt.queue, cap(dt.queue))
}
