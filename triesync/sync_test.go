package triesync

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/attestate/leafsync/common/types"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/log/logtest"
	"github.com/attestate/leafsync/p2p/pubsub"
	"github.com/attestate/leafsync/p2p/server"
	"github.com/attestate/leafsync/registry"
	"github.com/attestate/leafsync/signing"
	"github.com/attestate/leafsync/store"
	"github.com/attestate/leafsync/trie"
)

// recorder keeps the requests sent through it.
type recorder struct {
	requester

	mu       sync.Mutex
	requests [][]byte
	hook     func(n int)
}

func (r *recorder) Request(ctx context.Context, pid peer.ID, req []byte) ([][]byte, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	n, hook := len(r.requests), r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return r.requester.Request(ctx, pid, req)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}

func (r *recorder) nodes(t *testing.T, i int) []trie.NodeDescriptor {
	t.Helper()
	r.mu.Lock()
	req := r.requests[i]
	r.mu.Unlock()
	var msg LevelsRequest
	require.NoError(t, decodeMessage(levelsRequestSchema, req, &msg))
	nodes, err := Deserialize(msg.Nodes)
	require.NoError(t, err)
	return nodes
}

type testNode struct {
	host   host.Host
	trie   *trie.Trie
	store  *store.Store
	lock   *PeerLock
	syncer *Syncer
	levels *recorder
	leaves *recorder
	allow  map[string]struct{}
}

func (n *testNode) add(t *testing.T, recs ...*types.Record) {
	t.Helper()
	cp := n.trie.Checkpoint()
	for _, rec := range recs {
		require.NoError(t, n.store.Add(cp, rec, n.allow, true))
	}
	require.NoError(t, cp.Commit())
}

type fixture struct {
	signer *signing.EdSigner
	mesh   mocknet.Mocknet
	nodes  []*testNode
	titles int
}

// newFixture starts n connected nodes. Only the records of the fixture signer
// are allowed unless allow says otherwise.
func newFixture(t *testing.T, n int, allow ...string) *fixture {
	t.Helper()
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	if len(allow) == 0 {
		allow = []string{signer.PublicKey().String()}
	}
	mesh, err := mocknet.FullMeshLinked(n)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
	})

	f := &fixture{signer: signer, mesh: mesh}
	for _, h := range mesh.Hosts() {
		f.nodes = append(f.nodes, newTestNode(t, ctx, &eg, h, allow))
	}
	require.NoError(t, mesh.ConnectAllButSelf())
	require.Eventually(t, func() bool {
		for _, h := range mesh.Hosts() {
			protos := h.Mux().Protocols()
			if !slices.Contains(protos, protocol.ID(LevelsProtocol)) ||
				!slices.Contains(protos, protocol.ID(LeavesProtocol)) {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	return f
}

func newTestNode(t *testing.T, ctx context.Context, eg *errgroup.Group, h host.Host, allow []string) *testNode {
	t.Helper()
	logger := logtest.New(t).Named(h.ID().ShortString())
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	reg, err := registry.New(logger, afero.NewMemMapFs(), registry.Config{Identities: allow})
	require.NoError(t, err)
	allowed, err := reg.Allowlist(ctx)
	require.NoError(t, err)

	tr := trie.New(nil)
	st := store.New(logger, verifier, tr)
	lock := NewPeerLock()
	resp := NewResponder(logger, tr, lock, st, reg)
	opts := []server.Opt{server.WithTimeout(5 * time.Second), server.WithLog(logger)}
	levels := server.New(h, LevelsProtocol, resp.LevelsHandler(), opts...)
	leaves := server.New(h, LeavesProtocol, resp.LeavesHandler(), opts...)
	eg.Go(func() error { return levels.Run(ctx) })
	eg.Go(func() error { return leaves.Run(ctx) })

	n := &testNode{
		host:   h,
		trie:   tr,
		store:  st,
		lock:   lock,
		levels: &recorder{requester: levels},
		leaves: &recorder{requester: leaves},
		allow:  allowed,
	}
	n.syncer = NewSyncer(tr, lock, n.levels, n.leaves, WithLogger(logger))
	return n
}

// record returns a new signed record whose id satisfies match.
func (f *fixture) record(t *testing.T, match func(id hash.Hash32) bool) *types.Record {
	t.Helper()
	for {
		f.titles++
		rec := &types.Record{
			Timestamp: time.Now().Unix(),
			Type:      types.AmplifyType,
			Href:      fmt.Sprintf("https://example.com/%d", f.titles),
			Title:     fmt.Sprintf("record %d", f.titles),
		}
		require.NoError(t, rec.Sign(f.signer))
		id, err := rec.ID()
		require.NoError(t, err)
		if match == nil || match(id) {
			return rec
		}
	}
}

func (f *fixture) records(t *testing.T, n int) []*types.Record {
	t.Helper()
	recs := make([]*types.Record, 0, n)
	for range n {
		recs = append(recs, f.record(t, nil))
	}
	return recs
}

// withPrefix matches ids starting with the nibbles.
func withPrefix(nibbles ...byte) func(hash.Hash32) bool {
	return func(id hash.Hash32) bool {
		return slices.Equal(trie.Path(id, len(nibbles)), nibbles)
	}
}

func leafHash(t *testing.T, rec *types.Record) hash.Hash32 {
	t.Helper()
	id, err := rec.ID()
	require.NoError(t, err)
	value, err := rec.Encode()
	require.NoError(t, err)
	return (&trie.Leaf{Key: id, Value: value}).Hash()
}

func TestSyncPushesMissingLeaves(t *testing.T) {
	f := newFixture(t, 2)
	local, remote := f.nodes[0], f.nodes[1]
	local.add(t,
		f.record(t, withPrefix(1)),
		f.record(t, withPrefix(2)),
		f.record(t, withPrefix(3)),
	)

	require.NoError(t, local.syncer.Initiate(context.Background(), remote.host.ID()))

	require.Equal(t, 1, local.levels.count())
	sent := local.levels.nodes(t, 0)
	require.Len(t, sent, 3)
	for _, n := range sent {
		require.NotNil(t, n.Leaf())
	}
	require.Equal(t, 1, local.leaves.count())
	require.Equal(t, local.trie.Root(), remote.trie.Root())
	require.Equal(t, 3, remote.trie.Len())
	require.Empty(t, local.lock.Get())
	require.Empty(t, remote.lock.Get())
}

func TestSyncIdenticalTries(t *testing.T) {
	f := newFixture(t, 2)
	local, remote := f.nodes[0], f.nodes[1]
	recs := f.records(t, 20)
	local.add(t, recs...)
	remote.add(t, recs...)

	require.NoError(t, local.syncer.Initiate(context.Background(), remote.host.ID()))

	require.Equal(t, 1, local.levels.count())
	require.Zero(t, local.leaves.count())
	require.Equal(t, local.trie.Root(), remote.trie.Root())
	require.Empty(t, local.lock.Get())
	require.Empty(t, remote.lock.Get())
}

func TestSyncEmptyTrie(t *testing.T) {
	f := newFixture(t, 2)
	require.NoError(t, f.nodes[0].syncer.Initiate(context.Background(), f.nodes[1].host.ID()))
	require.Zero(t, f.nodes[0].levels.count())
	require.Empty(t, f.nodes[0].lock.Get())
}

func TestSyncMismatchDescends(t *testing.T) {
	f := newFixture(t, 2)
	local, remote := f.nodes[0], f.nodes[1]
	a := f.record(t, withPrefix(1, 2))
	b := f.record(t, withPrefix(1, 3))
	c := f.record(t, withPrefix(4))
	local.add(t, a, b, c)
	remote.add(t, a, c)

	require.NoError(t, local.syncer.Initiate(context.Background(), remote.host.ID()))

	require.Equal(t, 2, local.levels.count())
	level0 := local.levels.nodes(t, 0)
	require.Len(t, level0, 2)
	level1 := local.levels.nodes(t, 1)
	require.Len(t, level1, 2)
	for _, n := range level1 {
		require.Equal(t, 1, n.Level())
		require.Equal(t, byte(1), n.Key[0])
	}
	require.Equal(t, 1, local.leaves.count())
	require.Equal(t, local.trie.Root(), remote.trie.Root())
}

func TestSyncDepthSkew(t *testing.T) {
	f := newFixture(t, 2)
	local, remote := f.nodes[0], f.nodes[1]
	a := f.record(t, withPrefix(5, 1))
	b := f.record(t, withPrefix(5, 2))
	local.add(t, a)
	remote.add(t, a, b)

	// a sits on level 0 locally and on level 1 remotely
	require.NoError(t, local.syncer.Initiate(context.Background(), remote.host.ID()))
	require.Equal(t, 1, local.levels.count())
	require.Zero(t, local.leaves.count())

	require.NoError(t, remote.syncer.Initiate(context.Background(), local.host.ID()))
	require.Equal(t, local.trie.Root(), remote.trie.Root())
}

func TestSyncBothDirections(t *testing.T) {
	f := newFixture(t, 2)
	local, remote := f.nodes[0], f.nodes[1]
	shared := f.records(t, 10)
	local.add(t, shared...)
	local.add(t, f.records(t, 7)...)
	remote.add(t, shared...)
	remote.add(t, f.records(t, 5)...)

	require.NoError(t, local.syncer.Initiate(context.Background(), remote.host.ID()))
	require.Equal(t, 22, remote.trie.Len())
	require.Equal(t, 17, local.trie.Len())

	require.NoError(t, remote.syncer.Initiate(context.Background(), local.host.ID()))
	require.Equal(t, 22, local.trie.Len())
	require.Equal(t, local.trie.Root(), remote.trie.Root())
}

func TestSyncDuplicateSession(t *testing.T) {
	f := newFixture(t, 2)
	local, remote := f.nodes[0], f.nodes[1]
	a := f.record(t, withPrefix(1, 2))
	b := f.record(t, withPrefix(1, 3))
	c := f.record(t, withPrefix(4))
	local.add(t, a, b, c)
	remote.add(t, a, c)

	entered := make(chan struct{})
	release := make(chan struct{})
	local.levels.hook = func(n int) {
		if n == 2 {
			close(entered)
			<-release
		}
	}
	var eg errgroup.Group
	eg.Go(func() error {
		return local.syncer.Initiate(context.Background(), remote.host.ID())
	})
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		require.FailNow(t, "session did not reach level 1")
	}

	before := local.syncer.exclusions(remote.host.ID())
	require.Equal(t, []hash.Hash32{leafHash(t, c)}, before)

	err := local.syncer.Initiate(context.Background(), remote.host.ID())
	require.ErrorIs(t, err, ErrDuplicateSession)
	require.Equal(t, before, local.syncer.exclusions(remote.host.ID()))
	require.Equal(t, remote.host.ID(), local.lock.Get())

	close(release)
	require.NoError(t, eg.Wait())
	require.Equal(t, local.trie.Root(), remote.trie.Root())
	require.Empty(t, local.lock.Get())
}

func TestSyncLockHeld(t *testing.T) {
	f := newFixture(t, 3)
	local, remote, other := f.nodes[0], f.nodes[1], f.nodes[2]
	local.add(t, f.records(t, 3)...)

	t.Run("locally", func(t *testing.T) {
		local.lock.Set(other.host.ID())
		t.Cleanup(func() { local.lock.Set("") })

		err := local.syncer.Initiate(context.Background(), remote.host.ID())
		require.ErrorIs(t, err, ErrSessionRejected)
		require.Equal(t, other.host.ID(), local.lock.Get())
		require.Zero(t, local.levels.count())
	})
	t.Run("remotely", func(t *testing.T) {
		remote.lock.Set(other.host.ID())
		t.Cleanup(func() { remote.lock.Set("") })

		err := local.syncer.Initiate(context.Background(), remote.host.ID())
		require.ErrorIs(t, err, server.ErrNoResponse)
		require.Empty(t, local.lock.Get())
		require.Equal(t, other.host.ID(), remote.lock.Get())
		require.Zero(t, remote.trie.Len())
	})
}

func TestSyncSkipsRejectedRecords(t *testing.T) {
	stranger, err := signing.NewEdSigner()
	require.NoError(t, err)
	// only the stranger may author records
	f := newFixture(t, 2, stranger.PublicKey().String())
	local, remote := f.nodes[0], f.nodes[1]

	// records are added to the local trie directly, bypassing the allow list
	for _, rec := range []*types.Record{
		f.record(t, withPrefix(1)),
		f.record(t, withPrefix(2)),
		f.record(t, withPrefix(3)),
	} {
		id, err := rec.ID()
		require.NoError(t, err)
		value, err := rec.Encode()
		require.NoError(t, err)
		require.NoError(t, local.trie.Put(id, value))
	}

	require.NoError(t, local.syncer.Initiate(context.Background(), remote.host.ID()))
	require.Equal(t, 1, local.leaves.count())
	require.Zero(t, remote.trie.Len())
	require.Empty(t, remote.lock.Get())
}

func TestGossipConvergence(t *testing.T) {
	f := newFixture(t, 3)
	ctx, cancel := context.WithCancel(context.Background())
	var eg errgroup.Group
	t.Cleanup(func() {
		cancel()
		require.NoError(t, eg.Wait())
	})
	for _, n := range f.nodes {
		n.add(t, f.records(t, 4)...)
		logger := logtest.New(t).Named(n.host.ID().ShortString())
		ps, err := pubsub.New(ctx, logger, n.host, pubsub.DefaultConfig())
		require.NoError(t, err)
		d, err := NewDiscovery(logger, n.host.ID(), n.trie, n.syncer, DefaultConfig())
		require.NoError(t, err)
		ps.Register(RootsTopic, d.Handle)
		adv := NewAdvertiser(logger, n.trie, ps, WithInterval(50*time.Millisecond))
		eg.Go(func() error { return adv.Run(ctx) })
		eg.Go(func() error { return d.Run(ctx) })
	}

	require.Eventually(t, func() bool {
		root := f.nodes[0].trie.Root()
		for _, n := range f.nodes {
			if n.trie.Len() != 12 || n.trie.Root() != root {
				return false
			}
		}
		return true
	}, 20*time.Second, 50*time.Millisecond)
}
