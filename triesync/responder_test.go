package triesync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/attestate/leafsync/common/types"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/log/logtest"
	"github.com/attestate/leafsync/signing"
	"github.com/attestate/leafsync/store"
	"github.com/attestate/leafsync/trie"
)

type responderTester struct {
	*Responder
	trie     *trie.Trie
	lock     *PeerLock
	registry *Mockallowlister
	signer   *signing.EdSigner
}

func newResponderTester(t *testing.T) *responderTester {
	t.Helper()
	ctrl := gomock.NewController(t)
	signer, err := signing.NewEdSigner()
	require.NoError(t, err)
	verifier, err := signing.NewEdVerifier()
	require.NoError(t, err)
	logger := logtest.New(t)
	tr := trie.New(nil)
	lock := NewPeerLock()
	reg := NewMockallowlister(ctrl)
	return &responderTester{
		Responder: NewResponder(logger, tr, lock, store.New(logger, verifier, tr), reg),
		trie:      tr,
		lock:      lock,
		registry:  reg,
		signer:    signer,
	}
}

func (rt *responderTester) leaf(t *testing.T, title string) *trie.Leaf {
	t.Helper()
	rec := &types.Record{
		Timestamp: time.Now().Unix(),
		Type:      types.AmplifyType,
		Href:      "https://example.com/" + title,
		Title:     title,
	}
	require.NoError(t, rec.Sign(rt.signer))
	id, err := rec.ID()
	require.NoError(t, err)
	value, err := rec.Encode()
	require.NoError(t, err)
	return &trie.Leaf{Key: id, Value: value}
}

func pushPayload(t *testing.T, leaves ...*trie.Leaf) []byte {
	t.Helper()
	var nodes []trie.NodeDescriptor
	for i, l := range leaves {
		nodes = append(nodes, trie.NodeDescriptor{Key: []byte{byte(i)}, Hash: l.Hash(), Node: l})
	}
	descriptors, err := Serialize(nodes)
	require.NoError(t, err)
	return encode(t, LeavesPush{Type: leavesPushType, Nodes: descriptors})
}

func TestResponderLeaves(t *testing.T) {
	const pid = peer.ID("initiator")
	rt := newResponderTester(t)
	valid := rt.leaf(t, "valid")
	// key is not the id of the record
	bogus := rt.leaf(t, "bogus")
	bogus.Key = hash.Sum([]byte("bogus"))

	rt.registry.EXPECT().Allowlist(gomock.Any()).
		Return(map[string]struct{}{rt.signer.PublicKey().String(): {}}, nil)
	resp, err := rt.LeavesHandler()(context.Background(), pid, pushPayload(t, valid, bogus))
	require.NoError(t, err)
	require.Nil(t, resp)
	require.Equal(t, 1, rt.trie.Len())
	require.True(t, rt.trie.Has(valid.Key))
	require.Empty(t, rt.lock.Get())

	// known leaves are skipped without touching the trie
	root := rt.trie.Root()
	rt.registry.EXPECT().Allowlist(gomock.Any()).
		Return(map[string]struct{}{rt.signer.PublicKey().String(): {}}, nil)
	_, err = rt.LeavesHandler()(context.Background(), pid, pushPayload(t, valid))
	require.NoError(t, err)
	require.Equal(t, root, rt.trie.Root())
}

func TestResponderLeavesFailures(t *testing.T) {
	const pid = peer.ID("initiator")

	t.Run("allowlist", func(t *testing.T) {
		rt := newResponderTester(t)
		rt.registry.EXPECT().Allowlist(gomock.Any()).Return(nil, errors.New("test"))
		_, err := rt.LeavesHandler()(context.Background(), pid, pushPayload(t, rt.leaf(t, "a")))
		require.Error(t, err)
		require.Zero(t, rt.trie.Len())
		require.Empty(t, rt.lock.Get())
	})
	t.Run("lock held", func(t *testing.T) {
		rt := newResponderTester(t)
		rt.lock.Set("other")
		_, err := rt.LeavesHandler()(context.Background(), pid, pushPayload(t, rt.leaf(t, "a")))
		require.ErrorIs(t, err, ErrSessionRejected)
		require.Equal(t, peer.ID("other"), rt.lock.Get())
		require.Zero(t, rt.trie.Len())
	})
	t.Run("invalid message", func(t *testing.T) {
		rt := newResponderTester(t)
		_, err := rt.LeavesHandler()(context.Background(), pid, []byte("garbage"))
		require.ErrorIs(t, err, ErrInvalidMessage)
		require.Empty(t, rt.lock.Get())
	})
}

func TestResponderLevels(t *testing.T) {
	const pid = peer.ID("initiator")
	rt := newResponderTester(t)
	a, b := rt.leaf(t, "a"), rt.leaf(t, "b")
	require.NoError(t, rt.trie.Put(a.Key, a.Value))

	request := func(t *testing.T, leaves ...*trie.Leaf) *LevelsResponse {
		t.Helper()
		var nodes []trie.NodeDescriptor
		for _, l := range leaves {
			nodes = append(nodes, trie.NodeDescriptor{Key: trie.Path(l.Key, 1), Hash: l.Hash(), Node: l})
		}
		descriptors, err := Serialize(nodes)
		require.NoError(t, err)
		payload := encode(t, LevelsRequest{Type: levelsRequestType, Nodes: descriptors})
		buf, err := rt.LevelsHandler()(context.Background(), pid, payload)
		require.NoError(t, err)
		var resp LevelsResponse
		require.NoError(t, decodeMessage(levelsResponseSchema, buf, &resp))
		return &resp
	}

	resp := request(t, a, b)
	require.Len(t, resp.Match, 1)
	require.Len(t, resp.Missing, 1)
	require.Empty(t, resp.Mismatch)
	require.Equal(t, b.Hash().Hex(), resp.Missing[0].Hash)
	require.Equal(t, pid, rt.lock.Get())
	require.Equal(t, 1, rt.trie.Len())

	resp = request(t, a)
	require.Len(t, resp.Match, 1)
	require.Empty(t, rt.lock.Get())

	rt.lock.Set("other")
	payload := encode(t, LevelsRequest{Type: levelsRequestType, Nodes: []Descriptor{{
		Key: "01", Hash: a.Hash().Hex(),
	}}})
	buf, err := rt.LevelsHandler()(context.Background(), pid, payload)
	require.ErrorIs(t, err, ErrSessionRejected)
	require.Nil(t, buf)
}

func TestResponderLevelsMalformedNode(t *testing.T) {
	const pid = peer.ID("initiator")
	payload := encode(t, LevelsRequest{Type: levelsRequestType, Nodes: []Descriptor{{
		Key:  "01",
		Hash: hash.Sum([]byte("node")).Hex(),
		Node: "ff",
	}}})

	t.Run("claimed by request", func(t *testing.T) {
		rt := newResponderTester(t)
		buf, err := rt.LevelsHandler()(context.Background(), pid, payload)
		require.ErrorIs(t, err, trie.ErrUnknownNode)
		require.Nil(t, buf)
		require.Empty(t, rt.lock.Get())
	})
	t.Run("held by running session", func(t *testing.T) {
		rt := newResponderTester(t)
		rt.lock.Set(pid)
		buf, err := rt.LevelsHandler()(context.Background(), pid, payload)
		require.ErrorIs(t, err, trie.ErrUnknownNode)
		require.Nil(t, buf)
		require.Equal(t, pid, rt.lock.Get())
	})
}
