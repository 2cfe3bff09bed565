package triesync

import (
	"context"
	"errors"
	"fmt"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.uber.org/zap"

	"github.com/attestate/leafsync/codec"
	"github.com/attestate/leafsync/common/types"
	"github.com/attestate/leafsync/p2p/server"
	"github.com/attestate/leafsync/store"
	"github.com/attestate/leafsync/trie"
)

// Responder serves LevelsProtocol and LeavesProtocol.
type Responder struct {
	logger   *zap.Logger
	trie     *trie.Trie
	lock     *PeerLock
	store    recordAdder
	registry allowlister
}

// NewResponder creates a Responder. Leaves are added to tr through store,
// authors are checked against the allowlist of registry.
func NewResponder(logger *zap.Logger, tr *trie.Trie, lock *PeerLock, store recordAdder, registry allowlister) *Responder {
	return &Responder{
		logger:   logger,
		trie:     tr,
		lock:     lock,
		store:    store,
		registry: registry,
	}
}

// receive adapts a typed handler to server.Handler. The request is checked
// against schema before it is decoded.
func receive[T any](schema *jsonschema.Schema, handler func(context.Context, peer.ID, *T) (any, error)) server.Handler {
	return func(ctx context.Context, pid peer.ID, req []byte) ([]byte, error) {
		var msg T
		if err := decodeMessage(schema, req, &msg); err != nil {
			return nil, err
		}
		resp, err := handler(ctx, pid, &msg)
		if err != nil || resp == nil {
			return nil, err
		}
		return codec.Marshal(resp)
	}
}

// LevelsHandler handles LevelsProtocol.
func (r *Responder) LevelsHandler() server.Handler {
	return receive(levelsRequestSchema, r.handleLevels)
}

// LeavesHandler handles LeavesProtocol.
func (r *Responder) LeavesHandler() server.Handler {
	return receive(leavesPushSchema, r.handleLeaves)
}

func (r *Responder) accept(pid peer.ID) (Validation, error) {
	v := r.lock.IsValid(pid)
	if !v.Accepted {
		respondedRejected.Inc()
		return v, fmt.Errorf("%w: lock held by %s", ErrSessionRejected, v.Current)
	}
	return v, nil
}

func (r *Responder) handleLevels(_ context.Context, pid peer.ID, req *LevelsRequest) (any, error) {
	v, err := r.accept(pid)
	if err != nil {
		return nil, err
	}
	nodes, err := Deserialize(req.Nodes)
	if err != nil {
		// a lock taken before this request belongs to a running session
		if v.Claimed {
			r.lock.Release(pid)
		}
		return nil, err
	}
	cmp := trie.Compare(r.trie.Snapshot(), nodes)
	resp := LevelsResponse{Type: levelsResponseType}
	if resp.Missing, err = Serialize(cmp.Missing); err != nil {
		return nil, err
	}
	if resp.Mismatch, err = Serialize(cmp.Mismatch); err != nil {
		return nil, err
	}
	if resp.Match, err = Serialize(cmp.Match); err != nil {
		return nil, err
	}
	if cmp.Empty() {
		r.lock.Release(pid)
		respondedOK.Inc()
	}
	r.logger.Debug("compared level",
		zap.Stringer("peer", pid),
		zap.Int("nodes", len(nodes)),
		zap.Int("missing", len(cmp.Missing)),
		zap.Int("mismatch", len(cmp.Mismatch)),
		zap.Int("match", len(cmp.Match)),
	)
	return &resp, nil
}

func (r *Responder) handleLeaves(ctx context.Context, pid peer.ID, req *LeavesPush) (any, error) {
	if _, err := r.accept(pid); err != nil {
		return nil, err
	}
	defer r.lock.Release(pid)
	nodes, err := Deserialize(req.Nodes)
	if err != nil {
		return nil, err
	}
	allow, err := r.registry.Allowlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("allowlist: %w", err)
	}
	logger := r.logger.With(zap.Stringer("peer", pid))
	cp := r.trie.Checkpoint()
	for _, n := range nodes {
		if err := r.add(cp, n, allow); err != nil {
			leavesDropped.Inc()
			if errors.Is(err, store.ErrRecordExists) {
				logger.Debug("leaf already stored", zap.Stringer("hash", n.Hash))
			} else {
				logger.Warn("dropped leaf", zap.Stringer("hash", n.Hash), zap.Error(err))
			}
		}
	}
	added := cp.Len()
	if added == 0 {
		cp.Revert()
		return nil, nil
	}
	if err := cp.Commit(); err != nil {
		return nil, fmt.Errorf("commit %d leaves: %w", added, err)
	}
	leavesAdded.Add(float64(added))
	logger.Info("added leaves", zap.Int("count", added), zap.Stringer("root", r.trie.Root()))
	return nil, nil
}

func (r *Responder) add(cp *trie.Checkpoint, n trie.NodeDescriptor, allow map[string]struct{}) error {
	leaf := n.Leaf()
	if leaf == nil {
		return errors.New("not a leaf")
	}
	rec, err := types.DecodeRecord(leaf.Value)
	if err != nil {
		return err
	}
	id, err := rec.ID()
	if err != nil {
		return err
	}
	if id != leaf.Key {
		return fmt.Errorf("%w: key %s does not match record id %s",
			store.ErrInvalidRecord, leaf.Key.ShortString(), id.ShortString())
	}
	return r.store.Add(cp, rec, allow, true)
}
