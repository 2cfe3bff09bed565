package triesync

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/libp2p/go-libp2p/core/peer"
	"go.uber.org/zap"

	"github.com/attestate/leafsync/codec"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/p2p/server"
	"github.com/attestate/leafsync/trie"
)

var (
	// ErrSessionRejected is returned when the peer lock is held by another peer.
	ErrSessionRejected = errors.New("sync session rejected")
	// ErrDuplicateSession is returned when a session with the peer is already
	// running.
	ErrDuplicateSession = errors.New("sync session already running")
)

// SyncerOpt configures a Syncer.
type SyncerOpt func(*Syncer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) SyncerOpt {
	return func(s *Syncer) {
		s.logger = logger
	}
}

// WithConfig sets the config.
func WithConfig(cfg Config) SyncerOpt {
	return func(s *Syncer) {
		s.cfg = cfg
	}
}

type session struct {
	level   int
	exclude map[hash.Hash32]struct{}
}

// Syncer initiates sync sessions. A session descends the local trie level by
// level, asks the peer to classify the nodes of each level and pushes the
// leaves the peer is missing. Subtrees the peer already has are excluded from
// the following levels.
type Syncer struct {
	logger *zap.Logger
	cfg    Config
	trie   *trie.Trie
	lock   *PeerLock
	levels requester
	leaves requester

	mu       sync.Mutex
	sessions map[peer.ID]*session
}

// NewSyncer creates a Syncer. levels and leaves are clients of LevelsProtocol
// and LeavesProtocol.
func NewSyncer(tr *trie.Trie, lock *PeerLock, levels, leaves requester, opts ...SyncerOpt) *Syncer {
	s := &Syncer{
		logger:   zap.NewNop(),
		cfg:      DefaultConfig(),
		trie:     tr,
		lock:     lock,
		levels:   levels,
		leaves:   leaves,
		sessions: make(map[peer.ID]*session),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initiate runs a session with the peer until the peer has every leaf of the
// local trie or the session fails.
func (s *Syncer) Initiate(ctx context.Context, pid peer.ID) error {
	v := s.lock.IsValid(pid)
	if !v.Accepted {
		initiatedRejected.Inc()
		return fmt.Errorf("%w: lock held by %s", ErrSessionRejected, v.Current)
	}
	s.mu.Lock()
	if _, running := s.sessions[pid]; running || !v.Claimed {
		s.mu.Unlock()
		initiatedRejected.Inc()
		return fmt.Errorf("%w: %s", ErrDuplicateSession, pid)
	}
	sess := &session{exclude: make(map[hash.Hash32]struct{})}
	s.sessions[pid] = sess
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sessions, pid)
		s.mu.Unlock()
	}()

	logger := s.logger.With(zap.Stringer("peer", pid))
	logger.Debug("sync session started", zap.Stringer("root", s.trie.Root()))
	err := s.run(ctx, logger, pid, sess)
	sessionLevels.Observe(float64(sess.level + 1))
	s.lock.Release(pid)
	if err != nil {
		initiatedFailed.Inc()
		logger.Debug("sync session failed", zap.Int("level", sess.level), zap.Error(err))
		return err
	}
	initiatedOK.Inc()
	logger.Debug("sync session completed", zap.Int("levels", sess.level+1))
	return nil
}

func (s *Syncer) run(ctx context.Context, logger *zap.Logger, pid peer.ID, sess *session) error {
	for level := 0; level < trie.MaxDepth; level++ {
		if level > 0 {
			if v := s.lock.IsValid(pid); !v.Accepted {
				return fmt.Errorf("%w: lock taken by %s", ErrSessionRejected, v.Current)
			}
		}
		s.mu.Lock()
		sess.level = level
		nodes := trie.Descend(s.trie.Snapshot(), level, sess.exclude)
		s.mu.Unlock()
		if len(nodes) == 0 {
			return nil
		}
		resp, err := s.compare(ctx, pid, nodes)
		if err != nil {
			return fmt.Errorf("level %d: %w", level, err)
		}
		if len(resp.Missing) > 0 {
			if err := s.push(ctx, logger, pid, resp.Missing); err != nil {
				return fmt.Errorf("level %d: %w", level, err)
			}
		}
		if len(resp.Match) > 0 {
			match, err := Deserialize(resp.Match)
			if err != nil {
				return fmt.Errorf("level %d match: %w", level, err)
			}
			s.mu.Lock()
			for _, m := range match {
				sess.exclude[m.Hash] = struct{}{}
			}
			s.mu.Unlock()
		}
		logger.Debug("level compared",
			zap.Int("level", level),
			zap.Int("nodes", len(nodes)),
			zap.Int("missing", len(resp.Missing)),
			zap.Int("mismatch", len(resp.Mismatch)),
			zap.Int("match", len(resp.Match)),
		)
	}
	return nil
}

func (s *Syncer) compare(ctx context.Context, pid peer.ID, nodes []trie.NodeDescriptor) (*LevelsResponse, error) {
	descriptors, err := Serialize(nodes)
	if err != nil {
		return nil, err
	}
	req, err := codec.Marshal(LevelsRequest{Type: levelsRequestType, Nodes: descriptors})
	if err != nil {
		return nil, err
	}
	frames, err := s.request(ctx, s.levels, pid, req)
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%s: %w", LevelsProtocol, server.ErrNoResponse)
	}
	var resp LevelsResponse
	if err := decodeMessage(levelsResponseSchema, frames[0], &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *Syncer) push(ctx context.Context, logger *zap.Logger, pid peer.ID, missing []Descriptor) error {
	nodes, err := Deserialize(missing)
	if err != nil {
		return fmt.Errorf("missing: %w", err)
	}
	var leaves []trie.NodeDescriptor
	for _, n := range nodes {
		if n.Leaf() != nil {
			leaves = append(leaves, n)
		}
	}
	if len(leaves) == 0 {
		return nil
	}
	descriptors, err := Serialize(leaves)
	if err != nil {
		return err
	}
	req, err := codec.Marshal(LeavesPush{Type: leavesPushType, Nodes: descriptors})
	if err != nil {
		return err
	}
	if _, err := s.request(ctx, s.leaves, pid, req); err != nil {
		return err
	}
	leavesPushed.Add(float64(len(leaves)))
	logger.Debug("pushed leaves", zap.Int("count", len(leaves)))
	return nil
}

func (s *Syncer) request(ctx context.Context, r requester, pid peer.ID, req []byte) ([][]byte, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	return r.Request(ctx, pid, req)
}
