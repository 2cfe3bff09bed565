package triesync

import (
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/attestate/leafsync/hash"
)

// exclusions returns the hashes excluded by the running session with pid.
func (s *Syncer) exclusions(pid peer.ID) []hash.Hash32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[pid]
	if !ok {
		return nil
	}
	rst := make([]hash.Hash32, 0, len(sess.exclude))
	for h := range sess.exclude {
		rst = append(rst, h)
	}
	return rst
}
