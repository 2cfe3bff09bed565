package triesync

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/libp2p/go-libp2p/core/peer"
)

// Validation is the outcome of PeerLock.IsValid.
type Validation struct {
	// Accepted is true when the candidate holds the lock.
	Accepted bool
	// Claimed is true when the lock was idle and the candidate took it.
	Claimed bool
	// Current is the owner after the call.
	Current peer.ID
	// Candidate is the peer that asked.
	Candidate peer.ID
}

// PeerLockOpt configures a PeerLock.
type PeerLockOpt func(*PeerLock)

// WithSessionTimeout makes a session that was not touched for timeout
// count as idle. Zero disables the timeout.
func WithSessionTimeout(timeout time.Duration) PeerLockOpt {
	return func(l *PeerLock) {
		l.timeout = timeout
	}
}

// WithLockClock sets the clock used for the session timeout.
func WithLockClock(clock clockwork.Clock) PeerLockOpt {
	return func(l *PeerLock) {
		l.clock = clock
	}
}

// PeerLock admits sync sessions with one peer at a time. It is shared by
// the initiator and the responder of a node.
type PeerLock struct {
	clock   clockwork.Clock
	timeout time.Duration

	mu      sync.Mutex
	current peer.ID
	touched time.Time
}

// NewPeerLock creates an idle lock.
func NewPeerLock(opts ...PeerLockOpt) *PeerLock {
	l := &PeerLock{clock: clockwork.NewRealClock()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// expire must be called with mu held.
func (l *PeerLock) expire() {
	if l.current != "" && l.timeout > 0 && l.clock.Since(l.touched) >= l.timeout {
		l.current = ""
	}
}

// Get returns the owner of the lock, empty when idle.
func (l *PeerLock) Get() peer.ID {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire()
	return l.current
}

// Set overwrites the owner. An empty id releases the lock.
func (l *PeerLock) Set(pid peer.ID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.current = pid
	l.touched = l.clock.Now()
}

// IsValid claims an idle lock for candidate and accepts the current owner.
// Any other candidate is rejected and the lock is left untouched.
func (l *PeerLock) IsValid(candidate peer.ID) Validation {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.expire()
	v := Validation{Current: l.current, Candidate: candidate}
	switch {
	case candidate == "":
	case l.current == "":
		l.current = candidate
		l.touched = l.clock.Now()
		v.Accepted = true
		v.Claimed = true
		v.Current = candidate
	case l.current == candidate:
		l.touched = l.clock.Now()
		v.Accepted = true
	}
	return v
}

// Release clears the lock if owner holds it and reports whether it did.
func (l *PeerLock) Release(owner peer.ID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if owner == "" || l.current != owner {
		return false
	}
	l.current = ""
	return true
}
