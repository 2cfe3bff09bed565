package triesync

import (
	"context"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/attestate/leafsync/common/types"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/trie"
)

//go:generate mockgen -typed -package=triesync -destination=./mocks.go -source=./interface.go

// requester sends one request per stream and returns the frames written back.
type requester interface {
	Request(ctx context.Context, pid peer.ID, req []byte) ([][]byte, error)
}

type publisher interface {
	Publish(ctx context.Context, topic string, msg []byte) error
}

type allowlister interface {
	Allowlist(ctx context.Context) (map[string]struct{}, error)
}

type recordAdder interface {
	Add(w trie.Writer, rec *types.Record, allow map[string]struct{}, fromSync bool) error
}

type initiator interface {
	Initiate(ctx context.Context, pid peer.ID) error
}

type rootSource interface {
	Root() hash.Hash32
}
