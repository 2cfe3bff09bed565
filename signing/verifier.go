package signing

import (
	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
)

type edVerifierOption struct {
	prefix []byte
}

// VerifierOptionFunc to modify verifier.
type VerifierOptionFunc func(*edVerifierOption) error

// WithVerifierPrefix sets the prefix used by EdVerifier. It must match the
// prefix of the signers.
func WithVerifierPrefix(prefix []byte) VerifierOptionFunc {
	return func(opts *edVerifierOption) error {
		opts.prefix = prefix
		return nil
	}
}

// EdVerifier verifies ed25519 signatures.
type EdVerifier struct {
	prefix []byte
}

// NewEdVerifier creates a verifier.
func NewEdVerifier(opts ...VerifierOptionFunc) (*EdVerifier, error) {
	cfg := &edVerifierOption{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	return &EdVerifier{prefix: cfg.prefix}, nil
}

// Verify verifies that a signature matches public key and message.
func (es *EdVerifier) Verify(d Domain, pub *PublicKey, m, sig []byte) bool {
	if len(pub.Bytes()) != PublicKeySize || len(sig) != SignatureSize {
		return false
	}
	return ed25519.Verify(pub.PublicKey, message(es.prefix, d, m), sig)
}
