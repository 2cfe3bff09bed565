package signing

import (
	"encoding/hex"
	"fmt"

	"github.com/oasisprotocol/curve25519-voi/primitives/ed25519"
	"go.uber.org/zap"
)

// PrivateKey is an alias to ed25519.PrivateKey.
type PrivateKey = ed25519.PrivateKey

const (
	// PrivateKeySize size of the private key in bytes.
	PrivateKeySize = ed25519.PrivateKeySize
	// PublicKeySize size of the public key in bytes.
	PublicKeySize = ed25519.PublicKeySize
	// SignatureSize size of a signature in bytes.
	SignatureSize = ed25519.SignatureSize
)

// PublicKey is the type describing a public key.
type PublicKey struct {
	ed25519.PublicKey
}

// NewPublicKey constructs a new public key instance from a byte array.
func NewPublicKey(pub []byte) *PublicKey {
	return &PublicKey{pub}
}

// ParsePublicKey decodes the hex identity of an author.
func ParsePublicKey(identity string) (*PublicKey, error) {
	pub, err := hex.DecodeString(identity)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(pub) != PublicKeySize {
		return nil, fmt.Errorf("invalid public key size %d", len(pub))
	}
	return NewPublicKey(pub), nil
}

// Field returns a log field.
func (p *PublicKey) Field() zap.Field {
	return zap.String("public_key", p.ShortString())
}

// Bytes returns the public key as byte array.
func (p *PublicKey) Bytes() []byte {
	// Prevent segfault if unset
	if p != nil {
		return p.PublicKey
	}
	return nil
}

// String returns the public key as a hex representation string. This is the
// identity used in allow lists and records.
func (p *PublicKey) String() string {
	return hex.EncodeToString(p.Bytes())
}

const shortStringSize = 5

// ShortString returns a representative sub string.
func (p *PublicKey) ShortString() string {
	s := p.String()
	if len(s) < shortStringSize {
		return s
	}

	return s[:shortStringSize]
}

// Equals returns true iff the public keys are equal.
func (p *PublicKey) Equals(o *PublicKey) bool {
	return p.PublicKey.Equal(o.PublicKey)
}
