package hash

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/zeebo/blake3"
)

// Size of the digest in bytes.
const Size = 32

// Hash32 is a blake3 digest. It identifies both trie nodes and records.
type Hash32 [Size]byte

// Zero is the hash of nothing. Empty branch slots are represented by it.
var Zero Hash32

// pool amortizes allocations of blake3 hashers. Hashers are reset before
// they are put back.
var pool = &sync.Pool{
	New: func() any {
		return blake3.New()
	},
}

// Sum hashes the concatenation of the chunks.
func Sum(chunks ...[]byte) (rst Hash32) {
	hh := pool.Get().(*blake3.Hasher)
	defer func() {
		hh.Reset()
		pool.Put(hh)
	}()
	for _, chunk := range chunks {
		hh.Write(chunk)
	}
	hh.Sum(rst[:0])
	return rst
}

// FromBytes copies b into a Hash32. It fails if b is not exactly Size long.
func FromBytes(b []byte) (Hash32, error) {
	var h Hash32
	if len(b) != Size {
		return h, fmt.Errorf("invalid hash length %d", len(b))
	}
	copy(h[:], b)
	return h, nil
}

// FromHex decodes a hex encoded hash.
func FromHex(s string) (Hash32, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return Hash32{}, fmt.Errorf("decode hash: %w", err)
	}
	return FromBytes(b)
}

// Hex returns the full hex encoding.
func (h Hash32) Hex() string {
	return hex.EncodeToString(h[:])
}

// String returns a shortened representation for logs.
func (h Hash32) String() string {
	return h.ShortString()
}

// ShortString returns the first 5 bytes in hex.
func (h Hash32) ShortString() string {
	return hex.EncodeToString(h[:5])
}

// Bytes returns a copy of the digest as a slice.
func (h Hash32) Bytes() []byte {
	return append([]byte(nil), h[:]...)
}

// IsZero reports whether h is the zero hash.
func (h Hash32) IsZero() bool {
	return h == Zero
}
