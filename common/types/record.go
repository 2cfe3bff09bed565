// Package types defines the records exchanged and stored by nodes.
package types

import (
	"errors"
	"fmt"

	"go.uber.org/zap/zapcore"

	"github.com/attestate/leafsync/codec"
	"github.com/attestate/leafsync/hash"
	"github.com/attestate/leafsync/signing"
)

// AmplifyType is the type of a record that shares a link.
const AmplifyType = "amplify"

const (
	// MaxTitleSize bounds the title of a record in bytes.
	MaxTitleSize = 80
	// MaxHrefSize bounds the link of a record in bytes.
	MaxHrefSize = 2048
)

// ErrInvalidRecord is returned for records that are malformed.
var ErrInvalidRecord = errors.New("invalid record")

// Record is a signed statement of an author. Records are immutable, they are
// identified by the hash of their encoding.
type Record struct {
	// Author is the hex encoded ed25519 public key of the signer.
	Author string `cbor:"author"`
	// Timestamp in unix seconds.
	Timestamp int64  `cbor:"timestamp"`
	Type      string `cbor:"type"`
	Href      string `cbor:"href"`
	Title     string `cbor:"title"`
	Signature []byte `cbor:"signature,omitempty"`
}

// SignedBytes returns the encoding of the record without the signature.
func (r *Record) SignedBytes() ([]byte, error) {
	unsigned := *r
	unsigned.Signature = nil
	return codec.Marshal(&unsigned)
}

// Encode returns the canonical encoding of the record.
func (r *Record) Encode() ([]byte, error) {
	return codec.Marshal(r)
}

// ID returns the hash of the canonical encoding, the key of the record in
// the trie.
func (r *Record) ID() (hash.Hash32, error) {
	buf, err := r.Encode()
	if err != nil {
		return hash.Hash32{}, err
	}
	return hash.Sum(buf), nil
}

// Validate checks the fields of the record, not its signature.
func (r *Record) Validate() error {
	switch {
	case r.Type != AmplifyType:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidRecord, r.Type)
	case r.Href == "":
		return fmt.Errorf("%w: empty href", ErrInvalidRecord)
	case len(r.Href) > MaxHrefSize:
		return fmt.Errorf("%w: href of %d bytes", ErrInvalidRecord, len(r.Href))
	case len(r.Title) > MaxTitleSize:
		return fmt.Errorf("%w: title of %d bytes", ErrInvalidRecord, len(r.Title))
	case r.Timestamp <= 0:
		return fmt.Errorf("%w: timestamp %d", ErrInvalidRecord, r.Timestamp)
	}
	if _, err := signing.ParsePublicKey(r.Author); err != nil {
		return fmt.Errorf("%w: author: %w", ErrInvalidRecord, err)
	}
	return nil
}

// Sign sets the author and the signature of the record.
func (r *Record) Sign(signer signing.Signer) error {
	r.Author = signer.PublicKey().String()
	msg, err := r.SignedBytes()
	if err != nil {
		return err
	}
	r.Signature = signer.Sign(signing.RECORD, msg)
	return nil
}

// Verify reports whether the signature was made by the author.
func (r *Record) Verify(verifier signing.Verifier) bool {
	pub, err := signing.ParsePublicKey(r.Author)
	if err != nil {
		return false
	}
	msg, err := r.SignedBytes()
	if err != nil {
		return false
	}
	return verifier.Verify(signing.RECORD, pub, msg, r.Signature)
}

// MarshalLogObject implements logging encoder for Record.
func (r *Record) MarshalLogObject(encoder zapcore.ObjectEncoder) error {
	encoder.AddString("author", shorten(r.Author))
	encoder.AddInt64("timestamp", r.Timestamp)
	encoder.AddString("type", r.Type)
	encoder.AddString("href", r.Href)
	return nil
}

func shorten(s string) string {
	if len(s) > 10 {
		return s[:10]
	}
	return s
}

// DecodeRecord decodes a record encoded with Encode.
func DecodeRecord(buf []byte) (*Record, error) {
	var r Record
	if err := codec.Unmarshal(buf, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRecord, err)
	}
	return &r, nil
}
