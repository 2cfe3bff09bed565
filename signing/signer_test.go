package signing

import (
	"crypto/ed25519"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewEdSignerFromBuffer(t *testing.T) {
	b := []byte{1, 2, 3}
	_, err := NewEdSigner(WithPrivateKey(b))
	require.ErrorContains(t, err, "invalid key length")

	b = make([]byte, 64)
	_, err = NewEdSigner(WithPrivateKey(b))
	require.ErrorContains(t, err, "private and public do not match")
}

func TestEdSigner_Sign(t *testing.T) {
	ed, err := NewEdSigner()
	require.NoError(t, err)

	m := make([]byte, 4)
	rand.Read(m)
	sig := ed.Sign(RECORD, m)
	signed := make([]byte, len(m)+1)
	signed[0] = byte(RECORD)
	copy(signed[1:], m)

	ok := ed25519.Verify(ed.PublicKey().Bytes(), signed, sig)
	require.Truef(t, ok, "failed to verify message %x with sig %x", m, sig)
}

func TestEdVerifier(t *testing.T) {
	prefix := []byte("net")
	ed, err := NewEdSigner(WithPrefix(prefix))
	require.NoError(t, err)
	msg := []byte("record")
	sig := ed.Sign(RECORD, msg)

	verifier, err := NewEdVerifier(WithVerifierPrefix(prefix))
	require.NoError(t, err)
	require.True(t, verifier.Verify(RECORD, ed.PublicKey(), msg, sig))
	require.False(t, verifier.Verify(RECORD, ed.PublicKey(), []byte("other"), sig))
	require.False(t, verifier.Verify(RECORD, ed.PublicKey(), msg, sig[:10]))
	require.False(t, verifier.Verify(RECORD, NewPublicKey([]byte{1}), msg, sig))

	other, err := NewEdVerifier()
	require.NoError(t, err)
	require.False(t, other.Verify(RECORD, ed.PublicKey(), msg, sig))
}

func TestEdSigner_ValidKeyEncoding(t *testing.T) {
	ed, err := NewEdSigner()
	require.NoError(t, err)

	require.Equal(t, []byte(ed.priv[32:]), ed.PublicKey().Bytes())
}

func TestEdSigner_WithPrivateKey(t *testing.T) {
	ed, err := NewEdSigner()
	require.NoError(t, err)

	key := ed.PrivateKey()
	ed2, err := NewEdSigner(WithPrivateKey(key))
	require.NoError(t, err)
	require.Equal(t, ed.priv, ed2.priv)
	require.Equal(t, ed.PublicKey(), ed2.PublicKey())
}

func TestEdSigner_LoadOrCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "record.key")
	ed, err := NewEdSigner(LoadOrCreate(path))
	require.NoError(t, err)
	require.Equal(t, "record.key", ed.Name())

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := NewEdSigner(LoadOrCreate(path))
	require.NoError(t, err)
	require.Equal(t, ed.PublicKey(), loaded.PublicKey())

	_, err = NewEdSigner(ToFile(path))
	require.ErrorContains(t, err, "save identity file")
}

func TestPublicKey_ShortString(t *testing.T) {
	pub := NewPublicKey([]byte{1, 2, 3})
	require.Equal(t, "010203", pub.String())
	require.Equal(t, "01020", pub.ShortString())

	pub = NewPublicKey([]byte{1, 2})
	require.Equal(t, pub.String(), pub.ShortString())
}

func TestParsePublicKey(t *testing.T) {
	ed, err := NewEdSigner()
	require.NoError(t, err)
	pub, err := ParsePublicKey(ed.PublicKey().String())
	require.NoError(t, err)
	require.True(t, pub.Equals(ed.PublicKey()))

	_, err = ParsePublicKey("zz")
	require.Error(t, err)
	_, err = ParsePublicKey("0102")
	require.ErrorContains(t, err, "invalid public key size")
}
