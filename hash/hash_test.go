package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSumConcatenation(t *testing.T) {
	require.Equal(t, Sum([]byte("ab"), []byte("c")), Sum([]byte("abc")))
	require.NotEqual(t, Sum([]byte("abc")), Sum([]byte("abd")))
}

func TestHexRoundTrip(t *testing.T) {
	h := Sum([]byte("record"))
	decoded, err := FromHex(h.Hex())
	require.NoError(t, err)
	require.Equal(t, h, decoded)

	_, err = FromHex("zz")
	require.Error(t, err)
	_, err = FromHex("0102")
	require.Error(t, err)
}

func TestZero(t *testing.T) {
	require.True(t, Zero.IsZero())
	require.False(t, Sum(nil).IsZero())
	require.Len(t, Sum(nil).ShortString(), 10)
}
