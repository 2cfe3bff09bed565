package triesync

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/attestate/leafsync/codec"
)

func encode(t *testing.T, v any) []byte {
	t.Helper()
	buf, err := codec.Marshal(v)
	require.NoError(t, err)
	return buf
}

func TestDecodeMessage(t *testing.T) {
	hash := strings.Repeat("ab", 32)
	descriptor := map[string]any{"key": "0a01", "hash": hash}

	t.Run("valid levels request", func(t *testing.T) {
		var msg LevelsRequest
		payload := encode(t, LevelsRequest{
			Type:  levelsRequestType,
			Nodes: []Descriptor{{Key: "0a01", Hash: hash}},
		})
		require.NoError(t, decodeMessage(levelsRequestSchema, payload, &msg))
		require.Equal(t, levelsRequestType, msg.Type)
		require.Equal(t, []Descriptor{{Key: "0a01", Hash: hash}}, msg.Nodes)
	})
	t.Run("valid empty levels response", func(t *testing.T) {
		var msg LevelsResponse
		payload := encode(t, LevelsResponse{
			Type:     levelsResponseType,
			Missing:  []Descriptor{},
			Mismatch: []Descriptor{},
			Match:    []Descriptor{},
		})
		require.NoError(t, decodeMessage(levelsResponseSchema, payload, &msg))
	})
	t.Run("valid root", func(t *testing.T) {
		var msg RootAdvertisement
		require.NoError(t, decodeMessage(rootSchema, encode(t, RootAdvertisement{Root: hash}), &msg))
		require.Equal(t, hash, msg.Root)
	})

	for _, tc := range []struct {
		desc    string
		payload []byte
	}{
		{"not cbor", []byte{0xff, 0x00}},
		{"wrong tag", encode(t, map[string]any{"type": leavesPushType, "nodes": []any{descriptor}})},
		{"no nodes", encode(t, map[string]any{"type": levelsRequestType})},
		{"empty nodes", encode(t, map[string]any{"type": levelsRequestType, "nodes": []any{}})},
		{"nil nodes", encode(t, LevelsRequest{Type: levelsRequestType})},
		{"extra field", encode(t, map[string]any{
			"type": levelsRequestType, "nodes": []any{descriptor}, "extra": "x",
		})},
		{"uppercase hash", encode(t, map[string]any{
			"type":  levelsRequestType,
			"nodes": []any{map[string]any{"key": "0a", "hash": strings.ToUpper(hash)}},
		})},
		{"key is not a nibble", encode(t, map[string]any{
			"type":  levelsRequestType,
			"nodes": []any{map[string]any{"key": "1a", "hash": hash}},
		})},
		{"bytes instead of string", encode(t, map[string]any{
			"type":  levelsRequestType,
			"nodes": []any{map[string]any{"key": []byte{0x0a}, "hash": hash}},
		})},
		{"number", encode(t, map[string]any{"type": levelsRequestType, "nodes": 1})},
	} {
		t.Run(tc.desc, func(t *testing.T) {
			var msg LevelsRequest
			require.ErrorIs(t, decodeMessage(levelsRequestSchema, tc.payload, &msg), ErrInvalidMessage)
		})
	}

	t.Run("root too short", func(t *testing.T) {
		var msg RootAdvertisement
		payload := encode(t, RootAdvertisement{Root: "abcd"})
		require.ErrorIs(t, decodeMessage(rootSchema, payload, &msg), ErrInvalidMessage)
	})
}
