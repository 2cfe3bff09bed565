package filesystem

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func TestGetCanonicalPath(t *testing.T) {
	t.Setenv("HOME", "/home/leaf")
	t.Setenv("LEAFSYNC_TEST_DIR", "data")
	for _, tc := range []struct {
		path     string
		expected string
	}{
		{"", "."},
		{".", "."},
		{"~/", "/home/leaf"},
		{"~/leafsync", "/home/leaf/leafsync"},
		{"/tmp/../var/leafsync/", "/var/leafsync"},
		{"$HOME/${LEAFSYNC_TEST_DIR}", "/home/leaf/data"},
		{"relative/./path", "relative/path"},
	} {
		t.Run(tc.path, func(t *testing.T) {
			require.Equal(t, filepath.FromSlash(tc.expected), GetCanonicalPath(tc.path))
		})
	}
}

func TestGetUserHomeDirectory(t *testing.T) {
	t.Setenv("HOME", "/home/leaf")
	require.Equal(t, "/home/leaf", GetUserHomeDirectory())
}

func TestExistOrCreate(t *testing.T) {
	fs := afero.NewMemMapFs()
	path := "/data/leafsync"
	require.NoError(t, ExistOrCreate(fs, path))
	require.NoError(t, ExistOrCreate(fs, path))
	info, err := fs.Stat(path)
	require.NoError(t, err)
	require.True(t, info.IsDir())
}
