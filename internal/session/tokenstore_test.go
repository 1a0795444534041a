package session

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token")
	store := NewFileStore(path)

	// Absent file means no token, not an error.
	token, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, store.Save("secret-token"))

	token, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "secret-token", token)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	require.NoError(t, store.Clear())
	token, err = store.Load()
	require.NoError(t, err)
	assert.Empty(t, token)

	// Clearing twice is fine.
	require.NoError(t, store.Clear())
}
