package mount

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *FileRegistry {
	t.Helper()
	return NewFileRegistry(filepath.Join(t.TempDir(), "registry.yaml"))
}

func TestFileRegistryMissingFileIsEmpty(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	repos, err := r.TryGetActiveReposForUser("1000")
	require.NoError(t, err)
	assert.Empty(t, repos)
}

func TestFileRegistryAddListRemove(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	require.NoError(t, r.Add("/src/repo1", "1000"))
	require.NoError(t, r.Add("/src/repo2", "2000"))

	all, err := r.List()
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := r.TryGetActiveReposForUser("1000")
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "/src/repo1", mine[0].EnlistmentRoot)
	assert.True(t, mine[0].IsActive)

	require.NoError(t, r.Remove("/src/repo1"))
	mine, err = r.TryGetActiveReposForUser("1000")
	require.NoError(t, err)
	assert.Empty(t, mine)

	// Removing an absent root is silent.
	require.NoError(t, r.Remove("/never/registered"))
}

func TestFileRegistryAddReplacesExisting(t *testing.T) {
	t.Parallel()
	r := newTestRegistry(t)

	require.NoError(t, r.Add("/src/repo1", "1000"))
	require.NoError(t, r.Add("/src/repo1", "2000"))

	all, err := r.List()
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "2000", all[0].OwnerSID)
}

func TestFileRegistryMalformedFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0600))

	r := NewFileRegistry(path)
	_, err := r.TryGetActiveReposForUser("1000")
	assert.Error(t, err)
}
