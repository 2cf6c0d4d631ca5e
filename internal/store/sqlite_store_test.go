package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	s := newTestStore(t)

	token, err := s.LoadToken(TokenKey)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSQLiteStore_SaveLoadOverwrite(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.SaveToken(TokenKey, "first"))
	require.NoError(t, s.SaveToken(TokenKey, "second"))

	token, err := s.LoadToken(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "second", token)
}

func TestSQLiteStore_Delete(t *testing.T) {
	s := newTestStore(t)
	require.NoError(t, s.SaveToken(TokenKey, "abc"))

	require.NoError(t, s.DeleteToken(TokenKey))
	require.NoError(t, s.DeleteToken(TokenKey), "deleting twice is fine")

	token, err := s.LoadToken(TokenKey)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.db")

	s, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SaveToken(TokenKey, "kept"))
	require.NoError(t, s.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()

	token, err := reopened.LoadToken(TokenKey)
	require.NoError(t, err)
	assert.Equal(t, "kept", token)
}

func TestResolveDBPath(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveDBPath(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "session.db"), got)

	explicit := filepath.Join(dir, "sub", "x.db")
	got, err = resolveDBPath(explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, got)
	assert.DirExists(t, filepath.Join(dir, "sub"))
}
