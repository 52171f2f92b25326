package identity

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "insightloop", "user.json"))
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	user, err := testStore(t).Load()
	require.NoError(t, err)
	assert.Nil(t, user, "missing record means the login flow runs")
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := testStore(t)

	require.NoError(t, store.Save(&User{UserID: "u1", Username: "ada"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "u1", loaded.UserID)
	assert.Equal(t, "ada", loaded.Username)
}

func TestLoadRejectsRecordWithoutUserID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"username": "ada"}`), 0o600))

	_, err := NewStore(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user id")
}

func TestLoadRejectsCorruptRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "user.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0o600))

	_, err := NewStore(path).Load()
	require.Error(t, err)
}

func TestSaveOverwritesExistingRecord(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save(&User{UserID: "u1", Username: "ada"}))
	require.NoError(t, store.Save(&User{UserID: "u2", Username: "grace"}))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "u2", loaded.UserID)
}

func TestClear(t *testing.T) {
	store := testStore(t)
	require.NoError(t, store.Save(&User{UserID: "u1", Username: "ada"}))

	require.NoError(t, store.Clear())
	user, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, user)

	// Clearing an already-empty store is fine.
	require.NoError(t, store.Clear())
}
