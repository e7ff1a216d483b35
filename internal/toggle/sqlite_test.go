package toggle

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func userVersion(t *testing.T, dbPath string) int {
	t.Helper()
	db, err := NewDB(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	var version int
	require.NoError(t, db.QueryRow(`PRAGMA user_version`).Scan(&version))
	return version
}

func TestMigrations_ApplyOnceAndTrackVersion(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "toggles.db")

	db, err := NewDB(dbPath)
	require.NoError(t, err)

	repo := NewSQLiteRepository(db)
	require.NoError(t, repo.Save("akashic-query", true))
	require.NoError(t, repo.Close())

	// Reopening an up-to-date database re-runs nothing and keeps data.
	require.Equal(t, 1, userVersion(t, dbPath))

	db, err = NewDB(dbPath)
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	state, err := NewSQLiteRepository(db).LoadAll()
	require.NoError(t, err)
	require.Equal(t, map[string]bool{"akashic-query": true}, state)
}
