package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenForTesting(t *testing.T) {
	database, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, database.Close()) })

	assert.NoError(t, database.Ping())
}

func TestMigrationsApply(t *testing.T) {
	database, err := OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, database.Close()) })

	var tableName string
	err = database.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='kv'").Scan(&tableName)
	assert.NoError(t, err)
	assert.Equal(t, "kv", tableName)
}

func TestOpenCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "carvault.db")

	database, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, database.Close()) })

	_, err = database.Exec("INSERT INTO kv (key, value) VALUES ('probe', '{}')")
	assert.NoError(t, err)
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "carvault.db")

	database, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, database.Close())

	// Reopening an already-migrated database must not fail.
	database, err = Open(path)
	require.NoError(t, err)
	assert.NoError(t, database.Close())
}
