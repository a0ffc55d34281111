package storage

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_InMemory(t *testing.T) {
	db, err := Open(Options{}, "CREATE TABLE IF NOT EXISTS t (x INTEGER)")
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec("INSERT INTO t (x) VALUES (1)")
	require.NoError(t, err)
}

func TestOpen_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "data.db")

	db, err := Open(Options{Path: path, CreateIfNotExists: true}, "CREATE TABLE IF NOT EXISTS t (x INTEGER)")
	require.NoError(t, err)
	defer db.Close()

	var mode string
	require.NoError(t, db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestOpen_SchemaIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.db")
	schema := "CREATE TABLE IF NOT EXISTS t (x INTEGER)"

	db, err := Open(Options{Path: path, CreateIfNotExists: true}, schema)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = Open(Options{Path: path, CreateIfNotExists: true}, schema)
	require.NoError(t, err)
	require.NoError(t, db.Close())
}

func TestPersistenceError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &PersistenceError{Op: "append", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "append")
}
