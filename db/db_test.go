package db_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/habedi/totempark/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openTestDB opens a fresh database file under a per-test directory.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := db.Open(filepath.Join(t.TempDir(), "totempark.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(gdb) })
	return gdb
}

// TestOpen checks that Open creates the database file and its directory.
func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "totempark.db")
	gdb, err := db.Open(path)
	require.NoError(t, err, "Open should not return an error")

	_, statErr := os.Stat(path)
	assert.NoError(t, statErr, "Database file should exist")

	assert.NoError(t, db.Ping(context.Background(), gdb))
	assert.NoError(t, db.Close(gdb), "Close should not return an error")
}

func TestPing_ClosedDatabaseIsUnavailable(t *testing.T) {
	gdb, err := db.Open(filepath.Join(t.TempDir(), "totempark.db"))
	require.NoError(t, err)
	require.NoError(t, db.Close(gdb))

	err = db.Ping(context.Background(), gdb)
	require.Error(t, err)
	assert.ErrorIs(t, err, db.ErrUnavailable)
}

func TestPing_NilHandle(t *testing.T) {
	assert.ErrorIs(t, db.Ping(context.Background(), nil), db.ErrUnavailable)
}

func TestClose_NilHandle(t *testing.T) {
	assert.NoError(t, db.Close(nil))
}
