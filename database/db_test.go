package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.db")

	db, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`CREATE TABLE probe (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM probe`).Scan(&n))
	assert.Zero(t, n)
	assert.FileExists(t, path)
}
