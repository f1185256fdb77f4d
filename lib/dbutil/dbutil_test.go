package dbutil

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsRemote(t *testing.T) {
	require.True(t, IsRemote("libsql://realitease-user.turso.io"))
	require.True(t, IsRemote("https://realitease-user.turso.io"))
	require.False(t, IsRemote("realitease.db"))
	require.False(t, IsRemote(":memory:"))
}

func TestOpenAndMigrateLocal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "realitease.db")
	db, err := OpenAndMigrate(path, "", `create table if not exists kv (k text primary key, v text);`)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`insert into kv (k, v) values ('a', 'b')`)
	require.NoError(t, err)

	var v string
	require.NoError(t, db.QueryRow(`select v from kv where k = 'a'`).Scan(&v))
	require.Equal(t, "b", v)
}

func TestOpenEmpty(t *testing.T) {
	_, err := OpenDB("", "")
	require.Error(t, err)
}
