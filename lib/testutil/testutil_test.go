package testutil

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSetupDB(t *testing.T) {
	db := SetupDB(t, `create table kv (k text primary key, v text);`)
	_, err := db.Exec(`insert into kv (k, v) values ('a', '1')`)
	require.NoError(t, err)

	var v string
	require.NoError(t, db.QueryRow(`select v from kv where k = 'a'`).Scan(&v))
	require.Equal(t, "1", v)
}

func TestRandomSwitch(t *testing.T) {
	rndm := rand.New(rand.NewSource(7))
	pick := RandomSwitch(1, 3)

	counts := make([]int, 2)
	for i := 0; i < 4000; i++ {
		counts[pick(rndm)]++
	}
	require.InDelta(t, 1000, counts[0], 150)
	require.InDelta(t, 3000, counts[1], 150)

	require.Panics(t, func() { RandomSwitch() })
	require.Panics(t, func() { RandomSwitch(1, 0) })
}
