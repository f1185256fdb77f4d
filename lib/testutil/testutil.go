package testutil

import (
	"database/sql"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

// SetupDB opens an in-memory sqlite database with schema applied, it is closed when the
// test ends.
func SetupDB(t testing.TB, schema string) *sql.DB {
	t.Helper()
	sqlite, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sqlite.Close() })
	// every connection of :memory: is its own database
	sqlite.SetMaxOpenConns(1)

	_, err = sqlite.Exec(schema)
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		t.Fatal(err)
	}
	return sqlite
}

// RandomSwitch returns a picker of an index in weights, each index picked in proportion
// to its weight: RandomSwitch(1, 3) picks 0 a quarter of the time and 1 otherwise.
func RandomSwitch(weights ...int) func(rndm *rand.Rand) int {
	if len(weights) == 0 {
		panic("random switch without weights")
	}
	// bounds[i] is the sum of weights[0..i]
	bounds := make([]int, len(weights))
	total := 0
	for i, w := range weights {
		if w <= 0 {
			panic(fmt.Sprintf("random switch weight %d is %d, weights must be positive", i, w))
		}
		total += w
		bounds[i] = total
	}
	return func(rndm *rand.Rand) int {
		return sort.SearchInts(bounds, rndm.Intn(total)+1)
	}
}
