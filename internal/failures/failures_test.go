package failures

import (
	"path/filepath"
	"realitease/internal/components/chrono"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSaveAndLoad(t *testing.T) {
	clock := chrono.NewFakeTime(time.Date(2025, 8, 14, 9, 30, 5, 0, time.UTC))
	log := NewLog(clock)

	path, err := log.Save(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, path, "empty logs are not written")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			log.Add(Entry{Name: "Member", Worker: worker, Reason: "Cast member not found on page"})
		}(i)
	}
	wg.Wait()
	require.Equal(t, 8, log.Len())

	dir := t.TempDir()
	path, err = log.Save(dir)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "failed_cast_members_20250814_093005.json"), path)

	entries, err := Load(path)
	require.NoError(t, err)
	require.Len(t, entries, 8)
	for _, e := range entries {
		require.Equal(t, "Cast member not found on page", e.Reason)
		require.True(t, e.At.Equal(clock.Now()))
	}
}

func TestExportXLSX(t *testing.T) {
	at := time.Date(2025, 8, 14, 9, 30, 5, 0, time.UTC)
	entries := []Entry{
		{Row: 12, Name: "Teresa Giudice", CastIMDbID: "nm2839386", Show: "RHONJ", Reason: "Episodes button not found", Worker: 3, At: at},
		{Row: 40, Name: "Joe Gorga", Reason: "Threading timeout after 8s", At: at},
	}
	path := filepath.Join(t.TempDir(), "failed.xlsx")
	require.NoError(t, ExportXLSX(entries, path))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Sheet1")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, "CastName", rows[0][1])
	require.Equal(t, []string{"12", "Teresa Giudice", "nm2839386", "RHONJ", "", "Episodes button not found", "3", "2025-08-14T09:30:05Z"}, rows[1])
	require.Equal(t, "Threading timeout after 8s", rows[2][5])
}
