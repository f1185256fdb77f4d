package imdb

import (
	"context"
	"realitease/lib/htmlutil"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrowserDocumentGenerations(t *testing.T) {
	b := &Browser{}
	andy := Member{Name: "Andy Cohen", IMDbID: "nm9999999"}

	_, ok := b.Crew(andy)
	require.False(t, ok)

	page, err := htmlutil.Parse(fullCredits)
	require.NoError(t, err)
	blank, err := htmlutil.Parse(`<html><body></body></html>`)
	require.NoError(t, err)

	stale := b.generation()
	require.True(t, b.setDocument(page, stale))
	section, ok := b.Crew(andy)
	require.True(t, ok)
	require.Equal(t, "Produced by", section)

	// an abandoned member refreshing after the page was reset
	b.invalidate(false)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.False(t, b.setDocument(blank, stale))
			_, ok := b.Crew(andy)
			assert.True(t, ok)
		}()
	}
	wg.Wait()

	selector, err := b.locate(Member{Name: "Teresa Giudice", IMDbID: "nm2839386"})
	require.NoError(t, err)
	require.NotEmpty(t, selector)

	// opening the next show drops the document until it is read again
	gen := b.invalidate(true)
	_, ok = b.Crew(andy)
	require.False(t, ok)
	require.True(t, b.setDocument(page, gen))
	_, ok = b.Crew(andy)
	require.True(t, ok)
}

func TestSettleStopsWithContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := settle(ctx, time.Minute, time.Second)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Less(t, time.Since(start), 5*time.Second)

	require.NoError(t, settle(context.Background(), time.Millisecond, time.Millisecond))
}
