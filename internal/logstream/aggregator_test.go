package logstream

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"tenderwatch/internal"
)

func entry(msg string) internal.LogEntry {
	return internal.LogEntry{Timestamp: "2026-08-25T10:00:00", Level: internal.LevelInfo, Message: msg}
}

func messages(entries []internal.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Message
	}
	return out
}

func TestOverlappingWindowsKeepFirstArrivalOrder(t *testing.T) {
	agg := NewAggregator(nil)

	added := agg.AppendBatch([]internal.LogEntry{
		entry("Starting scraper"),
		entry("Fetching page 1"),
		entry("Downloaded AO-001"),
	})
	require.Equal(t, 3, added)

	// The next poll's window overlaps the previous one.
	added = agg.AppendBatch([]internal.LogEntry{
		entry("Fetching page 1"),
		entry("Downloaded AO-001"),
		entry("Downloaded AO-002"),
		entry("Fetching page 2"),
	})
	require.Equal(t, 2, added)

	require.Equal(t, []string{
		"Starting scraper",
		"Fetching page 1",
		"Downloaded AO-001",
		"Downloaded AO-002",
		"Fetching page 2",
	}, messages(agg.Entries()))
}

func TestDuplicateWithinOneBatchCollapses(t *testing.T) {
	agg := NewAggregator(nil)
	added := agg.AppendBatch([]internal.LogEntry{
		entry("Retrying download"),
		entry("Retrying download"),
	})
	require.Equal(t, 1, added)
	require.Equal(t, 1, agg.Len())
}

func TestResetStartsSecondRunClean(t *testing.T) {
	agg := NewAggregator(nil)
	agg.AppendBatch([]internal.LogEntry{
		entry("Starting scraper"),
		entry("Scraping completed"),
	})

	agg.Reset(entry("Starting scraper"))

	// Identical text from the first run is new again after a reset.
	require.Equal(t, []string{"Starting scraper"}, messages(agg.Entries()))
	added := agg.AppendBatch([]internal.LogEntry{
		entry("Starting scraper"),
		entry("Scraping completed"),
	})
	require.Equal(t, 1, added)
	require.Equal(t, []string{"Starting scraper", "Scraping completed"}, messages(agg.Entries()))
}

func TestAppendHookFiresOnlyForNewLines(t *testing.T) {
	var notified [][]string
	agg := NewAggregator(func(added []internal.LogEntry) {
		notified = append(notified, messages(added))
	})

	agg.Append(entry("line 1"))
	agg.Append(entry("line 1"))
	agg.AppendBatch([]internal.LogEntry{entry("line 1"), entry("line 2")})

	require.Equal(t, [][]string{{"line 1"}, {"line 2"}}, notified)
}

func TestTail(t *testing.T) {
	agg := NewAggregator(nil)
	for i := 1; i <= 5; i++ {
		agg.Append(entry(fmt.Sprintf("line %d", i)))
	}

	require.Equal(t, []string{"line 4", "line 5"}, messages(agg.Tail(2)))
	require.Len(t, agg.Tail(0), 5)
	require.Len(t, agg.Tail(10), 5)
}
