// Package logstream accumulates scraper log lines across status polls.
// Each poll returns the server's recent window; windows overlap, so the
// aggregator keeps only the first arrival of every line.
package logstream

import (
	"sync"

	"tenderwatch/internal"
)

// Aggregator merges overlapping log windows into one append-only stream.
// Lines are deduplicated on their exact message text and kept in
// first-arrival order.
type Aggregator struct {
	mu      sync.Mutex
	entries []internal.LogEntry
	seen    map[string]bool

	// onAppend fires once per batch that added at least one line, for
	// follow-tail rendering.
	onAppend func(added []internal.LogEntry)
}

func NewAggregator(onAppend func(added []internal.LogEntry)) *Aggregator {
	return &Aggregator{
		seen:     make(map[string]bool),
		onAppend: onAppend,
	}
}

// AppendBatch folds one status poll's log window into the stream and
// reports how many lines were new.
func (a *Aggregator) AppendBatch(batch []internal.LogEntry) int {
	a.mu.Lock()
	var added []internal.LogEntry
	for _, entry := range batch {
		if a.seen[entry.Message] {
			continue
		}
		a.seen[entry.Message] = true
		a.entries = append(a.entries, entry)
		added = append(added, entry)
	}
	hook := a.onAppend
	a.mu.Unlock()

	if len(added) > 0 && hook != nil {
		hook(added)
	}
	return len(added)
}

// Append adds a single locally generated line, subject to the same
// deduplication as server lines.
func (a *Aggregator) Append(entry internal.LogEntry) bool {
	return a.AppendBatch([]internal.LogEntry{entry}) == 1
}

// Reset clears the stream for a new scraper run. The optional bootstrap
// lines seed the stream, so the view is not blank while the first poll is
// in flight.
func (a *Aggregator) Reset(bootstrap ...internal.LogEntry) {
	a.mu.Lock()
	a.entries = a.entries[:0]
	a.seen = make(map[string]bool)
	a.mu.Unlock()
	if len(bootstrap) > 0 {
		a.AppendBatch(bootstrap)
	}
}

// Entries returns a copy of the stream in arrival order.
func (a *Aggregator) Entries() []internal.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]internal.LogEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Tail returns the last n entries, or all of them when fewer exist.
func (a *Aggregator) Tail(n int) []internal.LogEntry {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n <= 0 || n >= len(a.entries) {
		n = len(a.entries)
	}
	out := make([]internal.LogEntry, n)
	copy(out, a.entries[len(a.entries)-n:])
	return out
}

func (a *Aggregator) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries)
}
