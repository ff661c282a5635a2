package query

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLookupCachesWithinTTL(t *testing.T) {
	cache := NewCache()
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "v1", nil
	}

	ctx := context.Background()
	first := lookup(ctx, cache, "k", time.Minute, fetch)
	second := lookup(ctx, cache, "k", time.Minute, fetch)

	require.True(t, first.Success)
	require.True(t, second.Success)
	require.Equal(t, "v1", second.Data)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestLookupCoalescesConcurrentFetches(t *testing.T) {
	cache := NewCache()
	var calls int32
	gate := make(chan struct{})
	fetch := func(ctx context.Context) (string, error) {
		atomic.AddInt32(&calls, 1)
		<-gate
		return "v1", nil
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	results := make([]Outcome[string], 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = lookup(ctx, cache, "k", time.Minute, fetch)
		}(i)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 1
	}, time.Second, 5*time.Millisecond)
	close(gate)
	wg.Wait()

	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	for _, res := range results {
		require.True(t, res.Success)
		require.Equal(t, "v1", res.Data)
	}
}

func TestInvalidateServesStaleThenRevalidates(t *testing.T) {
	cache := NewCache()
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return "v1", nil
		}
		return "v2", nil
	}

	ctx := context.Background()
	require.Equal(t, "v1", lookup(ctx, cache, "k", time.Minute, fetch).Data)

	cache.Invalidate("k")
	// Stale entry keeps serving its last value while the refetch runs in the
	// background.
	require.Equal(t, "v1", lookup(ctx, cache, "k", time.Minute, fetch).Data)

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&calls) == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, "v2", lookup(ctx, cache, "k", time.Minute, fetch).Data)
	require.EqualValues(t, 2, atomic.LoadInt32(&calls))
}

func TestLookupBlockingRefetchesStaleBeforeReturning(t *testing.T) {
	cache := NewCache()
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return "v1", nil
		}
		return "v2", nil
	}

	ctx := context.Background()
	require.Equal(t, "v1", lookupBlocking(ctx, cache, "k", 0, fetch).Data)
	// TTL 0 pins the entry until invalidated.
	require.Equal(t, "v1", lookupBlocking(ctx, cache, "k", 0, fetch).Data)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))

	cache.Invalidate("k")
	require.Equal(t, "v2", lookupBlocking(ctx, cache, "k", 0, fetch).Data)
}

func TestFetchErrorFailsOutcomeAndRetriesNext(t *testing.T) {
	cache := NewCache()
	var calls int32
	fetch := func(ctx context.Context) (string, error) {
		if atomic.AddInt32(&calls, 1) == 1 {
			return "", errors.New("boom")
		}
		return "v2", nil
	}

	ctx := context.Background()
	first := lookup(ctx, cache, "k", time.Minute, fetch)
	require.False(t, first.Success)
	require.Error(t, first.Err)

	second := lookup(ctx, cache, "k", time.Minute, fetch)
	require.True(t, second.Success)
	require.Equal(t, "v2", second.Data)
}

func TestInvalidatePrefix(t *testing.T) {
	cache := NewCache()
	fetch := func(v string) func(context.Context) (string, error) {
		return func(ctx context.Context) (string, error) { return v, nil }
	}

	ctx := context.Background()
	lookup(ctx, cache, "tenders?page=1", time.Minute, fetch("p1"))
	lookup(ctx, cache, "tenders?page=2", time.Minute, fetch("p2"))
	lookup(ctx, cache, "tender/x", time.Minute, fetch("x"))

	cache.InvalidatePrefix("tenders?")

	_, freshOK, _, staleOK := cache.peek("tenders?page=1", time.Minute)
	require.False(t, freshOK)
	require.True(t, staleOK)
	_, freshOK, _, staleOK = cache.peek("tenders?page=2", time.Minute)
	require.False(t, freshOK)
	require.True(t, staleOK)
	_, freshOK, _, _ = cache.peek("tender/x", time.Minute)
	require.True(t, freshOK)
}
