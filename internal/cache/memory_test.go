package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestMemoryStore_TTL(t *testing.T) {
	testCases := []struct {
		name     string
		swr      time.Duration
		advance  time.Duration
		expectOK bool
	}{
		{name: "hit while fresh", advance: 50 * time.Millisecond, expectOK: true},
		{name: "hit exactly at expiry", advance: 100 * time.Millisecond, expectOK: true},
		{name: "miss just past expiry", advance: 101 * time.Millisecond, expectOK: false},
		{name: "hit inside grace window", swr: time.Second, advance: 500 * time.Millisecond, expectOK: true},
		{name: "miss past grace window", swr: time.Second, advance: 1101 * time.Millisecond, expectOK: false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			clock := clockwork.NewFakeClockAt(epoch)
			store := NewMemoryStore(Options{StaleWhileRevalidate: tc.swr, Clock: clock})

			require.NoError(t, store.Set(ctx, "k", NewEntry("v", "", clock.Now(), 100*time.Millisecond)))
			clock.Advance(tc.advance)

			entry, ok, err := store.Get(ctx, "k")
			require.NoError(t, err)
			assert.Equal(t, tc.expectOK, ok)
			if tc.expectOK {
				assert.Equal(t, "v", entry.Data)
			}

			stats, err := store.Stats(ctx)
			require.NoError(t, err)
			if tc.expectOK {
				assert.Equal(t, Stats{Hits: 1, Entries: 1}, stats)
			} else {
				assert.Equal(t, Stats{Misses: 1, Entries: 0}, stats)
			}
		})
	}
}

func TestMemoryStore_LRUEviction(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Options{MaxEntries: 3})

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), store.NewEntry(i, "")))
	}
	// touching k1 makes k0 the least recently used
	_, ok, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, store.Set(ctx, "k3", store.NewEntry(3, "")))

	ok, err = store.Has(ctx, "k0")
	require.NoError(t, err)
	assert.False(t, ok, "k0 should have been evicted")
	for _, key := range []string{"k1", "k2", "k3"} {
		ok, err := store.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Entries)
}

func TestMemoryStore_OverwriteDoesNotEvict(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Options{MaxEntries: 2})

	require.NoError(t, store.Set(ctx, "a", store.NewEntry(1, "")))
	require.NoError(t, store.Set(ctx, "b", store.NewEntry(2, "")))
	require.NoError(t, store.Set(ctx, "a", store.NewEntry(10, "")))

	entry, ok, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, entry.Data)
	ok, err = store.Has(ctx, "b")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryStore_DeleteAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(Options{})

	require.NoError(t, store.Set(ctx, "a", store.NewEntry(1, "")))
	require.NoError(t, store.Set(ctx, "b", store.NewEntry(2, "")))
	_, _, _ = store.Get(ctx, "a")
	_, _, _ = store.Get(ctx, "missing")

	require.NoError(t, store.Delete(ctx, "a"))
	ok, err := store.Has(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Clear(ctx))
	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}
