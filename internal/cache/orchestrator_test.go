package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"gorm.io/driver/sqlite"
)

type repoList struct {
	Names []string `json:"names"`
}

func setupOrchestrator(t *testing.T, storeOpts Options) (*Orchestrator, *MemoryStore, *clockwork.FakeClock) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(epoch)
	storeOpts.Clock = clock
	store := NewMemoryStore(storeOpts)
	return NewOrchestrator(store, NewDeduplicator(), nil, WithClock(clock)), store, clock
}

// countingFetcher returns 1, 2, 3... on successive calls.
func countingFetcher(calls *atomic.Int32) Fetcher[int] {
	return func(context.Context) (int, error) {
		return int(calls.Inc()), nil
	}
}

func TestCachedFetch_MissThenHit(t *testing.T) {
	ctx := context.Background()
	o, _, clock := setupOrchestrator(t, Options{})
	var calls atomic.Int32
	opts := FetchOptions{TTL: time.Minute}

	first, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), opts)
	require.NoError(t, err)
	assert.Equal(t, Result[int]{Data: 1}, first)

	clock.Advance(30 * time.Second)
	second, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), opts)
	require.NoError(t, err)
	assert.Equal(t, Result[int]{Data: 1, FromCache: true}, second)
	assert.Equal(t, int32(1), calls.Load())

	clock.Advance(31 * time.Second)
	third, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), opts)
	require.NoError(t, err)
	assert.Equal(t, Result[int]{Data: 2}, third)
}

func TestCachedFetch_Options(t *testing.T) {
	testCases := []struct {
		name          string
		opts          FetchOptions
		expected      Result[int]
		expectedCalls int32
	}{
		{
			name:          "fresh entry is served from cache",
			opts:          FetchOptions{TTL: time.Minute},
			expected:      Result[int]{Data: 1, FromCache: true},
			expectedCalls: 1,
		},
		{
			name:          "skipCache always fetches",
			opts:          FetchOptions{TTL: time.Minute, SkipCache: true},
			expected:      Result[int]{Data: 2},
			expectedCalls: 2,
		},
		{
			name:          "forceRevalidate fetches over a fresh entry",
			opts:          FetchOptions{TTL: time.Minute, ForceRevalidate: true},
			expected:      Result[int]{Data: 2},
			expectedCalls: 2,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			o, _, _ := setupOrchestrator(t, Options{})
			var calls atomic.Int32

			_, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), FetchOptions{TTL: time.Minute})
			require.NoError(t, err)

			got, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.expectedCalls, calls.Load())
		})
	}
}

func TestCachedFetch_SkipCacheLeavesStoreUntouched(t *testing.T) {
	ctx := context.Background()
	o, store, _ := setupOrchestrator(t, Options{})
	var calls atomic.Int32

	_, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), FetchOptions{SkipCache: true})
	require.NoError(t, err)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestCachedFetch_StaleWhileRevalidate(t *testing.T) {
	ctx := context.Background()
	o, _, clock := setupOrchestrator(t, Options{StaleWhileRevalidate: time.Minute})
	var calls atomic.Int32
	opts := FetchOptions{TTL: 100 * time.Millisecond, StaleWhileRevalidate: time.Minute}

	_, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), opts)
	require.NoError(t, err)

	clock.Advance(200 * time.Millisecond)
	stale, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), opts)
	require.NoError(t, err)
	assert.Equal(t, Result[int]{Data: 1, FromCache: true, Stale: true}, stale)

	o.Wait()
	assert.Equal(t, int32(2), calls.Load())

	fresh, err := CachedFetch(ctx, o, "k", countingFetcher(&calls), opts)
	require.NoError(t, err)
	assert.Equal(t, Result[int]{Data: 2, FromCache: true}, fresh)
}

func TestCachedFetch_BackgroundFailureIsSwallowed(t *testing.T) {
	ctx := context.Background()
	o, _, clock := setupOrchestrator(t, Options{StaleWhileRevalidate: time.Minute})
	opts := FetchOptions{TTL: 100 * time.Millisecond, StaleWhileRevalidate: time.Minute}

	_, err := CachedFetch(ctx, o, "k", func(context.Context) (string, error) { return "old", nil }, opts)
	require.NoError(t, err)
	clock.Advance(200 * time.Millisecond)

	failing := func(context.Context) (string, error) { return "", errors.New("network down") }
	got, err := CachedFetch(ctx, o, "k", failing, opts)
	require.NoError(t, err)
	assert.Equal(t, "old", got.Data)
	assert.True(t, got.Stale)

	o.Wait()
	again, err := CachedFetch(ctx, o, "k", failing, opts)
	require.NoError(t, err)
	assert.Equal(t, Result[string]{Data: "old", FromCache: true, Stale: true}, again)
	o.Wait()
}

func TestCachedFetch_ErrorIsNotCached(t *testing.T) {
	ctx := context.Background()
	o, store, _ := setupOrchestrator(t, Options{})
	boom := errors.New("boom")

	_, err := CachedFetch(ctx, o, "k", func(context.Context) (int, error) { return 0, boom }, FetchOptions{})
	assert.ErrorIs(t, err, boom)

	ok, err := store.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConditionalFetch_ETagRevalidation(t *testing.T) {
	ctx := context.Background()
	o, store, clock := setupOrchestrator(t, Options{StaleWhileRevalidate: time.Hour})
	ttl := 10 * time.Minute

	var sent []string
	fetch := func(_ context.Context, etag string) (Validated[repoList], error) {
		sent = append(sent, etag)
		if etag == `"abc"` {
			return Validated[repoList]{NotModified: true}, nil
		}
		return Validated[repoList]{Data: repoList{Names: []string{"api", "web"}}, ETag: `"abc"`}, nil
	}

	first, err := ConditionalFetch(ctx, o, "repos:acme", fetch, FetchOptions{TTL: ttl})
	require.NoError(t, err)
	assert.Equal(t, `"abc"`, first.ETag)
	assert.False(t, first.FromCache)
	assert.Equal(t, `"abc"`, o.ETags().Get("repos:acme"))

	second, err := ConditionalFetch(ctx, o, "repos:acme", fetch, FetchOptions{TTL: ttl})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Len(t, sent, 1, "a fresh entry must not hit the network")

	// expire the entry by hand
	entry, ok, err := store.Get(ctx, "repos:acme")
	require.NoError(t, err)
	require.True(t, ok)
	originalStamp := entry.Timestamp
	entry.ExpiresAt = clock.Now().Add(-time.Second)
	require.NoError(t, store.Set(ctx, "repos:acme", entry))

	clock.Advance(time.Minute)
	third, err := ConditionalFetch(ctx, o, "repos:acme", fetch, FetchOptions{TTL: ttl, ForceRevalidate: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"", `"abc"`}, sent)
	assert.True(t, third.FromCache)
	assert.True(t, third.NotModified)
	assert.Equal(t, []string{"api", "web"}, third.Data.Names)

	refreshed, ok, err := store.Get(ctx, "repos:acme")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(ttl), refreshed.ExpiresAt)
	assert.Equal(t, originalStamp, refreshed.Timestamp)
}

func TestConditionalFetch_RevalidatesAfterEntryIsEvicted(t *testing.T) {
	ctx := context.Background()
	o, store, clock := setupOrchestrator(t, Options{})
	ttl := 10 * time.Minute

	var sent []string
	fetch := func(_ context.Context, etag string) (Validated[repoList], error) {
		sent = append(sent, etag)
		if etag == `"abc"` {
			return Validated[repoList]{NotModified: true}, nil
		}
		return Validated[repoList]{Data: repoList{Names: []string{"api"}}, ETag: `"abc"`}, nil
	}

	_, err := ConditionalFetch(ctx, o, "repos:acme", fetch, FetchOptions{TTL: ttl})
	require.NoError(t, err)

	clock.Advance(ttl + time.Second)
	ok, err := store.Has(ctx, "repos:acme")
	require.NoError(t, err)
	require.False(t, ok, "no grace window, so the expired entry is gone")

	got, err := ConditionalFetch(ctx, o, "repos:acme", fetch, FetchOptions{TTL: ttl})
	require.NoError(t, err)
	assert.Equal(t, []string{"", `"abc"`}, sent)
	assert.True(t, got.NotModified)
	assert.True(t, got.FromCache)
	assert.Equal(t, []string{"api"}, got.Data.Names)

	entry, ok, err := store.Get(ctx, "repos:acme")
	require.NoError(t, err)
	require.True(t, ok, "the remembered body is stored again")
	assert.Equal(t, clock.Now().Add(ttl), entry.ExpiresAt)
	assert.Equal(t, `"abc"`, entry.ETag)
}

func TestConditionalFetch_SkipCacheSendsNoETag(t *testing.T) {
	ctx := context.Background()
	o, _, _ := setupOrchestrator(t, Options{})

	var sent []string
	fetch := func(_ context.Context, etag string) (Validated[int], error) {
		sent = append(sent, etag)
		return Validated[int]{Data: len(sent), ETag: `"e"`}, nil
	}
	_, err := ConditionalFetch(ctx, o, "k", fetch, FetchOptions{})
	require.NoError(t, err)
	got, err := ConditionalFetch(ctx, o, "k", fetch, FetchOptions{SkipCache: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"", ""}, sent)
	assert.Equal(t, 2, got.Data)
}

func TestConditionalFetch_NotModifiedWithoutEntryRefetches(t *testing.T) {
	ctx := context.Background()
	o, _, _ := setupOrchestrator(t, Options{})

	calls := 0
	fetch := func(_ context.Context, etag string) (Validated[string], error) {
		calls++
		if calls == 1 {
			return Validated[string]{NotModified: true}, nil
		}
		return Validated[string]{Data: "body", ETag: `"v2"`}, nil
	}

	got, err := ConditionalFetch(ctx, o, "org:acme", fetch, FetchOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, Result[string]{Data: "body", ETag: `"v2"`}, got)
}

func TestOrchestrator_DecodesDiskEntries(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	disk, err := NewDiskStore(sqlite.Open(filepath.Join(t.TempDir(), "cache.db")), Options{Clock: clock}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = disk.Close() })
	o := NewOrchestrator(disk, nil, nil, WithClock(clock))

	fetch := func(context.Context) (repoList, error) {
		return repoList{Names: []string{"api"}}, nil
	}
	_, err = CachedFetch(ctx, o, "repos:acme", fetch, FetchOptions{})
	require.NoError(t, err)

	got, err := CachedFetch(ctx, o, "repos:acme", func(context.Context) (repoList, error) {
		return repoList{}, errors.New("should be served from disk")
	}, FetchOptions{})
	require.NoError(t, err)
	assert.True(t, got.FromCache)
	assert.Equal(t, []string{"api"}, got.Data.Names)
}

func TestOrchestrator_Clear(t *testing.T) {
	ctx := context.Background()
	o, store, _ := setupOrchestrator(t, Options{})
	fetch := func(context.Context, string) (Validated[int], error) {
		return Validated[int]{Data: 1, ETag: `"e"`}, nil
	}
	_, err := ConditionalFetch(ctx, o, "k", fetch, FetchOptions{})
	require.NoError(t, err)

	require.NoError(t, o.Clear(ctx))
	assert.Equal(t, 0, o.ETags().Len())
	ok, err := store.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
