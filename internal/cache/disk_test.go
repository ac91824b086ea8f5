package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
)

func setupDiskStore(t *testing.T, path string, opts Options) *DiskStore {
	t.Helper()
	store, err := NewDiskStore(sqlite.Open(path), opts, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestDiskStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cache.db")
	clock := clockwork.NewFakeClockAt(epoch)

	first := setupDiskStore(t, path, Options{Clock: clock})
	require.NoError(t, first.Set(ctx, "org:acme", NewEntry(map[string]string{"login": "acme"}, `"abc"`, clock.Now(), time.Minute)))
	require.NoError(t, first.Close())

	second := setupDiskStore(t, path, Options{Clock: clock})
	entry, ok, err := second.Get(ctx, "org:acme")
	require.NoError(t, err)
	require.True(t, ok)

	var got map[string]string
	require.NoError(t, json.Unmarshal(entry.Data.(json.RawMessage), &got))
	assert.Equal(t, "acme", got["login"])
	assert.Equal(t, `"abc"`, entry.ETag)
	assert.True(t, entry.ExpiresAt.Equal(epoch.Add(time.Minute)))
}

func TestDiskStore_Expiry(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := setupDiskStore(t, filepath.Join(t.TempDir(), "cache.db"), Options{Clock: clock})

	require.NoError(t, store.Set(ctx, "k", NewEntry(1, "", clock.Now(), 100*time.Millisecond)))

	clock.Advance(50 * time.Millisecond)
	ok, err := store.Has(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	clock.Advance(51 * time.Millisecond)
	ok, err = store.Has(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Hits: 1, Misses: 1, Entries: 0}, stats)
}

func TestDiskStore_EvictsLeastRecentlyAccessed(t *testing.T) {
	ctx := context.Background()
	clock := clockwork.NewFakeClockAt(epoch)
	store := setupDiskStore(t, filepath.Join(t.TempDir(), "cache.db"), Options{MaxEntries: 3, Clock: clock})

	for i := 0; i < 3; i++ {
		require.NoError(t, store.Set(ctx, fmt.Sprintf("k%d", i), NewEntry(i, "", clock.Now(), time.Hour)))
		clock.Advance(time.Second)
	}
	_, ok, err := store.Get(ctx, "k0")
	require.NoError(t, err)
	require.True(t, ok)
	clock.Advance(time.Second)

	require.NoError(t, store.Set(ctx, "k3", NewEntry(3, "", clock.Now(), time.Hour)))

	ok, err = store.Has(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok, "k1 should have been evicted")
	for _, key := range []string{"k0", "k2", "k3"} {
		ok, err := store.Has(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, key)
	}
}

func TestDiskStore_Clear(t *testing.T) {
	ctx := context.Background()
	store := setupDiskStore(t, filepath.Join(t.TempDir(), "cache.db"), Options{})

	require.NoError(t, store.Set(ctx, "a", NewEntry(1, "", time.Now(), time.Hour)))
	require.NoError(t, store.Set(ctx, "b", NewEntry(2, "", time.Now(), time.Hour)))
	require.NoError(t, store.Clear(ctx))

	stats, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, stats)
}

func TestNew(t *testing.T) {
	testCases := []struct {
		name           string
		cfg            Config
		expectedErrMsg string
	}{
		{name: "memory by default", cfg: Config{}},
		{name: "sqlite", cfg: Config{Type: BackendSQLite, Path: filepath.Join(t.TempDir(), "nested", "cache.db")}},
		{name: "sqlite without path", cfg: Config{Type: BackendSQLite}, expectedErrMsg: "requires a database path"},
		{name: "mysql without dsn", cfg: Config{Type: BackendMySQL}, expectedErrMsg: "requires a DSN"},
		{name: "unknown backend", cfg: Config{Type: "redis"}, expectedErrMsg: "unknown cache backend"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, err := New(tc.cfg, nil)
			if tc.expectedErrMsg != "" {
				assert.ErrorContains(t, err, tc.expectedErrMsg)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, store)
			if closer, ok := store.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		})
	}
}
