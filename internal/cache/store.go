// Package cache provides the request cache used by the GitHub gateway: time-stamped
// entries with TTL, memory and database backed stores, in-flight request deduplication,
// ETag bookkeeping and the cached-fetch orchestration built on top of them.
package cache

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Default store settings.
const (
	DefaultTTL        = 5 * time.Minute
	DefaultMaxEntries = 1000
)

// Entry is a cached value together with its freshness metadata.
// ExpiresAt is never before Timestamp.
type Entry struct {
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
	ETag      string    `json:"etag,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewEntry stamps data with now and an expiry ttl later.
func NewEntry(data any, etag string, now time.Time, ttl time.Duration) Entry {
	if ttl < 0 {
		ttl = 0
	}
	return Entry{
		Data:      data,
		Timestamp: now,
		ETag:      etag,
		ExpiresAt: now.Add(ttl),
	}
}

// Fresh reports whether the entry has not yet expired at now.
func (e Entry) Fresh(now time.Time) bool {
	return !now.After(e.ExpiresAt)
}

// Stats are the hit/miss counters of a store.
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int64 `json:"entries"`
}

// Store is a key-value store of cache entries.
//
// Get returns an entry while it is fresh or within the store's stale-while-revalidate
// grace window; whether a returned entry is stale is for the caller to decide.
// Has counts towards the hit/miss statistics the same way Get does.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) (bool, error)
	Stats(ctx context.Context) (Stats, error)
}

// Options configure a store. Zero values select the defaults.
type Options struct {
	// TTL is used by stores when building entries through NewEntry helpers.
	TTL time.Duration
	// StaleWhileRevalidate is how long past ExpiresAt an entry is still returned by Get.
	StaleWhileRevalidate time.Duration
	// MaxEntries bounds the number of entries held.
	MaxEntries int
	Clock      clockwork.Clock
}

func (o Options) withDefaults() Options {
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.StaleWhileRevalidate < 0 {
		o.StaleWhileRevalidate = 0
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// usable reports whether an entry may still be handed out at now.
func (o Options) usable(e Entry, now time.Time) bool {
	return !now.After(e.ExpiresAt.Add(o.StaleWhileRevalidate))
}
