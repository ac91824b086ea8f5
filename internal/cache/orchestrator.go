package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// FetchOptions control a single cached fetch.
type FetchOptions struct {
	// TTL is the freshness lifetime of the stored result. Zero uses the orchestrator default.
	TTL time.Duration
	// StaleWhileRevalidate, when positive, lets an expired entry be served immediately
	// while a background fetch refreshes it.
	StaleWhileRevalidate time.Duration
	// SkipCache bypasses the store entirely.
	SkipCache bool
	// ForceRevalidate fetches even when the stored entry is still fresh.
	ForceRevalidate bool
}

// Result is the outcome of a cached fetch.
type Result[T any] struct {
	Data        T
	FromCache   bool
	Stale       bool
	NotModified bool
	ETag        string
}

// Fetcher produces a fresh value.
type Fetcher[T any] func(ctx context.Context) (T, error)

// Validated is what a ConditionalFetcher returns: either new data with its ETag, or
// NotModified when the remote confirmed the cached copy is current.
type Validated[T any] struct {
	Data        T
	ETag        string
	NotModified bool
}

// ConditionalFetcher fetches a value, sending etag as a validator when it is non-empty.
type ConditionalFetcher[T any] func(ctx context.Context, etag string) (Validated[T], error)

// Orchestrator combines a Store, a Deduplicator and an ETagTable into cached fetches
// with TTL freshness, stale-while-revalidate and ETag revalidation.
type Orchestrator struct {
	store  Store
	dedup  *Deduplicator
	etags  *ETagTable
	clock  clockwork.Clock
	ttl    time.Duration
	logger *log.Logger

	background sync.WaitGroup
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(o *Orchestrator) { o.clock = c }
}

// WithDefaultTTL sets the TTL used when FetchOptions.TTL is zero.
func WithDefaultTTL(ttl time.Duration) Option {
	return func(o *Orchestrator) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithETagTable shares an ETag table between orchestrators.
func WithETagTable(t *ETagTable) Option {
	return func(o *Orchestrator) { o.etags = t }
}

// NewOrchestrator wires store and dedup together. A nil dedup gets a private registry.
func NewOrchestrator(store Store, dedup *Deduplicator, logger *log.Logger, opts ...Option) *Orchestrator {
	if dedup == nil {
		dedup = NewDeduplicator()
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	o := &Orchestrator{
		store:  store,
		dedup:  dedup,
		etags:  NewETagTable(),
		clock:  clockwork.NewRealClock(),
		ttl:    DefaultTTL,
		logger: logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// NewDefaultOrchestrator returns an orchestrator over a fresh default MemoryStore.
func NewDefaultOrchestrator(logger *log.Logger) *Orchestrator {
	return NewOrchestrator(NewMemoryStore(Options{}), NewDeduplicator(), logger)
}

// Store returns the underlying store.
func (o *Orchestrator) Store() Store { return o.store }

// ETags returns the ETag table.
func (o *Orchestrator) ETags() *ETagTable { return o.etags }

// Now returns the orchestrator's current time.
func (o *Orchestrator) Now() time.Time { return o.clock.Now() }

// Clear drops every cached entry and every remembered ETag.
func (o *Orchestrator) Clear(ctx context.Context) error {
	o.etags.Clear()
	return o.store.Clear(ctx)
}

// Wait blocks until all background revalidations started so far have finished.
func (o *Orchestrator) Wait() {
	o.background.Wait()
}

// CachedFetch returns the value under key, fetching it through fetcher when the store
// has no usable entry. At most one fetch per key runs at a time.
func CachedFetch[T any](ctx context.Context, o *Orchestrator, key string, fetcher Fetcher[T], opts FetchOptions) (Result[T], error) {
	ttl := o.ttlFor(opts)
	fetchAndStore := func() (T, error) {
		data, err := fetcher(ctx)
		if err != nil {
			return data, err
		}
		if !opts.SkipCache {
			o.put(ctx, key, data, "", ttl)
		}
		return data, nil
	}

	if opts.SkipCache {
		data, err := Dedupe(o.dedup, key, fetchAndStore)
		if err != nil {
			return Result[T]{}, err
		}
		return Result[T]{Data: data}, nil
	}

	if cached, ok := lookup[T](ctx, o, key); ok {
		fresh := cached.entry.Fresh(o.clock.Now())
		if fresh && !opts.ForceRevalidate {
			return Result[T]{Data: cached.data, FromCache: true, ETag: cached.entry.ETag}, nil
		}
		if !fresh && opts.StaleWhileRevalidate > 0 {
			o.revalidate(ctx, key, func(bg context.Context) error {
				data, err := fetcher(bg)
				if err != nil {
					return err
				}
				o.put(bg, key, data, "", ttl)
				return nil
			})
			return Result[T]{Data: cached.data, FromCache: true, Stale: true, ETag: cached.entry.ETag}, nil
		}
	}

	data, err := Dedupe(o.dedup, key, fetchAndStore)
	if err != nil {
		return Result[T]{}, err
	}
	return Result[T]{Data: data}, nil
}

// ConditionalFetch behaves like CachedFetch but revalidates with the remembered ETag.
// A not-modified answer keeps the cached data and only extends its expiry.
func ConditionalFetch[T any](ctx context.Context, o *Orchestrator, key string, fetch ConditionalFetcher[T], opts FetchOptions) (Result[T], error) {
	ttl := o.ttlFor(opts)

	var cached *cachedValue[T]
	if !opts.SkipCache {
		if c, ok := lookup[T](ctx, o, key); ok {
			cached = &c
			fresh := c.entry.Fresh(o.clock.Now())
			if fresh && !opts.ForceRevalidate {
				return Result[T]{Data: c.data, FromCache: true, ETag: c.entry.ETag}, nil
			}
			if !fresh && opts.StaleWhileRevalidate > 0 {
				o.revalidate(ctx, key, func(bg context.Context) error {
					_, err := validate(bg, o, key, fetch, cached, ttl, false)
					return err
				})
				return Result[T]{Data: c.data, FromCache: true, Stale: true, ETag: c.entry.ETag}, nil
			}
		}
	}

	return Dedupe(o.dedup, key, func() (Result[T], error) {
		return validate(ctx, o, key, fetch, cached, ttl, opts.SkipCache)
	})
}

func validate[T any](ctx context.Context, o *Orchestrator, key string, fetch ConditionalFetcher[T], cached *cachedValue[T], ttl time.Duration, skipStore bool) (Result[T], error) {
	etag := ""
	if !skipStore {
		etag = o.etags.Get(key)
		if etag == "" && cached != nil {
			etag = cached.entry.ETag
		}
	}

	v, err := fetch(ctx, etag)
	if err != nil {
		return Result[T]{}, err
	}
	if v.NotModified {
		if cached != nil {
			refreshed := cached.entry
			refreshed.ExpiresAt = o.clock.Now().Add(ttl)
			if err := o.store.Set(ctx, key, refreshed); err != nil {
				o.logger.Printf("cache: failed to refresh %s: %v", key, err)
			}
			return Result[T]{Data: cached.data, FromCache: true, NotModified: true, ETag: etag}, nil
		}
		// The entry is gone from the store; the body behind the ETag is still known.
		if body, ok := o.etags.Body(key); ok {
			if data, err := decode[T](body); err == nil {
				o.put(ctx, key, data, etag, ttl)
				return Result[T]{Data: data, FromCache: true, NotModified: true, ETag: etag}, nil
			}
		}
		// Nothing to fall back on: forget the validator and ask again unconditionally.
		o.etags.Delete(key)
		if v, err = fetch(ctx, ""); err != nil {
			return Result[T]{}, err
		}
		if v.NotModified {
			return Result[T]{}, fmt.Errorf("unexpected not-modified response for %s", key)
		}
	}

	o.etags.Set(key, v.ETag, v.Data)
	if !skipStore {
		o.put(ctx, key, v.Data, v.ETag, ttl)
	}
	return Result[T]{Data: v.Data, ETag: v.ETag}, nil
}

type cachedValue[T any] struct {
	entry Entry
	data  T
}

// lookup reads key from the store and decodes it into T. Store failures and
// undecodable entries are logged and treated as misses.
func lookup[T any](ctx context.Context, o *Orchestrator, key string) (cachedValue[T], bool) {
	entry, ok, err := o.store.Get(ctx, key)
	if err != nil {
		o.logger.Printf("cache: read of %s failed: %v", key, err)
		return cachedValue[T]{}, false
	}
	if !ok {
		return cachedValue[T]{}, false
	}
	data, err := decode[T](entry.Data)
	if err != nil {
		o.logger.Printf("cache: dropping undecodable entry %s: %v", key, err)
		_ = o.store.Delete(ctx, key)
		return cachedValue[T]{}, false
	}
	return cachedValue[T]{entry: entry, data: data}, true
}

func (o *Orchestrator) put(ctx context.Context, key string, data any, etag string, ttl time.Duration) {
	if err := o.store.Set(ctx, key, NewEntry(data, etag, o.clock.Now(), ttl)); err != nil {
		o.logger.Printf("cache: write of %s failed: %v", key, err)
	}
}

// revalidate refreshes key in the background. Failures never reach the caller.
func (o *Orchestrator) revalidate(ctx context.Context, key string, run func(context.Context) error) {
	bg := context.WithoutCancel(ctx)
	o.background.Add(1)
	go func() {
		defer o.background.Done()
		_, err := Dedupe(o.dedup, key+":revalidate", func() (struct{}, error) {
			return struct{}{}, run(bg)
		})
		if err != nil {
			o.logger.Printf("cache: background revalidation of %s failed: %v", key, err)
			return
		}
		o.logger.Printf("cache: revalidated %s", key)
	}()
}

func (o *Orchestrator) ttlFor(opts FetchOptions) time.Duration {
	if opts.TTL > 0 {
		return opts.TTL
	}
	return o.ttl
}

// decode converts stored data back into T. Memory stores hand back the original value;
// persistent stores hand back JSON.
func decode[T any](data any) (T, error) {
	if v, ok := data.(T); ok {
		return v, nil
	}
	var out T
	var raw []byte
	switch d := data.(type) {
	case json.RawMessage:
		raw = d
	case []byte:
		raw = d
	default:
		b, err := json.Marshal(d)
		if err != nil {
			return out, err
		}
		raw = b
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}
