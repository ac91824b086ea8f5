package cache

import "golang.org/x/sync/singleflight"

// Deduplicator collapses concurrent calls that share a key into one call.
// A key is registered while its call is in flight and released as soon as it
// settles, successfully or not, so the next call after that starts a fresh fetch.
type Deduplicator struct {
	group singleflight.Group
}

// NewDeduplicator returns an empty in-flight registry.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{}
}

// Dedupe runs fn under key unless a call for key is already in flight, in which case
// it waits for that call and returns its result. Every waiter receives the same value
// or the same error.
func Dedupe[T any](d *Deduplicator, key string, fn func() (T, error)) (T, error) {
	v, err, _ := d.group.Do(key, func() (any, error) {
		res, err := fn()
		return res, err
	})
	if err != nil {
		var zero T
		return zero, err
	}
	res, _ := v.(T)
	return res, nil
}

// Forget releases key so the next call runs fn even if one is still in flight.
func (d *Deduplicator) Forget(key string) {
	d.group.Forget(key)
}
