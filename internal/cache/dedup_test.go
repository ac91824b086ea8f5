package cache

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
)

func TestDedupe_ConcurrentCallersShareOneFetch(t *testing.T) {
	const callers = 20
	d := NewDeduplicator()
	var calls atomic.Int32
	release := make(chan struct{})

	var wg sync.WaitGroup
	results := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = Dedupe(d, "repos:acme", func() (int, error) {
				<-release
				return int(calls.Inc()), nil
			})
		}(i)
	}
	// let every caller reach the in-flight call before it settles
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 1, results[i])
	}
}

func TestDedupe_SharesErrorAndReleasesKey(t *testing.T) {
	d := NewDeduplicator()
	boom := errors.New("boom")

	_, err := Dedupe(d, "k", func() (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)

	// the failed call settled, so the next one fetches again
	got, err := Dedupe(d, "k", func() (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
}
