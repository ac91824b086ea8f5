package usecase

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/naka-gawa/orgstats/internal/gateway"
)

// NoRetries makes WithRetry call fn exactly once.
const NoRetries = -1

// RetryOptions configure WithRetry. Zero values select the defaults.
type RetryOptions struct {
	// MaxRetries defaults to 3. A negative value, such as NoRetries, disables retrying.
	MaxRetries int
	BaseDelay  time.Duration // default 1s
	MaxDelay   time.Duration // default 30s
	// OnRetry is called before each wait with the failure and the 1-based retry number.
	OnRetry func(err error, attempt int)
	// Jitter returns the random part added to each delay. Defaults to [0, 1s).
	Jitter func() time.Duration
	Clock  clockwork.Clock
}

func (o RetryOptions) withDefaults() RetryOptions {
	switch {
	case o.MaxRetries == 0:
		o.MaxRetries = 3
	case o.MaxRetries < 0:
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = time.Second
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = 30 * time.Second
	}
	if o.Jitter == nil {
		o.Jitter = func() time.Duration { return rand.N(time.Second) }
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	return o
}

// Backoff returns the wait before retry number attempt+1.
func (o RetryOptions) Backoff(attempt int) time.Duration {
	d := o.BaseDelay<<attempt + o.Jitter()
	if d > o.MaxDelay || d < 0 {
		return o.MaxDelay
	}
	return d
}

// WithRetry calls fn until it succeeds, fails with a non-retryable error, or has been
// retried MaxRetries times, in which case the last error is returned.
func WithRetry[T any](ctx context.Context, fn func(context.Context) (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()
	var zero T
	var lastErr error
	for attempt := 0; attempt <= opts.MaxRetries; attempt++ {
		res, err := fn(ctx)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !retryable(err) || attempt == opts.MaxRetries {
			break
		}

		if opts.OnRetry != nil {
			opts.OnRetry(err, attempt+1)
		}
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-opts.Clock.After(opts.Backoff(attempt)):
		}
	}
	return zero, lastErr
}

func retryable(err error) bool {
	return !errors.Is(err, ErrAborted) && gateway.IsRetryable(err)
}
