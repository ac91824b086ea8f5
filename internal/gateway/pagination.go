package gateway

import (
	"context"
	"errors"
	"iter"
	"net/url"
	"strconv"

	"go.uber.org/atomic"
)

// DefaultPerPage is the page size GitHub allows at most for list endpoints.
const DefaultPerPage = 100

// ErrSequenceConsumed is yielded when a Pages sequence is ranged over a second time.
var ErrSequenceConsumed = errors.New("paginated sequence has already been consumed")

// PageOptions configure a paginated listing.
type PageOptions struct {
	// PerPage defaults to DefaultPerPage.
	PerPage int
	// MaxPages caps the pages requested. Zero means no cap.
	MaxPages int
	// Query holds extra query parameters sent with every page.
	Query url.Values
}

// Pages is a lazy listing of a GitHub collection endpoint. A page is requested only
// when the consumer has used up the previous one. It can be ranged over once.
type Pages[T any] struct {
	ctx    context.Context
	client *Client
	path   string
	opts   PageOptions

	consumed atomic.Bool
	fetched  atomic.Int32
}

// Paginate prepares a lazy listing of path. No request is made until All is ranged over.
func Paginate[T any](ctx context.Context, c *Client, path string, opts PageOptions) *Pages[T] {
	if opts.PerPage <= 0 {
		opts.PerPage = DefaultPerPage
	}
	return &Pages[T]{ctx: ctx, client: c, path: path, opts: opts}
}

// All yields every item in order. Iteration ends on a short or empty page, at MaxPages,
// when the consumer stops, or after yielding the first error.
func (p *Pages[T]) All() iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		var zero T
		if p.consumed.Swap(true) {
			yield(zero, ErrSequenceConsumed)
			return
		}
		for page := 1; p.opts.MaxPages == 0 || page <= p.opts.MaxPages; page++ {
			query := url.Values{}
			for k, v := range p.opts.Query {
				query[k] = v
			}
			query.Set("page", strconv.Itoa(page))
			query.Set("per_page", strconv.Itoa(p.opts.PerPage))

			items, err := Get[[]T](p.ctx, p.client, p.path, query)
			p.fetched.Inc()
			if err != nil {
				yield(zero, err)
				return
			}
			for _, item := range items {
				if !yield(item, nil) {
					return
				}
			}
			if len(items) < p.opts.PerPage {
				return
			}
		}
	}
}

// Fetched returns how many pages have been requested so far.
func (p *Pages[T]) Fetched() int {
	return int(p.fetched.Load())
}

// Collect drains a listing of path into a slice.
func Collect[T any](ctx context.Context, c *Client, path string, opts PageOptions) ([]T, error) {
	var out []T
	for item, err := range Paginate[T](ctx, c, path, opts).All() {
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
