package usecase

import (
	"slices"

	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/orgstats/internal/domain"
)

// DefaultTopN is how many authors a report ranks.
const DefaultTopN = 10

// tally accumulates per-author records, remembering the order authors were first seen.
type tally[S any] struct {
	order   []string
	records map[string]*S
	newFn   func(author string) S
}

func newTally[S any](newFn func(author string) S) *tally[S] {
	return &tally[S]{records: make(map[string]*S), newFn: newFn}
}

// get returns the record of author, creating it on first sight.
func (t *tally[S]) get(author string) *S {
	if rec, ok := t.records[author]; ok {
		return rec
	}
	rec := t.newFn(author)
	t.records[author] = &rec
	t.order = append(t.order, author)
	return &rec
}

// ranked holds the outcome of ranking a tally.
type ranked[S any] struct {
	top          []S
	total        int
	other        int
	contributors int
	summary      domain.Summary
}

// rank sorts the records by count, descending. Equal counts keep first-seen order.
func rank[S any](t *tally[S], count func(S) int, topN int) ranked[S] {
	if topN <= 0 {
		topN = DefaultTopN
	}
	all := make([]S, 0, len(t.order))
	counts := make(stats.Float64Data, 0, len(t.order))
	total := 0
	for _, author := range t.order {
		rec := *t.records[author]
		all = append(all, rec)
		counts = append(counts, float64(count(rec)))
		total += count(rec)
	}
	slices.SortStableFunc(all, func(a, b S) int {
		return count(b) - count(a)
	})

	top := all[:min(topN, len(all))]
	shown := 0
	for _, rec := range top {
		shown += count(rec)
	}
	return ranked[S]{
		top:          slices.Clone(top),
		total:        total,
		other:        total - shown,
		contributors: len(all),
		summary:      summarize(counts),
	}
}

func summarize(counts stats.Float64Data) domain.Summary {
	if counts.Len() == 0 {
		return domain.Summary{}
	}
	var s domain.Summary
	if v, err := counts.Mean(); err == nil {
		s.Mean = v
	}
	if v, err := counts.Median(); err == nil {
		s.Median = v
	}
	// undefined percentiles stay zero; NaN does not encode
	if v, err := counts.Percentile(90); err == nil {
		s.Percentile90 = v
	}
	return s
}
