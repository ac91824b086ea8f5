// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"io"
	"log"
	"net/http"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/orgstats/internal/domain"
	"github.com/naka-gawa/orgstats/internal/gateway"
)

// DefaultMaxRepos is how many recently pushed repositories a run scans by default.
const DefaultMaxRepos = 10

// Options select what a statistics run covers.
type Options struct {
	Org    string
	Window domain.Window
	// MembersOnly drops authors who are not members of Org.
	MembersOnly bool
	IncludeBots bool
	// MaxRepos bounds the scanned repositories, most recently pushed first.
	// Zero selects DefaultMaxRepos; a negative value scans every repository.
	MaxRepos    int
	TopN        int
	Concurrency int
	Retry       RetryOptions
	// OnProgress reports finished repositories.
	OnProgress func(completed, total int)
	// OnSkip reports a repository left out because it could not be read.
	OnSkip func(repo string, err error)
}

// Aggregator is the use case for aggregating GitHub stats.
// It orchestrates the fetching and combining of data.
type Aggregator struct {
	fetcher gateway.Fetcher
	logger  *log.Logger
}

// NewAggregator creates a new Aggregator instance.
func NewAggregator(fetcher gateway.Fetcher, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Aggregator{
		fetcher: fetcher,
		logger:  logger,
	}
}

// repoItems is what one repository contributed to a run.
type repoItems[I any] struct {
	items   []I
	skipped bool
}

// scan is the raw material of a report.
type scan[I any] struct {
	items   []I
	members map[string]bool
	scanned int
	skipped int
}

// filter reports whether an author passes the bot and membership filters.
func (s *scan[I]) filter(actor domain.Actor, opts Options) bool {
	if actor.Login == "" {
		return false
	}
	if !opts.IncludeBots && actor.IsBot() {
		return false
	}
	if opts.MembersOnly && !s.members[actor.Login] {
		return false
	}
	return true
}

// collect resolves the repositories to scan and fetches list for each of them.
func collect[I any](ctx context.Context, a *Aggregator, opts Options, list func(ctx context.Context, repo string, window domain.Window) ([]I, error)) (*scan[I], error) {
	a.logger.Printf("Usecase: resolving repositories of %s...", opts.Org)

	var repos []domain.Repository
	var members []domain.Member
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		repos, err = a.fetcher.GetOrgReposList(egCtx, opts.Org, pagesFor(opts.MaxRepos))
		return err
	})
	if opts.MembersOnly {
		eg.Go(func() error {
			var err error
			members, err = a.fetcher.GetOrgMembersList(egCtx, opts.Org)
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	repos = mostRecentlyPushed(repos, opts.MaxRepos)
	a.logger.Printf("Usecase: scanning %d repositories...", len(repos))

	results, err := BatchProcess(ctx, repos, func(ctx context.Context, repo domain.Repository) (repoItems[I], error) {
		items, err := WithRetry(ctx, func(ctx context.Context) ([]I, error) {
			return list(ctx, repo.FullName, opts.Window)
		}, withRetryLog(opts.Retry, a.logger, repo.FullName))
		if err != nil {
			if gateway.IsStatus(err, http.StatusForbidden, http.StatusNotFound, http.StatusConflict) {
				a.logger.Printf("Usecase: skipping %s: %v", repo.FullName, err)
				if opts.OnSkip != nil {
					opts.OnSkip(repo.FullName, err)
				}
				return repoItems[I]{skipped: true}, nil
			}
			return repoItems[I]{}, err
		}
		return repoItems[I]{items: items}, nil
	}, BatchOptions{Concurrency: opts.Concurrency, OnProgress: opts.OnProgress})
	if err != nil {
		return nil, err
	}

	s := &scan[I]{}
	if opts.MembersOnly {
		s.members = make(map[string]bool, len(members))
		for _, m := range members {
			s.members[m.Login] = true
		}
	}
	for _, r := range results {
		if r.skipped {
			s.skipped++
			continue
		}
		s.scanned++
		s.items = append(s.items, r.items...)
	}
	a.logger.Printf("Usecase: scanned %d repositories, skipped %d.", s.scanned, s.skipped)
	return s, nil
}

func withRetryLog(opts RetryOptions, logger *log.Logger, repo string) RetryOptions {
	onRetry := opts.OnRetry
	opts.OnRetry = func(err error, attempt int) {
		logger.Printf("Usecase: retrying %s (attempt %d): %v", repo, attempt, err)
		if onRetry != nil {
			onRetry(err, attempt)
		}
	}
	return opts
}

func pagesFor(maxRepos int) int {
	switch {
	case maxRepos < 0:
		return 0
	case maxRepos == 0:
		maxRepos = DefaultMaxRepos
	}
	return (maxRepos + gateway.DefaultPerPage - 1) / gateway.DefaultPerPage
}

// mostRecentlyPushed orders repos by push time, newest first, and keeps maxRepos of them.
func mostRecentlyPushed(repos []domain.Repository, maxRepos int) []domain.Repository {
	sorted := slices.Clone(repos)
	slices.SortStableFunc(sorted, func(a, b domain.Repository) int {
		return b.PushedAt.Compare(a.PushedAt)
	})
	if maxRepos == 0 {
		maxRepos = DefaultMaxRepos
	}
	if maxRepos > 0 && len(sorted) > maxRepos {
		sorted = sorted[:maxRepos]
	}
	return sorted
}

func reportMeta[I, S any](opts Options, s *scan[I], r ranked[S]) domain.ReportMeta {
	return domain.ReportMeta{
		Org:          opts.Org,
		Window:       opts.Window,
		Total:        r.total,
		Other:        r.other,
		Contributors: r.contributors,
		ReposScanned: s.scanned,
		ReposSkipped: s.skipped,
		Summary:      r.summary,
	}
}

// webFlowLogin is the account GitHub signs web UI commits and merges with.
const webFlowLogin = "web-flow"

// commitAuthor attributes a commit to its linked author, or to its committer when
// GitHub could not link the author email to an account. A web-flow committer says
// nothing about who wrote the change, so such commits stay unattributed.
func commitAuthor(c domain.Commit) domain.Actor {
	if c.Author != nil && c.Author.Login != "" {
		return *c.Author
	}
	if c.Committer != nil && c.Committer.Login != webFlowLogin {
		return *c.Committer
	}
	return domain.Actor{}
}

// CommitStats ranks authors by commits made inside the window.
func (a *Aggregator) CommitStats(ctx context.Context, opts Options) (*domain.CommitReport, error) {
	s, err := collect(ctx, a, opts, a.fetcher.ListRepoCommits)
	if err != nil {
		return nil, err
	}
	t := newTally(func(author string) domain.CommitStat { return domain.CommitStat{Author: author} })
	for _, c := range s.items {
		actor := commitAuthor(c)
		if !s.filter(actor, opts) {
			continue
		}
		t.get(actor.Login).Count++
	}
	r := rank(t, func(c domain.CommitStat) int { return c.Count }, opts.TopN)
	a.logger.Println("Usecase: commit aggregation complete.")
	return &domain.CommitReport{ReportMeta: reportMeta(opts, s, r), Top: r.top}, nil
}

// PullRequestStats ranks authors by pull requests opened inside the window.
func (a *Aggregator) PullRequestStats(ctx context.Context, opts Options) (*domain.PullRequestReport, error) {
	s, err := collect(ctx, a, opts, a.fetcher.ListRepoPullRequests)
	if err != nil {
		return nil, err
	}
	t := newTally(func(author string) domain.PullRequestStat { return domain.PullRequestStat{Author: author} })
	merged := 0
	for _, pr := range s.items {
		if !s.filter(pr.Author, opts) {
			continue
		}
		rec := t.get(pr.Author.Login)
		rec.Count++
		if pr.MergedAt != nil {
			rec.Merged++
			merged++
		}
	}
	r := rank(t, func(p domain.PullRequestStat) int { return p.Count }, opts.TopN)
	a.logger.Println("Usecase: pull request aggregation complete.")
	return &domain.PullRequestReport{ReportMeta: reportMeta(opts, s, r), Merged: merged, Top: r.top}, nil
}

// IssueStats ranks authors by issues opened inside the window.
func (a *Aggregator) IssueStats(ctx context.Context, opts Options) (*domain.IssueReport, error) {
	s, err := collect(ctx, a, opts, a.fetcher.ListRepoIssues)
	if err != nil {
		return nil, err
	}
	t := newTally(func(author string) domain.IssueStat { return domain.IssueStat{Author: author} })
	open, closed := 0, 0
	for _, issue := range s.items {
		if !s.filter(issue.Author, opts) {
			continue
		}
		rec := t.get(issue.Author.Login)
		rec.Count++
		if issue.State == "closed" {
			rec.Closed++
			closed++
		} else {
			rec.Open++
			open++
		}
	}
	r := rank(t, func(i domain.IssueStat) int { return i.Count }, opts.TopN)
	a.logger.Println("Usecase: issue aggregation complete.")
	return &domain.IssueReport{ReportMeta: reportMeta(opts, s, r), Open: open, Closed: closed, Top: r.top}, nil
}
