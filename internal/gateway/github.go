// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients and the request cache.
package gateway

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/google/go-github/v84/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/orgstats/internal/cache"
	"github.com/naka-gawa/orgstats/internal/domain"
)

// Cache lifetimes per resource.
const (
	OrgTTL      = 10 * time.Minute
	MembersTTL  = 10 * time.Minute
	TeamsTTL    = 10 * time.Minute
	ReposTTL    = 5 * time.Minute
	ItemsTTL    = 5 * time.Minute
	SettingsTTL = 10 * time.Minute
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	GetOrgReposList(ctx context.Context, org string, maxPages int) ([]domain.Repository, error)
	GetOrgMembersList(ctx context.Context, org string) ([]domain.Member, error)
	ListRepoCommits(ctx context.Context, repo string, window domain.Window) ([]domain.Commit, error)
	ListRepoPullRequests(ctx context.Context, repo string, window domain.Window) ([]domain.PullRequest, error)
	ListRepoIssues(ctx context.Context, repo string, window domain.Window) ([]domain.Issue, error)
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
// Every read goes through the cache orchestrator.
type GitHubGateway struct {
	client        *Client
	restClient    *github.Client
	graphqlClient *githubv4.Client
	cache         *cache.Orchestrator
	fetch         cache.FetchOptions
	logger        *log.Logger
}

var _ Fetcher = (*GitHubGateway)(nil)

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
// fetch carries the caller-wide cache behaviour (skip, force, stale window); TTLs are
// chosen per resource unless fetch.TTL is set.
func NewGitHubGateway(cfg Config, orchestrator *cache.Orchestrator, fetch cache.FetchOptions, logger *log.Logger) (*GitHubGateway, error) {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	client, err := NewClient(cfg, logger)
	if err != nil {
		return nil, err
	}
	if orchestrator == nil {
		orchestrator = cache.NewDefaultOrchestrator(logger)
	}

	httpClient := client.authenticatedHTTPClient()
	restClient := github.NewClient(httpClient)
	restClient.BaseURL = client.baseURL
	restClient.UserAgent = client.userAgent

	return &GitHubGateway{
		client:        client,
		restClient:    restClient,
		graphqlClient: githubv4.NewEnterpriseClient(client.graphqlURL, httpClient),
		cache:         orchestrator,
		fetch:         fetch,
		logger:        logger,
	}, nil
}

// Client returns the underlying REST client.
func (g *GitHubGateway) Client() *Client { return g.client }

// options applies the resource TTL unless the caller fixed one for every resource.
func (g *GitHubGateway) options(ttl time.Duration) cache.FetchOptions {
	opts := g.fetch
	if opts.TTL <= 0 {
		opts.TTL = ttl
	}
	return opts
}

func cachedList[T any](ctx context.Context, g *GitHubGateway, key string, ttl time.Duration, list func(context.Context) ([]T, error)) ([]T, error) {
	res, err := cache.CachedFetch(ctx, g.cache, key, cache.Fetcher[[]T](list), g.options(ttl))
	if err != nil {
		return nil, err
	}
	if res.FromCache {
		g.logger.Printf("cache hit for %s (stale=%t)", key, res.Stale)
	}
	return res.Data, nil
}

// conditional fetches a single resource with If-None-Match revalidation.
func conditional[S any, D any](ctx context.Context, g *GitHubGateway, key, path string, ttl time.Duration, convert func(S) D) (D, error) {
	res, err := cache.ConditionalFetch(ctx, g.cache, key, func(ctx context.Context, etag string) (cache.Validated[D], error) {
		resp, err := g.client.Do(ctx, Request{Path: path, ETag: etag})
		if err != nil {
			return cache.Validated[D]{}, err
		}
		if resp.NotModified {
			return cache.Validated[D]{NotModified: true, ETag: resp.ETag}, nil
		}
		raw, err := DecodeJSON[S](resp)
		if err != nil {
			return cache.Validated[D]{}, err
		}
		return cache.Validated[D]{Data: convert(raw), ETag: resp.ETag}, nil
	}, g.options(ttl))
	if err != nil {
		var zero D
		return zero, err
	}
	if res.NotModified {
		g.logger.Printf("%s not modified", key)
	}
	return res.Data, nil
}

// GetOrganization returns the organization profile.
func (g *GitHubGateway) GetOrganization(ctx context.Context, org string) (domain.Organization, error) {
	o, err := conditional(ctx, g, "org:"+org, "orgs/"+url.PathEscape(org), OrgTTL, toOrganization)
	if err != nil {
		return domain.Organization{}, fmt.Errorf("failed to fetch organization %s: %w", org, err)
	}
	return o, nil
}

// GetOrgMembersList returns every member of org.
func (g *GitHubGateway) GetOrgMembersList(ctx context.Context, org string) ([]domain.Member, error) {
	members, err := cachedList(ctx, g, "members:"+org, MembersTTL, func(ctx context.Context) ([]domain.Member, error) {
		users, err := Collect[*github.User](ctx, g.client, "orgs/"+url.PathEscape(org)+"/members", PageOptions{})
		if err != nil {
			return nil, err
		}
		return convertAll(users, toMember), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list members of %s: %w", org, err)
	}
	return members, nil
}

// GetOrgTeamsList returns every team of org.
func (g *GitHubGateway) GetOrgTeamsList(ctx context.Context, org string) ([]domain.Team, error) {
	teams, err := cachedList(ctx, g, "teams:"+org, TeamsTTL, func(ctx context.Context) ([]domain.Team, error) {
		teams, err := Collect[*github.Team](ctx, g.client, "orgs/"+url.PathEscape(org)+"/teams", PageOptions{})
		if err != nil {
			return nil, err
		}
		return convertAll(teams, toTeam), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list teams of %s: %w", org, err)
	}
	return teams, nil
}

// GetOrgReposList returns the repositories of org, most recently pushed first.
// maxPages bounds the listing; zero lists everything.
func (g *GitHubGateway) GetOrgReposList(ctx context.Context, org string, maxPages int) ([]domain.Repository, error) {
	key := "repos:" + org
	if maxPages > 0 {
		key = fmt.Sprintf("%s:%d", key, maxPages)
	}
	repos, err := cachedList(ctx, g, key, ReposTTL, func(ctx context.Context) ([]domain.Repository, error) {
		opts := PageOptions{
			MaxPages: maxPages,
			Query:    url.Values{"type": {"all"}, "sort": {"pushed"}},
		}
		repos, err := Collect[*github.Repository](ctx, g.client, "orgs/"+url.PathEscape(org)+"/repos", opts)
		if err != nil {
			return nil, err
		}
		return convertAll(repos, toRepository), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories of %s: %w", org, err)
	}
	return repos, nil
}

// ListRepoCommits returns the commits of repo ("owner/name") inside window.
func (g *GitHubGateway) ListRepoCommits(ctx context.Context, repo string, window domain.Window) ([]domain.Commit, error) {
	key := "commits:" + repo + ":" + window.Key()
	return cachedList(ctx, g, key, ItemsTTL, func(ctx context.Context) ([]domain.Commit, error) {
		query := url.Values{}
		if !window.Since.IsZero() {
			query.Set("since", window.Since.UTC().Format(time.RFC3339))
		}
		if !window.Until.IsZero() {
			query.Set("until", window.Until.UTC().Format(time.RFC3339))
		}
		var commits []domain.Commit
		for c, err := range Paginate[*github.RepositoryCommit](ctx, g.client, "repos/"+repo+"/commits", PageOptions{Query: query}).All() {
			if err != nil {
				return nil, err
			}
			commit := toCommit(c)
			if window.Contains(commit.Date) {
				commits = append(commits, commit)
			}
		}
		return commits, nil
	})
}

// ListRepoPullRequests returns the pull requests of repo opened inside window.
// Pull requests are listed newest first, so paging stops at the first one opened
// before the window.
func (g *GitHubGateway) ListRepoPullRequests(ctx context.Context, repo string, window domain.Window) ([]domain.PullRequest, error) {
	key := "pulls:" + repo + ":" + window.Key()
	return cachedList(ctx, g, key, ItemsTTL, func(ctx context.Context) ([]domain.PullRequest, error) {
		query := url.Values{"state": {"all"}, "sort": {"created"}, "direction": {"desc"}}
		var prs []domain.PullRequest
		for p, err := range Paginate[*github.PullRequest](ctx, g.client, "repos/"+repo+"/pulls", PageOptions{Query: query}).All() {
			if err != nil {
				return nil, err
			}
			pr := toPullRequest(p)
			if !window.Since.IsZero() && pr.CreatedAt.Before(window.Since) {
				break
			}
			if window.Contains(pr.CreatedAt) {
				prs = append(prs, pr)
			}
		}
		return prs, nil
	})
}

// ListRepoIssues returns the issues of repo opened inside window. Pull requests,
// which the issues endpoint also lists, are left out.
func (g *GitHubGateway) ListRepoIssues(ctx context.Context, repo string, window domain.Window) ([]domain.Issue, error) {
	key := "issues:" + repo + ":" + window.Key()
	return cachedList(ctx, g, key, ItemsTTL, func(ctx context.Context) ([]domain.Issue, error) {
		query := url.Values{"state": {"all"}}
		if !window.Since.IsZero() {
			// since filters on update time, which is never before creation
			query.Set("since", window.Since.UTC().Format(time.RFC3339))
		}
		var issues []domain.Issue
		for i, err := range Paginate[*github.Issue](ctx, g.client, "repos/"+repo+"/issues", PageOptions{Query: query}).All() {
			if err != nil {
				return nil, err
			}
			if i.IsPullRequest() {
				continue
			}
			issue := toIssue(i)
			if window.Contains(issue.CreatedAt) {
				issues = append(issues, issue)
			}
		}
		return issues, nil
	})
}

// settings sections, in the order they are reported.
const (
	sectionWebhooks = "webhooks"
	sectionActions  = "actions"
	sectionRunners  = "runners"
	sectionSecrets  = "secrets"
)

// GetOrgSettings collects the admin settings of org. Sections the caller has no
// access to are listed in OrgSettings.Unavailable.
func (g *GitHubGateway) GetOrgSettings(ctx context.Context, org string) (domain.OrgSettings, error) {
	base := "orgs/" + url.PathEscape(org)
	settings := domain.OrgSettings{Org: org}
	var unavailable [4]bool

	tolerate := func(idx int, section string, err error) error {
		if err == nil {
			return nil
		}
		if IsStatus(err, http.StatusForbidden, http.StatusNotFound) {
			g.logger.Printf("settings section %s of %s unavailable: %v", section, org, err)
			unavailable[idx] = true
			return nil
		}
		return fmt.Errorf("failed to fetch %s settings of %s: %w", section, org, err)
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hooks, err := conditional(ctx, g, "hooks:"+org, base+"/hooks?per_page=100", SettingsTTL, func(h []*github.Hook) []domain.Webhook {
			return convertAll(h, toWebhook)
		})
		settings.Webhooks = hooks
		return tolerate(0, sectionWebhooks, err)
	})
	eg.Go(func() error {
		perms, err := conditional(ctx, g, "actions:"+org, base+"/actions/permissions", SettingsTTL, func(p *github.ActionsPermissions) *domain.ActionsSettings {
			return &domain.ActionsSettings{
				EnabledRepositories: p.GetEnabledRepositories(),
				AllowedActions:      p.GetAllowedActions(),
			}
		})
		settings.Actions = perms
		return tolerate(1, sectionActions, err)
	})
	eg.Go(func() error {
		runners, err := conditional(ctx, g, "runners:"+org, base+"/actions/runners?per_page=100", SettingsTTL, func(r *github.Runners) []domain.Runner {
			return convertAll(r.Runners, toRunner)
		})
		settings.Runners = runners
		return tolerate(2, sectionRunners, err)
	})
	eg.Go(func() error {
		secrets, err := conditional(ctx, g, "secrets:"+org, base+"/actions/secrets?per_page=100", SettingsTTL, func(s *github.Secrets) []domain.Secret {
			return convertAll(s.Secrets, toSecret)
		})
		settings.Secrets = secrets
		return tolerate(3, sectionSecrets, err)
	})
	if err := eg.Wait(); err != nil {
		return domain.OrgSettings{}, err
	}

	for i, section := range []string{sectionWebhooks, sectionActions, sectionRunners, sectionSecrets} {
		if unavailable[i] {
			settings.Unavailable = append(settings.Unavailable, section)
		}
	}
	return settings, nil
}

// ClearCache drops every cached response and remembered ETag.
func (g *GitHubGateway) ClearCache(ctx context.Context) error {
	if err := g.cache.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	return nil
}

// CacheStats reports the hit/miss counters of the underlying store.
func (g *GitHubGateway) CacheStats(ctx context.Context) (cache.Stats, error) {
	return g.cache.Store().Stats(ctx)
}
