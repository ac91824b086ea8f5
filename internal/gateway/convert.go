package gateway

import (
	"time"

	"github.com/google/go-github/v84/github"

	"github.com/naka-gawa/orgstats/internal/domain"
)

func toOrganization(o *github.Organization) domain.Organization {
	return domain.Organization{
		Login:                       o.GetLogin(),
		ID:                          o.GetID(),
		Name:                        o.GetName(),
		Description:                 o.GetDescription(),
		Blog:                        o.GetBlog(),
		Location:                    o.GetLocation(),
		Email:                       o.GetEmail(),
		HTMLURL:                     o.GetHTMLURL(),
		PublicRepos:                 o.GetPublicRepos(),
		Followers:                   o.GetFollowers(),
		CreatedAt:                   o.GetCreatedAt().Time,
		DefaultRepoPermission:       o.GetDefaultRepoPermission(),
		MembersCanCreateRepos:       o.GetMembersCanCreateRepos(),
		TwoFactorRequirementEnabled: o.GetTwoFactorRequirementEnabled(),
	}
}

func toRepository(r *github.Repository) domain.Repository {
	return domain.Repository{
		ID:            r.GetID(),
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		Private:       r.GetPrivate(),
		Fork:          r.GetFork(),
		Archived:      r.GetArchived(),
		Language:      r.GetLanguage(),
		Visibility:    r.GetVisibility(),
		DefaultBranch: r.GetDefaultBranch(),
		Stars:         r.GetStargazersCount(),
		Forks:         r.GetForksCount(),
		OpenIssues:    r.GetOpenIssuesCount(),
		PushedAt:      r.GetPushedAt().Time,
		HTMLURL:       r.GetHTMLURL(),
	}
}

func toMember(u *github.User) domain.Member {
	return domain.Member{
		Login:     u.GetLogin(),
		ID:        u.GetID(),
		Type:      u.GetType(),
		SiteAdmin: u.GetSiteAdmin(),
		HTMLURL:   u.GetHTMLURL(),
	}
}

func toTeam(t *github.Team) domain.Team {
	return domain.Team{
		ID:           t.GetID(),
		Name:         t.GetName(),
		Slug:         t.GetSlug(),
		Description:  t.GetDescription(),
		Privacy:      t.GetPrivacy(),
		Permission:   t.GetPermission(),
		MembersCount: t.GetMembersCount(),
		ReposCount:   t.GetReposCount(),
		ParentSlug:   t.GetParent().GetSlug(),
		HTMLURL:      t.GetHTMLURL(),
	}
}

func toActor(u *github.User) *domain.Actor {
	if u == nil || u.GetLogin() == "" {
		return nil
	}
	return &domain.Actor{Login: u.GetLogin(), Type: u.GetType()}
}

func toCommit(c *github.RepositoryCommit) domain.Commit {
	date := c.GetCommit().GetAuthor().GetDate().Time
	if date.IsZero() {
		date = c.GetCommit().GetCommitter().GetDate().Time
	}
	return domain.Commit{
		SHA:       c.GetSHA(),
		Author:    toActor(c.GetAuthor()),
		Committer: toActor(c.GetCommitter()),
		Date:      date,
	}
}

func toPullRequest(pr *github.PullRequest) domain.PullRequest {
	out := domain.PullRequest{
		Number:    pr.GetNumber(),
		State:     pr.GetState(),
		CreatedAt: pr.GetCreatedAt().Time,
		MergedAt:  timePtr(pr.GetMergedAt().Time),
	}
	if a := toActor(pr.GetUser()); a != nil {
		out.Author = *a
	}
	return out
}

func toIssue(i *github.Issue) domain.Issue {
	out := domain.Issue{
		Number:    i.GetNumber(),
		State:     i.GetState(),
		CreatedAt: i.GetCreatedAt().Time,
		ClosedAt:  timePtr(i.GetClosedAt().Time),
	}
	if a := toActor(i.GetUser()); a != nil {
		out.Author = *a
	}
	return out
}

func toWebhook(h *github.Hook) domain.Webhook {
	cfg := h.GetConfig()
	return domain.Webhook{
		ID:     h.GetID(),
		Name:   h.GetName(),
		Active: h.GetActive(),
		Events: h.Events,
		Config: domain.HookConf{
			URL:         cfg.GetURL(),
			ContentType: cfg.GetContentType(),
			InsecureSSL: cfg.GetInsecureSSL(),
		},
		CreatedAt: h.GetCreatedAt().Time,
		UpdatedAt: h.GetUpdatedAt().Time,
	}
}

func toRunner(r *github.Runner) domain.Runner {
	return domain.Runner{
		ID:     r.GetID(),
		Name:   r.GetName(),
		OS:     r.GetOS(),
		Status: r.GetStatus(),
		Busy:   r.GetBusy(),
	}
}

func toSecret(s *github.Secret) domain.Secret {
	return domain.Secret{
		Name:       s.Name,
		Visibility: s.Visibility,
		CreatedAt:  s.CreatedAt.Time,
		UpdatedAt:  s.UpdatedAt.Time,
	}
}

func toRateLimit(resource string, r *github.Rate) domain.RateLimit {
	if r == nil {
		return domain.RateLimit{Resource: resource}
	}
	return domain.RateLimit{
		Resource:  resource,
		Limit:     r.Limit,
		Remaining: r.Remaining,
		Used:      r.Used,
		Reset:     r.Reset.Time,
	}
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func convertAll[S any, D any](in []S, fn func(S) D) []D {
	out := make([]D, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
