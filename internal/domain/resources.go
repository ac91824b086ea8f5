package domain

import (
	"strings"
	"time"
)

// Organization is a projection of the GitHub organization resource.
type Organization struct {
	Login                       string    `json:"login"`
	ID                          int64     `json:"id"`
	Name                        string    `json:"name,omitempty"`
	Description                 string    `json:"description,omitempty"`
	Blog                        string    `json:"blog,omitempty"`
	Location                    string    `json:"location,omitempty"`
	Email                       string    `json:"email,omitempty"`
	HTMLURL                     string    `json:"html_url"`
	PublicRepos                 int       `json:"public_repos"`
	Followers                   int       `json:"followers"`
	CreatedAt                   time.Time `json:"created_at"`
	DefaultRepoPermission       string    `json:"default_repository_permission,omitempty"`
	MembersCanCreateRepos       bool      `json:"members_can_create_repositories"`
	TwoFactorRequirementEnabled bool      `json:"two_factor_requirement_enabled"`
}

// Repository is a projection of the GitHub repository resource.
type Repository struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Private       bool      `json:"private"`
	Fork          bool      `json:"fork"`
	Archived      bool      `json:"archived"`
	Language      string    `json:"language,omitempty"`
	Visibility    string    `json:"visibility,omitempty"`
	DefaultBranch string    `json:"default_branch,omitempty"`
	Stars         int       `json:"stargazers_count"`
	Forks         int       `json:"forks_count"`
	OpenIssues    int       `json:"open_issues_count"`
	PushedAt      time.Time `json:"pushed_at"`
	HTMLURL       string    `json:"html_url"`
}

// Member is a projection of an organization member.
type Member struct {
	Login     string `json:"login"`
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	SiteAdmin bool   `json:"site_admin"`
	HTMLURL   string `json:"html_url"`
}

// Team is a projection of an organization team.
type Team struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Description  string `json:"description,omitempty"`
	Privacy      string `json:"privacy,omitempty"`
	Permission   string `json:"permission,omitempty"`
	MembersCount int    `json:"members_count"`
	ReposCount   int    `json:"repos_count"`
	ParentSlug   string `json:"parent,omitempty"`
	HTMLURL      string `json:"html_url"`
}

// Actor identifies the GitHub account behind a commit, pull request or issue.
type Actor struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// IsBot reports whether the account is a bot or app account.
func (a Actor) IsBot() bool {
	return a.Type == "Bot" || strings.HasSuffix(a.Login, "[bot]")
}

// Commit is a projection of a repository commit.
type Commit struct {
	SHA       string    `json:"sha"`
	Author    *Actor    `json:"author,omitempty"`
	Committer *Actor    `json:"committer,omitempty"`
	Date      time.Time `json:"date"`
}

// PullRequest is a projection of a repository pull request.
type PullRequest struct {
	Number    int        `json:"number"`
	Author    Actor      `json:"author"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	MergedAt  *time.Time `json:"merged_at,omitempty"`
}

// Issue is a projection of a repository issue. Pull requests are never included.
type Issue struct {
	Number    int        `json:"number"`
	Author    Actor      `json:"author"`
	State     string     `json:"state"`
	CreatedAt time.Time  `json:"created_at"`
	ClosedAt  *time.Time `json:"closed_at,omitempty"`
}
