package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/naka-gawa/orgstats/internal/domain"
)

var (
	orgName     string
	orgMaxPages int
)

var orgCmd = &cobra.Command{
	Use:   "org",
	Short: "Reads organization resources through the cache",
}

// runOrg opens the app, runs fetch and renders whatever it returns.
func runOrg(cmd *cobra.Command, fetch func(ctx context.Context, a *app) (any, func() tabular, error)) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, tab, err := fetch(cmd.Context(), a)
	if err != nil {
		return err
	}
	return render(cmd.OutOrStdout(), outputFormat, result, tab)
}

var orgInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Shows the organization profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrg(cmd, func(ctx context.Context, a *app) (any, func() tabular, error) {
			org, err := a.gateway.GetOrganization(ctx, orgName)
			if err != nil {
				return nil, nil, err
			}
			return org, func() tabular {
				return tabular{
					header: []string{"field", "value"},
					rows: [][]string{
						{"login", org.Login},
						{"name", org.Name},
						{"description", org.Description},
						{"public_repos", itoa(org.PublicRepos)},
						{"followers", itoa(org.Followers)},
						{"created_at", formatTime(org.CreatedAt)},
						{"default_repository_permission", org.DefaultRepoPermission},
						{"two_factor_requirement_enabled", fmt.Sprint(org.TwoFactorRequirementEnabled)},
						{"html_url", org.HTMLURL},
					},
				}
			}, nil
		})
	},
}

var orgMembersCmd = &cobra.Command{
	Use:   "members",
	Short: "Lists organization members",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrg(cmd, func(ctx context.Context, a *app) (any, func() tabular, error) {
			members, err := a.gateway.GetOrgMembersList(ctx, orgName)
			if err != nil {
				return nil, nil, err
			}
			return members, func() tabular {
				t := tabular{header: []string{"login", "type", "site_admin"}}
				for _, m := range members {
					t.rows = append(t.rows, []string{m.Login, m.Type, fmt.Sprint(m.SiteAdmin)})
				}
				return t
			}, nil
		})
	},
}

var orgTeamsCmd = &cobra.Command{
	Use:   "teams",
	Short: "Lists organization teams",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrg(cmd, func(ctx context.Context, a *app) (any, func() tabular, error) {
			teams, err := a.gateway.GetOrgTeamsList(ctx, orgName)
			if err != nil {
				return nil, nil, err
			}
			return teams, func() tabular {
				t := tabular{header: []string{"slug", "name", "privacy", "parent"}}
				for _, team := range teams {
					t.rows = append(t.rows, []string{team.Slug, team.Name, team.Privacy, team.ParentSlug})
				}
				return t
			}, nil
		})
	},
}

var orgReposCmd = &cobra.Command{
	Use:   "repos",
	Short: "Lists organization repositories, most recently pushed first",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrg(cmd, func(ctx context.Context, a *app) (any, func() tabular, error) {
			repos, err := a.gateway.GetOrgReposList(ctx, orgName, orgMaxPages)
			if err != nil {
				return nil, nil, err
			}
			return repos, func() tabular {
				t := tabular{header: []string{"name", "visibility", "language", "stars", "archived", "pushed_at"}}
				for _, r := range repos {
					t.rows = append(t.rows, []string{r.Name, r.Visibility, r.Language, itoa(r.Stars), fmt.Sprint(r.Archived), formatTime(r.PushedAt)})
				}
				return t
			}, nil
		})
	},
}

var orgSettingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Shows webhooks, Actions permissions, runners and secrets (admin only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runOrg(cmd, func(ctx context.Context, a *app) (any, func() tabular, error) {
			settings, err := a.gateway.GetOrgSettings(ctx, orgName)
			if err != nil {
				return nil, nil, err
			}
			return settings, func() tabular { return settingsTable(settings) }, nil
		})
	},
}

func settingsTable(s domain.OrgSettings) tabular {
	t := tabular{header: []string{"section", "name", "detail"}}
	for _, h := range s.Webhooks {
		t.rows = append(t.rows, []string{"webhook", h.Config.URL, strings.Join(h.Events, " ")})
	}
	if s.Actions != nil {
		t.rows = append(t.rows, []string{"actions", s.Actions.EnabledRepositories, s.Actions.AllowedActions})
	}
	for _, r := range s.Runners {
		t.rows = append(t.rows, []string{"runner", r.Name, r.OS + " " + r.Status})
	}
	for _, sec := range s.Secrets {
		t.rows = append(t.rows, []string{"secret", sec.Name, sec.Visibility})
	}
	for _, u := range s.Unavailable {
		t.rows = append(t.rows, []string{u, "", "unavailable"})
	}
	return t
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func init() {
	rootCmd.AddCommand(orgCmd)
	orgCmd.AddCommand(orgInfoCmd, orgMembersCmd, orgTeamsCmd, orgReposCmd, orgSettingsCmd)

	orgCmd.PersistentFlags().StringVar(&orgName, "org", "", "Target GitHub organization name (required)")
	_ = orgCmd.MarkPersistentFlagRequired("org")
	orgReposCmd.Flags().IntVar(&orgMaxPages, "max-pages", 0, "Stop after this many pages of 100, 0 for all")
}
