package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/orgstats/internal/domain"
	"github.com/naka-gawa/orgstats/internal/usecase"
)

var (
	statsOrg         string
	statsSince       string
	statsUntil       string
	statsMembersOnly bool
	statsIncludeBots bool
	statsMaxRepos    int
	statsTop         int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Aggregates per-author activity across an organization",
	Long: `Aggregates commits, pull requests or issues across the most recently pushed
repositories of an organization and ranks the authors.

Examples:
  orgstats stats commits --org my-org
  orgstats stats prs --org my-org --since 2025-01-01 --until 2025-06-30 -o table
  orgstats stats issues --org my-org --max-repos -1 --include-bots`,
}

var statsCommitsCmd = &cobra.Command{
	Use:   "commits",
	Short: "Ranks authors by commits",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd, func(ctx context.Context, agg *usecase.Aggregator, opts usecase.Options) (any, func() tabular, error) {
			report, err := agg.CommitStats(ctx, opts)
			if err != nil {
				return nil, nil, err
			}
			return report, func() tabular {
				t := tabular{header: []string{"rank", "author", "commits"}}
				for i, s := range report.Top {
					t.rows = append(t.rows, []string{itoa(i + 1), s.Author, itoa(s.Count)})
				}
				t.rows = append(t.rows, metaRows(report.ReportMeta, 3)...)
				return t
			}, nil
		})
	},
}

var statsPullsCmd = &cobra.Command{
	Use:     "prs",
	Aliases: []string{"pulls"},
	Short:   "Ranks authors by pull requests opened",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd, func(ctx context.Context, agg *usecase.Aggregator, opts usecase.Options) (any, func() tabular, error) {
			report, err := agg.PullRequestStats(ctx, opts)
			if err != nil {
				return nil, nil, err
			}
			return report, func() tabular {
				t := tabular{header: []string{"rank", "author", "pull_requests", "merged"}}
				for i, s := range report.Top {
					t.rows = append(t.rows, []string{itoa(i + 1), s.Author, itoa(s.Count), itoa(s.Merged)})
				}
				t.rows = append(t.rows, metaRows(report.ReportMeta, 4)...)
				return t
			}, nil
		})
	},
}

var statsIssuesCmd = &cobra.Command{
	Use:   "issues",
	Short: "Ranks authors by issues opened",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStats(cmd, func(ctx context.Context, agg *usecase.Aggregator, opts usecase.Options) (any, func() tabular, error) {
			report, err := agg.IssueStats(ctx, opts)
			if err != nil {
				return nil, nil, err
			}
			return report, func() tabular {
				t := tabular{header: []string{"rank", "author", "issues", "open", "closed"}}
				for i, s := range report.Top {
					t.rows = append(t.rows, []string{itoa(i + 1), s.Author, itoa(s.Count), itoa(s.Open), itoa(s.Closed)})
				}
				t.rows = append(t.rows, metaRows(report.ReportMeta, 5)...)
				return t
			}, nil
		})
	},
}

type statsRunner func(ctx context.Context, agg *usecase.Aggregator, opts usecase.Options) (any, func() tabular, error)

func runStats(cmd *cobra.Command, run statsRunner) error {
	window, err := parseWindow(statsSince, statsUntil, time.Now())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	progress := newProgress()
	defer progress.stop()

	opts := usecase.Options{
		Org:         statsOrg,
		Window:      window,
		MembersOnly: statsMembersOnly,
		IncludeBots: statsIncludeBots,
		MaxRepos:    statsMaxRepos,
		TopN:        statsTop,
		Concurrency: concurrency,
		OnProgress:  progress.update,
		OnSkip: func(repo string, err error) {
			pterm.Warning.Printf("Skipping %s: %v\n", repo, err)
		},
	}

	a.logger.Printf("Aggregating %s for %s in %s", cmd.Name(), statsOrg, window.Key())
	result, tab, err := run(ctx, a.aggregator(), opts)
	if err != nil {
		return fmt.Errorf("failed to aggregate %s: %w", cmd.Name(), err)
	}
	progress.stop()
	return render(cmd.OutOrStdout(), outputFormat, result, tab)
}

// metaRows appends the totals below the ranking, padded to width columns.
func metaRows(m domain.ReportMeta, width int) [][]string {
	row := func(label string, n int) []string {
		r := make([]string, width)
		r[1], r[2] = label, itoa(n)
		return r
	}
	return [][]string{
		row("(other)", m.Other),
		row("(total)", m.Total),
	}
}

// progress drives a pterm progress bar from batch progress callbacks.
// Callbacks arrive one at a time, so no locking is needed.
type progress struct {
	bar *pterm.ProgressbarPrinter
}

func newProgress() *progress { return &progress{} }

func (p *progress) update(completed, total int) {
	if p.bar == nil {
		p.bar, _ = pterm.DefaultProgressbar.
			WithTotal(total).
			WithTitle(fmt.Sprintf("Processing %d repositories...", total)).
			WithRemoveWhenDone(true).
			Start()
	}
	if p.bar != nil {
		p.bar.Increment()
	}
}

func (p *progress) stop() {
	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}
}

// dateLayout is the day-granularity form accepted by --since and --until.
const dateLayout = "2006-01-02"

// parseWindow turns the --since/--until flags into a half-open window. A bare date for
// --until includes that whole day. With neither flag the current calendar year is used.
func parseWindow(since, until string, now time.Time) (domain.Window, error) {
	var w domain.Window
	if since == "" && until == "" {
		year := now.UTC().Year()
		w.Since = time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)
		w.Until = w.Since.AddDate(1, 0, 0)
		return w, nil
	}
	if since != "" {
		t, _, err := parseDate(since)
		if err != nil {
			return w, fmt.Errorf("invalid --since date: %w", err)
		}
		w.Since = t
	}
	if until != "" {
		t, dayOnly, err := parseDate(until)
		if err != nil {
			return w, fmt.Errorf("invalid --until date: %w", err)
		}
		if dayOnly {
			t = t.AddDate(0, 0, 1)
		}
		w.Until = t
	}
	if !w.Since.IsZero() && !w.Until.IsZero() && !w.Since.Before(w.Until) {
		return w, fmt.Errorf("--since must be before --until")
	}
	return w, nil
}

func parseDate(s string) (t time.Time, dayOnly bool, err error) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		return t, true, nil
	}
	t, err = time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("%q is neither YYYY-MM-DD nor RFC3339", s)
	}
	return t, false, nil
}

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.AddCommand(statsCommitsCmd, statsPullsCmd, statsIssuesCmd)

	statsCmd.PersistentFlags().StringVar(&statsOrg, "org", "", "Target GitHub organization name (required)")
	_ = statsCmd.MarkPersistentFlagRequired("org")
	statsCmd.PersistentFlags().StringVar(&statsSince, "since", "", "Start of the window, YYYY-MM-DD or RFC3339 (default: start of this year)")
	statsCmd.PersistentFlags().StringVar(&statsUntil, "until", "", "End of the window, inclusive for YYYY-MM-DD (default: end of this year)")
	statsCmd.PersistentFlags().BoolVar(&statsMembersOnly, "members-only", true, "Only count members of the organization")
	statsCmd.PersistentFlags().BoolVar(&statsIncludeBots, "include-bots", false, "Count bot accounts")
	statsCmd.PersistentFlags().IntVar(&statsMaxRepos, "max-repos", usecase.DefaultMaxRepos, "Most recently pushed repositories to scan, -1 for all")
	statsCmd.PersistentFlags().IntVar(&statsTop, "top", usecase.DefaultTopN, "Authors listed in the ranking")
}
