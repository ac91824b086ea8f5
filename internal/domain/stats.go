// Package domain contains the core data structures and domain logic for the application.
package domain

import "time"

// Window is the half-open time range [Since, Until) a statistics run covers.
// A zero bound leaves that side of the window open.
type Window struct {
	Since time.Time `json:"since"`
	Until time.Time `json:"until"`
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if !w.Since.IsZero() && t.Before(w.Since) {
		return false
	}
	if !w.Until.IsZero() && !t.Before(w.Until) {
		return false
	}
	return true
}

// Key renders the window as a stable string for cache keys.
func (w Window) Key() string {
	since, until := "all", "now"
	if !w.Since.IsZero() {
		since = w.Since.UTC().Format(time.RFC3339)
	}
	if !w.Until.IsZero() {
		until = w.Until.UTC().Format(time.RFC3339)
	}
	return since + ":" + until
}

// CommitStat holds the number of commits attributed to one author.
type CommitStat struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
}

// PullRequestStat holds the pull requests opened by one author and how many were merged.
type PullRequestStat struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
	Merged int    `json:"merged"`
}

// IssueStat holds the issues opened by one author, split by current state.
type IssueStat struct {
	Author string `json:"author"`
	Count  int    `json:"count"`
	Open   int    `json:"open"`
	Closed int    `json:"closed"`
}

// Summary describes the distribution of per-author counts.
type Summary struct {
	Mean         float64 `json:"mean"`
	Median       float64 `json:"median"`
	// Percentile90 interpolates between the two closest ranks, so it need not be an observed count.
	Percentile90 float64 `json:"p90"`
}

// ReportMeta is shared by every statistics report.
type ReportMeta struct {
	Org          string  `json:"org"`
	Window       Window  `json:"window"`
	Total        int     `json:"total"`
	Other        int     `json:"other"`
	Contributors int     `json:"contributors"`
	ReposScanned int     `json:"repos_scanned"`
	ReposSkipped int     `json:"repos_skipped"`
	Summary      Summary `json:"summary"`
}

// CommitReport is the ranked result of a commit aggregation.
type CommitReport struct {
	ReportMeta
	Top []CommitStat `json:"top"`
}

// PullRequestReport is the ranked result of a pull request aggregation.
type PullRequestReport struct {
	ReportMeta
	Merged int               `json:"merged"`
	Top    []PullRequestStat `json:"top"`
}

// IssueReport is the ranked result of an issue aggregation.
type IssueReport struct {
	ReportMeta
	Open   int         `json:"open"`
	Closed int         `json:"closed"`
	Top    []IssueStat `json:"top"`
}
