package cmd

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/naka-gawa/orgstats/internal/domain"
	"github.com/naka-gawa/orgstats/internal/gateway"
)

func TestRender(t *testing.T) {
	stats := []domain.CommitStat{{Author: "alice", Count: 5}, {Author: "bob, jr", Count: 3}}
	tab := func() tabular {
		t := tabular{header: []string{"author", "commits"}}
		for _, s := range stats {
			t.rows = append(t.rows, []string{s.Author, itoa(s.Count)})
		}
		return t
	}

	testCases := []struct {
		name     string
		format   string
		expected []string
	}{
		{name: "json", format: formatJSON, expected: []string{"[\n  {\n    \"author\": \"alice\",\n    \"count\": 5\n  },"}},
		{name: "csv quotes fields", format: formatCSV, expected: []string{"author,commits\nalice,5\n\"bob, jr\",3\n"}},
		{name: "table", format: formatTable, expected: []string{"author", "commits", "alice", "bob, jr"}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, render(&buf, tc.format, stats, tab))
			for _, want := range tc.expected {
				assert.Contains(t, buf.String(), want)
			}
		})
	}
}

func TestPrintError(t *testing.T) {
	t.Run("rate limited", func(t *testing.T) {
		var buf bytes.Buffer
		reset := time.Now().Add(10 * time.Minute)
		printError(&buf, fmt.Errorf("failed to list members: %w", &gateway.RateLimitedError{ResetAt: reset}))
		assert.Contains(t, buf.String(), "Error: failed to list members")
		assert.Contains(t, buf.String(), "Rate limit resets at "+reset.Local().Format(time.DateTime))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, gateway.ErrUnauthenticated)
		assert.Contains(t, buf.String(), "gh auth login")
	})

	t.Run("plain", func(t *testing.T) {
		var buf bytes.Buffer
		printError(&buf, fmt.Errorf("boom"))
		assert.Equal(t, "Error: boom\n", buf.String())
	})
}
