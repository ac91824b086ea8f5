// Package cmd contains all the CLI commands for the application,
// built using the Cobra library.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/naka-gawa/orgstats/internal/cache"
	"github.com/naka-gawa/orgstats/internal/gateway"
)

// Version is set from main and reported by --version and the User-Agent.
var Version = "dev"

// Output formats accepted by --output.
const (
	formatJSON  = "json"
	formatTable = "table"
	formatCSV   = "csv"
)

var (
	verbose      bool
	hostname     string
	outputFormat string
	cacheBackend string
	cachePath    string
	cacheDSN     string
	cacheTTL     time.Duration
	cacheSWR     time.Duration
	noCache      bool
	refresh      bool
	concurrency  int
)

var rootCmd = &cobra.Command{
	Use:   "orgstats",
	Short: "A CLI tool to aggregate GitHub organization statistics.",
	Long: `orgstats reads a GitHub organization through a cached API layer and
aggregates commits, pull requests and issues into ranked per-author statistics.

Credentials are taken from GITHUB_TOKEN, GH_TOKEN or the gh CLI, in that order.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !slices.Contains([]string{formatJSON, formatTable, formatCSV}, outputFormat) {
			return fmt.Errorf("invalid --output %q: must be one of json, table or csv", outputFormat)
		}
		if !slices.Contains([]string{cache.BackendMemory, cache.BackendSQLite, cache.BackendMySQL}, cacheBackend) {
			return fmt.Errorf("invalid --cache %q: must be one of memory, sqlite or mysql", cacheBackend)
		}
		if concurrency < 1 {
			return fmt.Errorf("invalid --concurrency %d: must be at least 1", concurrency)
		}
		// keep stdout for results
		pterm.SetDefaultOutput(cmd.ErrOrStderr())
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.Version = Version
	if err := rootCmd.Execute(); err != nil {
		printError(os.Stderr, err)
		os.Exit(1)
	}
}

// printError writes err the way every command reports failures.
func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	var rateLimited *gateway.RateLimitedError
	if errors.As(err, &rateLimited) && !rateLimited.ResetAt.IsZero() {
		fmt.Fprintf(w, "Rate limit resets at %s (in %s)\n",
			rateLimited.ResetAt.Local().Format(time.DateTime),
			time.Until(rateLimited.ResetAt).Round(time.Second))
	}
	if errors.Is(err, gateway.ErrUnauthenticated) {
		fmt.Fprintln(w, "Set GITHUB_TOKEN or run `gh auth login`.")
	}
}

func init() {
	// Add a persistent flag for verbose output, available to all commands.
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose/debug logging")
	rootCmd.PersistentFlags().StringVar(&hostname, "hostname", "github.com", "GitHub hostname, for GitHub Enterprise Server")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", formatJSON, "Output format: json, table or csv")
	rootCmd.PersistentFlags().StringVar(&cacheBackend, "cache", cache.BackendMemory, "Cache backend: memory, sqlite or mysql")
	rootCmd.PersistentFlags().StringVar(&cachePath, "cache-path", cache.DefaultPath(), "sqlite cache file")
	rootCmd.PersistentFlags().StringVar(&cacheDSN, "cache-dsn", "", "mysql cache data source name")
	rootCmd.PersistentFlags().DurationVar(&cacheTTL, "cache-ttl", 0, "Override the per-resource cache TTL")
	rootCmd.PersistentFlags().DurationVar(&cacheSWR, "cache-swr", 0, "Serve expired entries this long while revalidating in the background")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false, "Bypass the cache entirely")
	rootCmd.PersistentFlags().BoolVar(&refresh, "refresh", false, "Revalidate cached entries before using them")
	rootCmd.PersistentFlags().IntVar(&concurrency, "concurrency", 10, "Repositories processed in parallel")
}
