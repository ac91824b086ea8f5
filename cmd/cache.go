package cmd

import (
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspects or clears the response cache",
	Long: `Inspects or clears the response cache. Only the sqlite and mysql backends
outlive a single command, so these are most useful with --cache sqlite or mysql.`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Shows hit, miss and entry counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.gateway.CacheStats(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), outputFormat, stats, func() tabular {
			return tabular{
				header: []string{"hits", "misses", "entries"},
				rows:   [][]string{{itoa(int(stats.Hits)), itoa(int(stats.Misses)), itoa(int(stats.Entries))}},
			}
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Removes every cached response and ETag",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.gateway.ClearCache(cmd.Context()); err != nil {
			return err
		}
		pterm.Success.Println("Cache cleared")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheStatsCmd, cacheClearCmd)
}
