package cmd

import (
	"github.com/spf13/cobra"
)

var rateLimitCmd = &cobra.Command{
	Use:   "ratelimit",
	Short: "Shows the remaining API quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		limits, err := a.gateway.RateLimit(cmd.Context())
		if err != nil {
			return err
		}
		return render(cmd.OutOrStdout(), outputFormat, limits, func() tabular {
			t := tabular{header: []string{"resource", "limit", "remaining", "used", "reset"}}
			for _, l := range limits {
				t.rows = append(t.rows, []string{l.Resource, itoa(l.Limit), itoa(l.Remaining), itoa(l.Used), formatTime(l.Reset)})
			}
			return t
		})
	},
}

func init() {
	rootCmd.AddCommand(rateLimitCmd)
}
