package cmd

import (
	"github.com/spf13/cobra"

	"github.com/naka-gawa/orgstats/internal/domain"
)

// authStatus is what `auth status` reports.
type authStatus struct {
	Hostname string        `json:"hostname"`
	Method   string        `json:"method"`
	Viewer   domain.Viewer `json:"viewer"`
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Inspects the credentials in use",
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Shows which credential source is used and the account it belongs to",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		viewer, err := a.gateway.Viewer(cmd.Context())
		if err != nil {
			return err
		}
		status := authStatus{Hostname: hostname, Method: a.tokens.Method(), Viewer: viewer}
		return render(cmd.OutOrStdout(), outputFormat, status, func() tabular {
			return tabular{
				header: []string{"hostname", "method", "login", "name"},
				rows:   [][]string{{status.Hostname, status.Method, viewer.Login, viewer.Name}},
			}
		})
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)
}
