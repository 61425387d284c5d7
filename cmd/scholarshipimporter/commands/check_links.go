package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(checkLinksCmd)
}

var checkLinksCmd = &cobra.Command{
	Use:   "check-links",
	Short: "Fetches every link in the output table and reports whether it loads.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, _, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer application.Close()

		statuses, err := application.CheckLinks(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ROW\tURL\tSTATUS")
		for _, s := range statuses {
			fmt.Fprintf(w, "%d\t%s\t%s\n", s.Row, s.URL, s.Status)
		}
		return w.Flush()
	},
}
