package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs one import over the configured sources.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, _, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer application.Close()

		summary, err := application.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "imported %d rows from %d units (%d duplicates, %d failed, %d discarded)\n",
			summary.Imported, summary.Units, summary.Duplicates, summary.Failed, summary.Discarded)
		return nil
	},
}
