package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"ScholarshipImporter/internal/config"
)

var extractSubject string

func init() {
	extractCmd.Flags().StringVar(&extractSubject, "subject", "", "Subject line used for format hint selection.")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Extracts records from a single .eml, HTML or text file and prints them as JSON without storing anything.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		application, _, err := openApp(cmd.Context(), func(cfg *config.Config) {
			cfg.Storage.Driver = "memory"
		})
		if err != nil {
			return err
		}
		defer application.Close()

		records, err := application.Extract(cmd.Context(), args[0], extractSubject)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}
