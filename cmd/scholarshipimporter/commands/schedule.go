package commands

import (
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Runs imports on scheduler.cronExpression until interrupted.",
	RunE: func(cmd *cobra.Command, args []string) error {
		application, logger, err := openApp(cmd.Context(), nil)
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.Schedule(cmd.Context()); err != nil {
			return err
		}
		logger.Info("scheduler stopped")
		return nil
	},
}
