package commands

import (
	"log/slog"

	"horoscope-relay/lib/serviceutil"

	"github.com/spf13/cobra"
)

var (
	republishFile  *string
	republishForce *bool
)

func init() {
	republishFile = republishCmd.Flags().String("file", "", "The backup snapshot to publish from, defaults to the newest one.")
	republishForce = republishCmd.Flags().Bool("force", false, "Publish records even if they were already posted.")
	rootCmd.AddCommand(republishCmd)
}

var republishCmd = &cobra.Command{
	Use:   "republish [--file <backup.json>] [--force]",
	Short: "Publishes the latest record of every sign found in a backup snapshot.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			serviceutil.Fatal("failed to initialize relay", err)
		}
		defer app.Close()

		result, err := app.orchestrator.Republish(cmd.Context(), *republishFile, *republishForce)
		if result.Backup != "" {
			slog.Info(
				"republished backup",
				"backup", result.Backup,
				"records", len(result.Records),
				"published", result.Tally.Published,
				"already", result.Tally.Already,
				"failed", result.Tally.Failed,
			)
		}
		if len(result.Records) > 0 {
			printRecords(cmd.OutOrStdout(), result.Records)
		}
		return err
	},
}
