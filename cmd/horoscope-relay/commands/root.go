package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"horoscope-relay/internal/components/telemetry"
	libtelemetry "horoscope-relay/lib/telemetry"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	verbose    *bool

	providers libtelemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "horoscope-relay",
	Short: "horoscope-relay scrapes daily horoscopes from telegram and publishes them to wordpress.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(*verbose)

		var err error
		providers, err = libtelemetry.SetupFromEnv(cmd.Context(), "horoscope-relay")
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		return nil
	},
	SilenceUsage: true,
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "config.json5", "The configuration file, <name>.local.json5 is merged on top.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug reports and dump http exchanges.")
}

// execute runs cmd and then calls shutdown, also when the command failed.
func execute(ctx context.Context, cmd *cobra.Command, shutdown func(context.Context) error) error {
	err := cmd.ExecuteContext(ctx)
	if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
		slog.Warn("failed to flush telemetry", "err", shutdownErr)
	}
	return err
}

func ExecuteContext(ctx context.Context) {
	err := execute(ctx, rootCmd, func(ctx context.Context) error {
		return providers.Shutdown(ctx)
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
