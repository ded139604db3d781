package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/config"

	"github.com/spf13/cobra"
	input "github.com/tcnksm/go-input"
)

func init() {
	rootCmd.AddCommand(loginCmd)
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Logs into telegram interactively and writes the session file used by scrape and serve.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return err
		}

		err = os.MkdirAll(filepath.Dir(cfg.Telegram.SessionFile), 0700)
		if err != nil {
			return err
		}
		client, err := newTelegramClient(cfg, telemetry.SlogAPI{})
		if err != nil {
			return err
		}

		err = client.Login(cmd.Context(), input.DefaultUI())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "session saved to %s\n", cfg.Telegram.SessionFile)
		return nil
	},
}
