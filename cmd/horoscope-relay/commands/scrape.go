package commands

import (
	"fmt"
	"log/slog"
	"time"

	"horoscope-relay/internal/relay"
	"horoscope-relay/lib/serviceutil"

	"github.com/spf13/cobra"
)

var scrapeDate *string

func init() {
	scrapeDate = scrapeCmd.Flags().String("date", "", "The day to scrape as YYYY-MM-DD, defaults to today in Asia/Baghdad.")
	addPolicyFlags(scrapeCmd)
	rootCmd.AddCommand(scrapeCmd)
}

func addPolicyFlags(cmd *cobra.Command) {
	cmd.Flags().Int("retries", 0, "The number of attempts before giving up, defaults to relay.retries.")
	cmd.Flags().Duration("wait", 0, "The wait between failed attempts, defaults to relay.retry_wait.")
}

// policyFromFlags overrides the configured retry policy with the flags the
// user actually set.
func policyFromFlags(cmd *cobra.Command, policy relay.RetryPolicy) (relay.RetryPolicy, error) {
	flags := cmd.Flags()
	if flags.Changed("retries") {
		retries, err := flags.GetInt("retries")
		if err != nil {
			return policy, err
		}
		if retries <= 0 {
			return policy, fmt.Errorf("--retries must be positive")
		}
		policy.Attempts = retries
	}
	if flags.Changed("wait") {
		wait, err := flags.GetDuration("wait")
		if err != nil {
			return policy, err
		}
		if wait < 0 {
			return policy, fmt.Errorf("--wait must not be negative")
		}
		policy.Wait = wait
	}
	return policy, nil
}

// parseDay parses a YYYY-MM-DD day in loc.
func parseDay(value string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation(time.DateOnly, value, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return day, nil
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--date YYYY-MM-DD] [--retries N] [--wait D]",
	Short: "Scrapes one day of the configured channels and publishes what it finds.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			serviceutil.Fatal("failed to initialize relay", err)
		}
		defer app.Close()

		day := app.clock.Now()
		if *scrapeDate != "" {
			day, err = parseDay(*scrapeDate, app.clock.Location())
			if err != nil {
				return err
			}
		}

		policy, err := policyFromFlags(cmd, app.defaultPolicy())
		if err != nil {
			return err
		}

		slog.Info(
			"scraping",
			"date", day.Format(time.DateOnly),
			"channels", app.cfg.Telegram.Channels,
			"attempts", policy.Attempts,
		)
		outcome, err := app.orchestrator.ScrapeDay(cmd.Context(), day, policy)
		printOutcome(cmd.OutOrStdout(), outcome)
		return err
	},
}
