package commands

import (
	"fmt"
	"os"

	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/horoscope"

	"github.com/spf13/cobra"
)

var (
	extractDate *string
	extractHTML *bool
)

func init() {
	extractDate = extractCmd.Flags().String("date", "", "The date to stamp records with as YYYY-MM-DD, defaults to today.")
	extractHTML = extractCmd.Flags().Bool("html", false, "Print the rendered html of every record instead of a table.")
	rootCmd.AddCommand(extractCmd)
}

var extractCmd = &cobra.Command{
	Use:   "extract <file>",
	Short: "Parses a saved message text offline and prints the extracted records.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		text, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}

		clock, err := chrono.NewStandardImpl()
		if err != nil {
			return err
		}
		stamp := clock.Now()
		if *extractDate != "" {
			stamp, err = parseDay(*extractDate, clock.Location())
			if err != nil {
				return err
			}
		}

		extractor := horoscope.NewExtractor(telemetry.SlogAPI{}, clock)
		records := extractor.Extract(string(text), 0, stamp)
		if len(records) == 0 {
			return fmt.Errorf("no records found in %s", args[0])
		}

		if *extractHTML {
			for _, r := range records {
				fmt.Fprintf(cmd.OutOrStdout(), "<!-- %s -->\n%s\n", r.Sign.Canonical(), r.Rendered)
			}
			return nil
		}
		printRecords(cmd.OutOrStdout(), records)
		return nil
	},
}
