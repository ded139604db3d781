package commands

import (
	"fmt"
	"time"

	"horoscope-relay/internal/horoscope"
	"horoscope-relay/internal/store"
	"horoscope-relay/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var statusDate *string

func init() {
	statusDate = statusCmd.Flags().String("date", "", "The day to list publications of as YYYY-MM-DD, defaults to today.")
	rootCmd.AddCommand(statusCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status [--date YYYY-MM-DD]",
	Short: "Shows the last successful scheduled run and what was published on a day.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := openApp()
		if err != nil {
			serviceutil.Fatal("failed to initialize relay", err)
		}
		defer app.Close()

		day := app.clock.Now()
		if *statusDate != "" {
			day, err = parseDay(*statusDate, app.clock.Location())
			if err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		if last, ok := app.status.LastSuccess(); ok {
			fmt.Fprintf(out, "last successful scheduled run: %s\n", last.Format(time.DateOnly))
		} else {
			fmt.Fprintf(out, "no successful scheduled run recorded in %s\n", app.status.Path())
		}
		if latest, err := app.backups.Latest(); err == nil {
			fmt.Fprintf(out, "latest backup: %s\n", latest)
		}

		date := day.Format(time.DateOnly)
		publications, err := app.ledger.ListDate(cmd.Context(), date)
		if err != nil {
			return err
		}
		bySign := make(map[horoscope.Sign]store.Publication, len(publications))
		for _, p := range publications {
			bySign[p.Sign] = p
		}

		t := newTable(out)
		t.SetTitle("publications on " + date)
		t.AppendHeader(table.Row{"sign", "post", "link", "published at"})
		for _, sign := range horoscope.Signs() {
			p, ok := bySign[sign]
			if !ok {
				t.AppendRow(table.Row{sign.Local(), "-", "-", "-"})
				continue
			}
			t.AppendRow(table.Row{
				sign.Local(), p.PostID, p.Link,
				p.PublishedAt.In(app.clock.Location()).Format(time.DateTime),
			})
		}
		t.SetCaption("%d/%d signs published", len(publications), len(horoscope.Signs()))
		t.Render()
		return nil
	},
}
