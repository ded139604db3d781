package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"horoscope-relay/internal/horoscope"
	"horoscope-relay/internal/relay"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	return t
}

func printOutcome(out io.Writer, outcome relay.Outcome) {
	if outcome.Skipped {
		fmt.Fprintln(out, "already succeeded today, nothing to do")
		return
	}

	t := newTable(out)
	t.SetTitle("run %s: %s after %d attempt(s)", outcome.RunID, outcome.State, outcome.Attempts)
	t.AppendHeader(table.Row{"channel", "messages", "records", "published", "already", "failed", "stop"})
	for _, c := range outcome.Channels {
		stop := string(c.Stop)
		if c.Err != nil {
			stop = c.Err.Error()
		}
		t.AppendRow(table.Row{
			c.Handle, c.Processed, len(c.Records),
			c.Tally.Published, c.Tally.Already, c.Tally.Failed,
			stop,
		})
	}
	t.AppendFooter(table.Row{
		"total", "", "",
		outcome.Tally.Published, outcome.Tally.Already, outcome.Tally.Failed,
		outcome.Finished.Sub(outcome.Started).Round(time.Second).String(),
	})
	if outcome.Backup != "" {
		t.SetCaption("backup: %s", outcome.Backup)
	}
	t.Render()
}

func optionalScore(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func printRecords(out io.Writer, records []horoscope.Record) {
	t := newTable(out)
	t.AppendHeader(table.Row{"sign", "date", "professional", "financial", "emotional", "health", "message", "body"})
	for _, r := range records {
		body := []rune(strings.Join(strings.Fields(r.Body), " "))
		if len(body) > 40 {
			body = append(body[:40], '…')
		}
		t.AppendRow(table.Row{
			fmt.Sprintf("%s %s", r.Sign.Local(), r.Sign.Glyph()),
			r.DateString(),
			r.Professional, r.Financial, r.Emotional, optionalScore(r.Health),
			r.MessageID,
			string(body),
		})
	}
	t.SetCaption("%d record(s)", len(records))
	t.Render()
}
