package horoscope

import (
	"time"
)

// Scores are the per-domain percentages printed at the end of a sign's
// segment. Health is optional, not every channel publishes it.
type Scores struct {
	Professional int
	Financial    int
	Emotional    int
	Health       *int
}

// Record is one sign's forecast for one day.
type Record struct {
	Sign Sign
	// Date is midnight of the forecast's calendar day in Asia/Baghdad.
	Date time.Time
	Body string

	Professional int
	Financial    int
	Emotional    int
	Health       *int

	MessageID int

	// Rendered is derived from the other fields by Refresh, it is never read
	// back as a source of truth.
	Rendered string
}

// NewRecord builds a record and renders it.
func NewRecord(sign Sign, date time.Time, body string, scores Scores, messageID int) Record {
	r := Record{
		Sign:         sign,
		Date:         date,
		Body:         body,
		Professional: scores.Professional,
		Financial:    scores.Financial,
		Emotional:    scores.Emotional,
		Health:       scores.Health,
		MessageID:    messageID,
	}
	r.Refresh()
	return r
}

// Refresh recomputes Rendered, it must be called after any field changes.
func (r *Record) Refresh() {
	r.Rendered = Render(*r)
}

func (r Record) Scores() Scores {
	return Scores{
		Professional: r.Professional,
		Financial:    r.Financial,
		Emotional:    r.Emotional,
		Health:       r.Health,
	}
}

// DateString is the record's date as YYYY-MM-DD.
func (r Record) DateString() string {
	return r.Date.Format(time.DateOnly)
}

// Newer reports whether r supersedes other: same sign and a later date.
func (r Record) Newer(other Record) bool {
	return r.Sign == other.Sign && r.Date.After(other.Date)
}
