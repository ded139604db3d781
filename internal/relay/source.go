package relay

import (
	"context"
	"errors"
	"time"
)

var ErrChannelNotFound = errors.New("channel not found")

// Message is a channel post as seen by the scraper.
type Message struct {
	ID   int
	Text string
	Time time.Time
}

// Channel is a resolved channel. Ref is owned by the reader that resolved it.
type Channel struct {
	Handle string
	Title  string
	Ref    any
}

// ChannelReader reads channel history during a session.
//
// note: fault injection point
type ChannelReader interface {
	// Resolve looks up a channel by its public handle, returning an error
	// wrapping ErrChannelNotFound if there is no such channel.
	Resolve(ctx context.Context, handle string) (Channel, error)
	// History calls visit with every message of channel, newest first, until
	// visit returns false or the history is exhausted.
	History(ctx context.Context, channel Channel, visit func(Message) bool) error
}

// Source opens a session with the messaging service, passes a reader to fn
// and closes the session once fn returns.
//
// note: fault injection point
type Source interface {
	Session(ctx context.Context, fn func(ctx context.Context, reader ChannelReader) error) error
}

// Window is the half open time range (Start, End] of messages to process.
type Window struct {
	Start time.Time
	End   time.Time
}

// DayWindow is the window covering the calendar day of t in loc.
func DayWindow(t time.Time, loc *time.Location) Window {
	t = t.In(loc)
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
	return Window{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether t lies in (Start, End].
func (w Window) Contains(t time.Time) bool {
	return t.After(w.Start) && !t.After(w.End)
}
