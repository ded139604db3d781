package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/horoscope"
	"horoscope-relay/internal/store"
	"horoscope-relay/internal/wordpress"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_scraper_resolve  = "scraper.resolve"
	report_scraper_history  = "scraper.history"
	report_scraper_publish  = "scraper.publish"
	report_scraper_ledger   = "scraper.ledger"
	report_scraper_progress = "scraper.progress"

	// count ids, suffixed with the channel handle
	report_scraper_published = "scraper.published"
	report_scraper_failed    = "scraper.failed"
)

// Publisher publishes a single record.
//
// note: fault injection point
type Publisher interface {
	Publish(ctx context.Context, r horoscope.Record) (wordpress.Post, error)
}

// Ledger remembers published records.
//
// note: fault injection point
type Ledger interface {
	Get(ctx context.Context, sign horoscope.Sign, date string) (store.Publication, bool, error)
	Put(ctx context.Context, p store.Publication) error
}

type ScrapeOptions struct {
	// MaxMessages stops a channel after this many processed messages.
	MaxMessages int
	// TimeLimit stops a channel once this much time has passed.
	TimeLimit time.Duration
	// PublishDelay is waited after every publish attempt.
	PublishDelay time.Duration
}

func (o ScrapeOptions) withDefaults() ScrapeOptions {
	if o.MaxMessages <= 0 {
		o.MaxMessages = 1_000_000
	}
	if o.TimeLimit <= 0 {
		o.TimeLimit = 6 * time.Hour
	}
	if o.PublishDelay < 0 {
		o.PublishDelay = 0
	}
	return o
}

type StopReason string

const (
	StopExhausted   StopReason = "history exhausted"
	StopOlder       StopReason = "reached messages before window"
	StopMaxMessages StopReason = "message limit"
	StopTimeLimit   StopReason = "time limit"
	StopCancelled   StopReason = "cancelled"
	StopError       StopReason = "error"
)

// Tally counts the outcome of publish attempts.
type Tally struct {
	Published int
	// Already counts records skipped because the ledger has them.
	Already int
	Failed  int
}

func (t *Tally) add(o Tally) {
	t.Published += o.Published
	t.Already += o.Already
	t.Failed += o.Failed
}

// Delivered is the number of records that are live on the site.
func (t Tally) Delivered() int {
	return t.Published + t.Already
}

type ChannelResult struct {
	Handle    string
	Resolved  bool
	Processed int
	Records   []horoscope.Record
	Tally     Tally
	Stop      StopReason
	// Err is set when reading the channel failed midway.
	Err error
}

// Scraper reads one channel at a time, extracting and publishing records
// as it goes.
type Scraper struct {
	extractor horoscope.Extractor
	publisher Publisher
	ledger    Ledger
	clock     chrono.API
	tel       telemetry.API
	tracer    trace.Tracer
	metrics   metrics
	opts      ScrapeOptions
}

type ScraperDeps struct {
	Extractor horoscope.Extractor
	Publisher Publisher
	Ledger    Ledger
	Clock     chrono.API
	Tel       telemetry.API
}

func NewScraper(deps ScraperDeps, opts ScrapeOptions) Scraper {
	assert.NotNil(deps.Publisher)
	assert.NotNil(deps.Ledger)
	assert.NotNil(deps.Clock)
	assert.NotNil(deps.Tel)

	return Scraper{
		extractor: deps.Extractor,
		publisher: deps.Publisher,
		ledger:    deps.Ledger,
		clock:     deps.Clock,
		tel:       telemetry.NewScopedAPI("relay", deps.Tel),
		tracer:    newTracer(),
		metrics:   newMetrics(),
		opts:      opts.withDefaults(),
	}
}

// ScrapeChannel processes every message of the channel inside window,
// newest first.
func (s Scraper) ScrapeChannel(ctx context.Context, reader ChannelReader, handle string, window Window) ChannelResult {
	ctx, span := s.tracer.Start(ctx, "scrape channel", trace.WithAttributes(attribute.String("channel", handle)))
	defer span.End()

	result := ChannelResult{Handle: handle, Stop: StopExhausted}

	channel, err := reader.Resolve(ctx, handle)
	if err != nil {
		s.tel.ReportWarning(report_scraper_resolve, err, "channel", handle)
		span.SetStatus(codes.Error, "resolve failed")
		return result
	}
	result.Resolved = true

	loc := s.clock.Location()
	started := s.clock.Now()

	err = reader.History(ctx, channel, func(msg Message) bool {
		if result.Processed >= s.opts.MaxMessages {
			result.Stop = StopMaxMessages
			return false
		}
		if s.clock.Now().Sub(started) > s.opts.TimeLimit {
			result.Stop = StopTimeLimit
			return false
		}
		sent := msg.Time.In(loc)
		if sent.Before(window.Start) {
			result.Stop = StopOlder
			return false
		}
		if !window.Contains(sent) || strings.TrimSpace(msg.Text) == "" {
			return true
		}

		result.Processed++
		records := s.extractor.Extract(horoscope.StripUnsupported(msg.Text), msg.ID, msg.Time)
		result.Records = append(result.Records, records...)

		tally, err := s.PublishRecords(ctx, records, false)
		result.Tally.add(tally)
		if err != nil {
			result.Stop = StopCancelled
			return false
		}

		if result.Processed%10 == 0 {
			s.tel.ReportDebug(
				report_scraper_progress,
				"channel", handle,
				"processed", result.Processed,
				"records", len(result.Records),
				"published", result.Tally.Published,
			)
		}
		return true
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result.Stop = StopCancelled
		} else {
			result.Stop = StopError
			s.tel.ReportBroken(report_scraper_history, fmt.Errorf("%s: %w", handle, err))
		}
		result.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "history failed")
	}

	span.SetAttributes(
		attribute.Int("processed", result.Processed),
		attribute.Int("records", len(result.Records)),
		attribute.Int("published", result.Tally.Published),
		attribute.Int("failed", result.Tally.Failed),
		attribute.String("stop", string(result.Stop)),
	)
	s.tel.ReportDebug(
		"channel done",
		"channel", handle,
		"processed", result.Processed,
		"records", len(result.Records),
		"published", result.Tally.Published,
		"already", result.Tally.Already,
		"failed", result.Tally.Failed,
		"stop", result.Stop,
	)
	s.tel.ReportCount(report_scraper_published+"."+handle, int64(result.Tally.Published))
	s.tel.ReportCount(report_scraper_failed+"."+handle, int64(result.Tally.Failed))
	return result
}

// PublishRecords publishes records one by one, waiting the publish delay
// after each attempt. Records already in the ledger are skipped unless
// force is set. A failed record never stops the others, only cancellation
// of ctx does, in which case the context error is returned.
func (s Scraper) PublishRecords(ctx context.Context, records []horoscope.Record, force bool) (Tally, error) {
	var tally Tally
	for _, r := range records {
		if err := ctx.Err(); err != nil {
			return tally, err
		}

		if !force {
			_, found, err := s.ledger.Get(ctx, r.Sign, r.DateString())
			if err != nil {
				s.tel.ReportBroken(report_scraper_ledger, err)
			}
			if found {
				s.tel.ReportDebug("already published", "sign", r.Sign.Canonical(), "date", r.DateString())
				tally.Already++
				continue
			}
		}

		if s.publishOne(ctx, r) {
			tally.Published++
		} else {
			tally.Failed++
		}

		if err := s.clock.Sleep(ctx, s.opts.PublishDelay); err != nil {
			return tally, err
		}
	}
	return tally, nil
}

func (s Scraper) publishOne(ctx context.Context, r horoscope.Record) bool {
	ctx, span := s.tracer.Start(ctx, "publish", trace.WithAttributes(
		attribute.String("sign", r.Sign.Canonical()),
		attribute.String("date", r.DateString()),
	))
	defer span.End()

	post, err := s.publisher.Publish(ctx, r)
	if err != nil {
		s.tel.ReportWarning(report_scraper_publish, err, "sign", r.Sign.Canonical())
		s.metrics.failed(ctx, r.Sign)
		span.RecordError(err)
		span.SetStatus(codes.Error, "publish failed")
		return false
	}
	s.metrics.published(ctx, r.Sign)

	err = s.ledger.Put(ctx, store.Publication{
		Sign:        r.Sign,
		Date:        r.DateString(),
		PostID:      post.ID,
		Link:        post.Link,
		MessageID:   r.MessageID,
		PublishedAt: s.clock.Now(),
	})
	if err != nil {
		s.tel.ReportBroken(report_scraper_ledger, err)
	}
	s.tel.ReportDebug("published", "sign", r.Sign.Canonical(), "date", r.DateString(), "post", post.ID, "link", post.Link)
	return true
}
