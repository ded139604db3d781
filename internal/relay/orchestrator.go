package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"horoscope-relay/internal/components/assert"
	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/horoscope"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_orchestrator_attempt   = "orchestrator.attempt"
	report_orchestrator_exhausted = "orchestrator.exhausted"
	report_orchestrator_status    = "orchestrator.status"
	report_orchestrator_republish = "orchestrator.republish"
	report_orchestrator_backup    = "orchestrator.backup"
)

var (
	// ErrBusy is returned to non-waiting callers while another run holds
	// the orchestrator.
	ErrBusy = errors.New("a run is already in progress")
	// ErrExhausted is returned when every attempt of a run failed.
	ErrExhausted = errors.New("all attempts failed")
	// ErrNothingPublished is returned by an attempt that delivered no record.
	ErrNothingPublished = errors.New("no records were published")
)

type State string

const (
	StateIdle            State = "idle"
	StateScraping        State = "scraping"
	StateSucceeded       State = "succeeded"
	StateFailedRetrying  State = "failed_retrying"
	StateExhaustedFailed State = "exhausted_failed"
)

// RetryPolicy is a fixed number of attempts separated by a constant wait.
type RetryPolicy struct {
	Attempts int
	Wait     time.Duration
}

// DefaultSlots are the three daily scheduled runs.
var DefaultSlots = map[int]RetryPolicy{
	1: {Attempts: 2, Wait: time.Hour},
	2: {Attempts: 3, Wait: 45 * time.Minute},
	3: {Attempts: 4, Wait: 30 * time.Minute},
}

type Outcome struct {
	RunID    string
	State    State
	Attempts int
	// Skipped is set when a scheduled run found today already done.
	Skipped  bool
	Tally    Tally
	Channels []ChannelResult
	// Backup is the snapshot of the records extracted by the last attempt.
	Backup   string
	Started  time.Time
	Finished time.Time
}

// StatusStore persists the date of the last successful scheduled run.
//
// note: fault injection point
type StatusStore interface {
	LastSuccess() (time.Time, bool)
	SetLastSuccess(date time.Time) error
}

// Backups stores snapshots of extracted records.
type Backups interface {
	Save(records []horoscope.Record, at time.Time) (string, error)
	Load(name string) ([]horoscope.Record, error)
	Latest() (string, error)
}

// Snapshot is what the orchestrator reports about itself.
type Snapshot struct {
	State       State
	LastSuccess string
	LastOutcome *Outcome
}

type runState struct {
	mu          sync.Mutex
	state       State
	lastOutcome *Outcome
}

// Orchestrator runs scrape and publish attempts. Only one run is active
// at any time.
type Orchestrator struct {
	source   Source
	scraper  Scraper
	status   StatusStore
	backups  Backups
	clock    chrono.API
	tel      telemetry.API
	tracer   trace.Tracer
	metrics  metrics
	channels []string
	slots    map[int]RetryPolicy

	run    *sync.Mutex
	state  *runState
	noWait bool
}

type OrchestratorDeps struct {
	Source  Source
	Scraper Scraper
	Status  StatusStore
	Backups Backups
	Clock   chrono.API
	Tel     telemetry.API
}

type OrchestratorOptions struct {
	Channels []string
	// Slots overrides DefaultSlots when set.
	Slots map[int]RetryPolicy
}

func NewOrchestrator(deps OrchestratorDeps, opts OrchestratorOptions) *Orchestrator {
	assert.NotNil(deps.Source)
	assert.NotNil(deps.Status)
	assert.NotNil(deps.Backups)
	assert.NotNil(deps.Clock)
	assert.NotNil(deps.Tel)

	slots := opts.Slots
	if len(slots) == 0 {
		slots = DefaultSlots
	}
	return &Orchestrator{
		source:   deps.Source,
		scraper:  deps.Scraper,
		status:   deps.Status,
		backups:  deps.Backups,
		clock:    deps.Clock,
		tel:      telemetry.NewScopedAPI("relay", deps.Tel),
		tracer:   newTracer(),
		metrics:  newMetrics(),
		channels: opts.Channels,
		slots:    slots,
		run:      &sync.Mutex{},
		state:    &runState{state: StateIdle},
	}
}

// NoWait returns a view of the orchestrator whose runs fail with ErrBusy
// instead of waiting for the active run to finish.
func (o *Orchestrator) NoWait() *Orchestrator {
	view := *o
	view.noWait = true
	return &view
}

func (o *Orchestrator) acquire() (func(), error) {
	if o.noWait {
		if !o.run.TryLock() {
			return nil, ErrBusy
		}
	} else {
		o.run.Lock()
	}
	return o.run.Unlock, nil
}

func (o *Orchestrator) setState(state State) {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	o.state.state = state
}

func (o *Orchestrator) finish(outcome Outcome) {
	o.state.mu.Lock()
	defer o.state.mu.Unlock()
	o.state.state = StateIdle
	o.state.lastOutcome = &outcome
}

// Snapshot returns the current state without waiting for a run.
func (o *Orchestrator) Snapshot() Snapshot {
	o.state.mu.Lock()
	snapshot := Snapshot{
		State:       o.state.state,
		LastOutcome: o.state.lastOutcome,
	}
	o.state.mu.Unlock()

	if date, ok := o.status.LastSuccess(); ok {
		snapshot.LastSuccess = date.Format(time.DateOnly)
	}
	return snapshot
}

// RunWithRetry scrapes today's window with up to policy.Attempts attempts.
func (o *Orchestrator) RunWithRetry(ctx context.Context, policy RetryPolicy) (Outcome, error) {
	return o.ScrapeDay(ctx, o.clock.Now(), policy)
}

// ScrapeDay scrapes the calendar day of day (in the clock's location) with
// up to policy.Attempts attempts, waiting policy.Wait between failures.
func (o *Orchestrator) ScrapeDay(ctx context.Context, day time.Time, policy RetryPolicy) (Outcome, error) {
	release, err := o.acquire()
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	return o.runWithRetry(ctx, DayWindow(day, o.clock.Location()), policy)
}

func (o *Orchestrator) runWithRetry(ctx context.Context, window Window, policy RetryPolicy) (Outcome, error) {
	if policy.Attempts <= 0 {
		policy.Attempts = 1
	}

	outcome := Outcome{
		RunID:   uuid.NewString(),
		State:   StateScraping,
		Started: o.clock.Now(),
	}
	ctx, span := o.tracer.Start(ctx, "run", trace.WithAttributes(
		attribute.String("run_id", outcome.RunID),
		attribute.String("window_start", window.Start.Format(time.RFC3339)),
		attribute.Int("max_attempts", policy.Attempts),
	))
	defer span.End()

	o.tel.ReportDebug(
		"run started",
		"run", outcome.RunID,
		"window", window.Start.Format(time.DateOnly),
		"attempts", policy.Attempts,
		"wait", policy.Wait,
	)

	var lastErr error
	for attempt := 1; attempt <= policy.Attempts; attempt++ {
		o.setState(StateScraping)
		outcome.Attempts = attempt

		channels, tally, backup, err := o.attempt(ctx, window)
		outcome.Channels = channels
		if backup != "" {
			outcome.Backup = backup
		}
		outcome.Tally.add(tally)
		o.metrics.attempt(ctx, err == nil)

		if err == nil {
			outcome.State = StateSucceeded
			outcome.Finished = o.clock.Now()
			o.finish(outcome)
			o.tel.ReportDebug(
				"run succeeded",
				"run", outcome.RunID,
				"attempt", attempt,
				"published", outcome.Tally.Published,
				"already", outcome.Tally.Already,
			)
			return outcome, nil
		}
		lastErr = err
		o.tel.ReportWarning(
			report_orchestrator_attempt,
			fmt.Errorf("attempt %d/%d: %w", attempt, policy.Attempts, err),
			"run", outcome.RunID,
		)

		if ctx.Err() != nil || attempt == policy.Attempts {
			break
		}

		outcome.State = StateFailedRetrying
		o.setState(StateFailedRetrying)
		if err := o.clock.Sleep(ctx, policy.Wait); err != nil {
			lastErr = err
			break
		}
	}

	outcome.State = StateExhaustedFailed
	outcome.Finished = o.clock.Now()
	o.finish(outcome)
	span.SetStatus(codes.Error, "exhausted")
	o.tel.ReportWarning(
		report_orchestrator_exhausted,
		fmt.Errorf("%d attempts: %w", outcome.Attempts, lastErr),
		"run", outcome.RunID,
	)
	return outcome, fmt.Errorf("%w: %w", ErrExhausted, lastErr)
}

// attempt runs one session over every channel and snapshots every record
// it extracted. It succeeds iff at least one record was delivered and no
// channel failed midway.
func (o *Orchestrator) attempt(ctx context.Context, window Window) ([]ChannelResult, Tally, string, error) {
	ctx, span := o.tracer.Start(ctx, "attempt")
	defer span.End()

	var results []ChannelResult
	var tally Tally
	err := o.source.Session(ctx, func(ctx context.Context, reader ChannelReader) error {
		for _, handle := range o.channels {
			result := o.scraper.ScrapeChannel(ctx, reader, handle, window)
			results = append(results, result)
			tally.add(result.Tally)
			if result.Err != nil {
				return fmt.Errorf("channel %s: %w", handle, result.Err)
			}
		}
		return nil
	})
	backup := o.snapshot(results)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt failed")
		return results, tally, backup, err
	}
	if tally.Delivered() == 0 {
		return results, tally, backup, ErrNothingPublished
	}
	return results, tally, backup, nil
}

// snapshot writes one backup holding the records of every channel, it
// returns an empty name when there was nothing to save or saving failed.
func (o *Orchestrator) snapshot(results []ChannelResult) string {
	var records []horoscope.Record
	for _, r := range results {
		records = append(records, r.Records...)
	}
	if len(records) == 0 {
		return ""
	}
	name, err := o.backups.Save(records, o.clock.Now())
	if err != nil {
		o.tel.ReportWarning(report_orchestrator_backup, err, "records", len(records))
		return ""
	}
	o.tel.ReportDebug("snapshot saved", "backup", name, "records", len(records))
	return name
}

// RunScheduled is the entrypoint of a scheduled trigger. If today already
// succeeded it returns immediately, otherwise it runs with the slot's retry
// policy and records today on success.
func (o *Orchestrator) RunScheduled(ctx context.Context, slot int) (Outcome, error) {
	policy, ok := o.slots[slot]
	if !ok {
		return Outcome{}, fmt.Errorf("unknown schedule slot %d", slot)
	}

	release, err := o.acquire()
	if err != nil {
		return Outcome{}, err
	}
	defer release()

	now := o.clock.Now()
	if last, ok := o.status.LastSuccess(); ok && chrono.SameDay(last, now, o.clock.Location()) {
		o.tel.ReportDebug("already succeeded today, skipping", "slot", slot, "date", last.Format(time.DateOnly))
		return Outcome{State: StateSucceeded, Skipped: true, Started: now, Finished: now}, nil
	}

	o.tel.ReportDebug("scheduled run", "slot", slot, "attempts", policy.Attempts, "wait", policy.Wait)
	outcome, err := o.runWithRetry(ctx, DayWindow(now, o.clock.Location()), policy)
	if err != nil {
		return outcome, err
	}

	err = o.status.SetLastSuccess(now)
	if err != nil {
		o.tel.ReportBroken(report_orchestrator_status, err)
		return outcome, err
	}
	return outcome, nil
}

type RepublishResult struct {
	Backup  string
	Records []horoscope.Record
	Tally   Tally
}

// Republish publishes the latest record of every sign found in a backup
// snapshot. An empty name selects the newest snapshot. Records already in
// the ledger are skipped unless force is set.
func (o *Orchestrator) Republish(ctx context.Context, name string, force bool) (RepublishResult, error) {
	release, err := o.acquire()
	if err != nil {
		return RepublishResult{}, err
	}
	defer release()

	o.setState(StateScraping)
	defer o.setState(StateIdle)

	if name == "" {
		name, err = o.backups.Latest()
		if err != nil {
			return RepublishResult{}, fmt.Errorf("republish: %w", err)
		}
	}
	loaded, err := o.backups.Load(name)
	if err != nil {
		o.tel.ReportWarning(report_orchestrator_republish, err)
		return RepublishResult{Backup: name}, fmt.Errorf("republish: %w", err)
	}

	result := RepublishResult{
		Backup:  name,
		Records: LatestBySign(loaded),
	}
	o.tel.ReportDebug("republishing", "backup", name, "records", len(result.Records), "force", force)

	result.Tally, err = o.scraper.PublishRecords(ctx, result.Records, force)
	if err != nil {
		return result, fmt.Errorf("republish: %w", err)
	}
	if result.Tally.Delivered() == 0 {
		return result, fmt.Errorf("republish: %w", ErrNothingPublished)
	}
	return result, nil
}
