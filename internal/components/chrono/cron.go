package chrono

import (
	"fmt"

	"horoscope-relay/internal/components/telemetry"

	"github.com/robfig/cron/v3"
)

const report_scheduler_slot = "scheduler.slot"

// SlotScheduler fires the daily scrape slots. Specs are read in the clock's
// location and a slot that panics is reported broken without stopping the
// others.
type SlotScheduler struct {
	cron *cron.Cron
}

// NewSlotScheduler does not fire anything until Start.
func NewSlotScheduler(clock API, tel telemetry.API) SlotScheduler {
	logger := slotLogger{tel: tel}
	return SlotScheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithLocation(clock.Location()),
			cron.WithChain(cron.Recover(logger)),
		),
	}
}

// Cron registers callback against a five field spec such as "0 9 * * *".
func (s SlotScheduler) Cron(spec string, callback func()) error {
	if _, err := s.cron.AddFunc(spec, callback); err != nil {
		return fmt.Errorf("slot %q: %w", spec, err)
	}
	return nil
}

func (s SlotScheduler) Start() {
	s.cron.Start()
}

// Stop blocks until the running slots return.
func (s SlotScheduler) Stop() {
	<-s.cron.Stop().Done()
}

// slotLogger hands robfig/cron's key/value logging to telemetry.
type slotLogger struct {
	tel telemetry.API
}

func (l slotLogger) Info(msg string, keysAndValues ...any) {
	l.tel.ReportDebug("scheduler: "+msg, keysAndValues...)
}

func (l slotLogger) Error(err error, msg string, keysAndValues ...any) {
	params := append([]any{fmt.Errorf("%s: %w", msg, err)}, keysAndValues...)
	l.tel.ReportBroken(report_scheduler_slot, params...)
}
