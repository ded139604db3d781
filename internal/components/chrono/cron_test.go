package chrono

import (
	"testing"
	"time"

	"horoscope-relay/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

func TestSlotSchedulerCron(t *testing.T) {
	loc, err := time.LoadLocation(Zone)
	require.NoError(t, err)
	scheduler := NewSlotScheduler(NewFake(time.Date(2024, time.March, 5, 4, 0, 0, 0, loc)), &telemetry.Recorder{})

	tests := []struct {
		spec string
		err  string
	}{
		{spec: "0 9 * * *"},
		{spec: "30 12 * * *"},
		{spec: "every morning", err: `slot "every morning"`},
		{spec: "0 25 * * *", err: `slot "0 25 * * *"`},
	}
	for _, test := range tests {
		t.Run(test.spec, func(t *testing.T) {
			err := scheduler.Cron(test.spec, func() {})
			if test.err != "" {
				require.ErrorContains(t, err, test.err)
				return
			}
			require.NoError(t, err)
		})
	}
	require.Len(t, scheduler.cron.Entries(), 2)
}

func TestSlotSchedulerRecoversPanic(t *testing.T) {
	tel := &telemetry.Recorder{}
	scheduler := NewSlotScheduler(NewFake(time.Now()), tel)
	require.NoError(t, scheduler.Cron("0 9 * * *", func() { panic("wordpress exploded") }))

	entries := scheduler.cron.Entries()
	require.Len(t, entries, 1)
	require.NotPanics(t, entries[0].WrappedJob.Run)

	broken := tel.Broken(report_scheduler_slot)
	require.Len(t, broken, 1)
	require.ErrorContains(t, broken[0].Params[0].(error), "wordpress exploded")
	require.Equal(t, "stack", broken[0].Params[1])
}

func TestSlotLoggerInfo(t *testing.T) {
	tel := &telemetry.Recorder{}
	slotLogger{tel: tel}.Info("wake", "now", "09:00")

	reports := tel.Reports("debug", "scheduler: wake")
	require.Len(t, reports, 1)
	require.Equal(t, []any{"now", "09:00"}, reports[0].Params)
}
