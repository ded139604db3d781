package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"horoscope-relay/internal/admin"
	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/lib/serviceutil"
	libtelemetry "horoscope-relay/lib/telemetry"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

// InitSchedule registers one cron entry per schedule slot, slots are
// numbered from 1 in config order.
func InitSchedule(ctx context.Context, app *app) chrono.SlotScheduler {
	scheduler := chrono.NewSlotScheduler(app.clock, app.tel)
	for i, slot := range app.cfg.Schedule {
		number := i + 1
		err := scheduler.Cron(slot.Cron, func() {
			outcome, err := app.orchestrator.RunScheduled(ctx, number)
			if err != nil {
				slog.Error("scheduled run failed", "slot", number, "attempts", outcome.Attempts, "err", err)
				return
			}
			slog.Info(
				"scheduled run finished",
				"slot", number,
				"skipped", outcome.Skipped,
				"attempts", outcome.Attempts,
				"published", outcome.Tally.Published,
				"already", outcome.Tally.Already,
				"failed", outcome.Tally.Failed,
			)
		})
		if err != nil {
			serviceutil.Fatal("failed to register schedule slot", err)
		}
		slog.Info("scheduled slot", "slot", number, "cron", slot.Cron, "attempts", slot.Attempts, "wait", slot.Wait.Std())
	}
	return scheduler
}

func InitAdmin(ctx context.Context, app *app) {
	if app.cfg.Admin.Listen == "" {
		return
	}
	server := admin.NewServer(app.orchestrator.NoWait(), app.clock, admin.Options{
		AccessToken: app.cfg.Admin.AccessToken,
		Policy:      app.adminPolicy(),
	}, app.tel)

	go func() {
		err := serviceutil.StartHttpServer(ctx, app.cfg.Admin.Listen, server.Router())
		if err != nil && !errors.Is(err, context.Canceled) {
			serviceutil.Fatal("admin http server stopped", err)
		}
	}()
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the daily schedule and the admin http api until interrupted.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		app, err := openApp()
		if err != nil {
			serviceutil.Fatal("failed to initialize relay", err)
		}
		defer app.Close()

		err = libtelemetry.InstrumentPerfStats(ctx, 30*time.Second)
		if err != nil {
			slog.Warn("failed to instrument runtime stats", "err", err)
		}
		InitAdmin(ctx, app)
		scheduler := InitSchedule(ctx, app)
		scheduler.Start()

		slog.Info("relay started", "channels", app.cfg.Telegram.Channels, "admin", app.cfg.Admin.Listen)
		<-ctx.Done()
		slog.Info("shutting down, waiting for the active run")
		scheduler.Stop()
		return nil
	},
}
