package commands

import (
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"

	"horoscope-relay/internal/components/chrono"
	"horoscope-relay/internal/components/telemetry"
	"horoscope-relay/internal/config"
	"horoscope-relay/internal/horoscope"
	"horoscope-relay/internal/relay"
	"horoscope-relay/internal/store"
	"horoscope-relay/internal/telegram"
	"horoscope-relay/internal/wordpress"
	"horoscope-relay/lib/restyutil"
)

// app holds every wired component of the relay.
type app struct {
	cfg   config.Config
	tel   telemetry.API
	clock chrono.StandardImpl

	db       *sql.DB
	ledger   store.Ledger
	backups  store.BackupDir
	status   store.StatusFile
	telegram *telegram.Client

	extractor    horoscope.Extractor
	scraper      relay.Scraper
	orchestrator *relay.Orchestrator
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(*configPath)
	if err != nil {
		return config.Config{}, err
	}
	err = cfg.Validate()
	if err != nil {
		return config.Config{}, fmt.Errorf("invalid config %s:\n%w", *configPath, err)
	}
	return cfg, nil
}

func newTelegramClient(cfg config.Config, tel telemetry.API) (*telegram.Client, error) {
	return telegram.NewClient(telegram.Options{
		AppID:       cfg.Telegram.ApiID,
		AppHash:     cfg.Telegram.ApiHash,
		Phone:       cfg.Telegram.Phone,
		SessionFile: cfg.Telegram.SessionFile,
		Keyword:     cfg.Telegram.Search,
	}, tel)
}

func newWordpressClient(cfg config.Config, tel telemetry.API) (wordpress.Client, error) {
	opts := wordpress.Options{
		BaseURL:           cfg.WordPress.BaseURL,
		Username:          cfg.WordPress.Username,
		AppPassword:       cfg.WordPress.AppPassword,
		Timeout:           cfg.WordPress.Timeout.Std(),
		RequestsPerSecond: cfg.WordPress.RequestsPerSecond,
	}
	if *verbose {
		output, err := restyutil.NewFilesystemOutput(filepath.Join(cfg.Relay.DataDir, ".dev", "resty", "wordpress"))
		if err != nil {
			return wordpress.Client{}, err
		}
		opts.Output = output
	}
	return wordpress.NewClient(opts, tel)
}

func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return wireApp(cfg, telemetry.SlogAPI{})
}

func wireApp(cfg config.Config, tel telemetry.API) (*app, error) {
	clock, err := chrono.NewStandardImpl()
	if err != nil {
		return nil, err
	}

	db, err := store.OpenDB(cfg.Relay.LedgerDB)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		tel:     tel,
		clock:   clock,
		db:      db,
		ledger:  store.NewLedger(db),
		backups: store.NewBackupDir(cfg.Relay.BackupDir, clock.Location()),
		status:  store.NewStatusFile(cfg.Relay.DataDir, clock.Location(), tel),
	}

	a.telegram, err = newTelegramClient(cfg, tel)
	if err != nil {
		a.Close()
		return nil, err
	}
	wp, err := newWordpressClient(cfg, tel)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher := wordpress.NewPublisher(wp, wordpress.PublisherOptions{
		ImagesDir:  cfg.WordPress.ImagesDir,
		CategoryID: cfg.WordPress.CategoryID,
		Status:     cfg.WordPress.PostStatus,
	}, tel)

	a.extractor = horoscope.NewExtractor(tel, clock)
	a.scraper = relay.NewScraper(relay.ScraperDeps{
		Extractor: a.extractor,
		Publisher: publisher,
		Ledger:    a.ledger,
		Clock:     clock,
		Tel:       tel,
	}, relay.ScrapeOptions{
		MaxMessages:  cfg.Telegram.MaxMessages,
		TimeLimit:    cfg.Telegram.TimeLimit.Std(),
		PublishDelay: cfg.Relay.PublishDelay.Std(),
	})
	a.orchestrator = relay.NewOrchestrator(relay.OrchestratorDeps{
		Source:  a.telegram,
		Scraper: a.scraper,
		Status:  a.status,
		Backups: a.backups,
		Clock:   clock,
		Tel:     tel,
	}, relay.OrchestratorOptions{
		Channels: cfg.Telegram.Channels,
		Slots:    cfg.Slots(),
	})

	return a, nil
}

func (a *app) defaultPolicy() relay.RetryPolicy {
	return relay.RetryPolicy{
		Attempts: a.cfg.Relay.Retries,
		Wait:     a.cfg.Relay.RetryWait.Std(),
	}
}

// adminPolicy is the policy of POST /scrape without a retries parameter.
// The request is held open for the whole run, so it makes a single attempt.
func (a *app) adminPolicy() relay.RetryPolicy {
	policy := a.defaultPolicy()
	policy.Attempts = 1
	return policy
}

func (a *app) Close() {
	err := a.db.Close()
	if err != nil {
		slog.Warn("failed to close ledger db", "err", err)
	}
}
