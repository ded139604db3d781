// Package config is the relay's configuration: a json5 file (with an
// optional .local override) plus secrets from the environment or a .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"horoscope-relay/internal/relay"
	"horoscope-relay/lib/configutil"

	"github.com/robfig/cron/v3"
)

// Duration is a time.Duration written as a string ("45m", "3s") in config
// files.
type Duration time.Duration

func (d *Duration) UnmarshalJSON(data []byte) error {
	text := strings.Trim(string(data), `"`)
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return fmt.Errorf("invalid duration %s: %w", data, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(time.Duration(d).String())), nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

type Telegram struct {
	ApiID       int      `json:"api_id"`
	ApiHash     string   `json:"api_hash"`
	Phone       string   `json:"phone"`
	SessionFile string   `json:"session_file"`
	Channels    []string `json:"channels"`
	Search      string   `json:"search"`
	MaxMessages int      `json:"max_messages"`
	TimeLimit   Duration `json:"time_limit"`
}

type WordPress struct {
	// BaseURL is the REST root, ex. https://example.com/wp-json/wp/v2
	BaseURL           string   `json:"base_url"`
	Username          string   `json:"username"`
	AppPassword       string   `json:"app_password"`
	CategoryID        int      `json:"category_id"`
	PostStatus        string   `json:"post_status"`
	ImagesDir         string   `json:"images_dir"`
	Timeout           Duration `json:"timeout"`
	RequestsPerSecond float64  `json:"requests_per_second"`
}

type Relay struct {
	DataDir      string   `json:"data_dir"`
	BackupDir    string   `json:"backup_dir"`
	LedgerDB     string   `json:"ledger_db"`
	PublishDelay Duration `json:"publish_delay"`
	Retries      int      `json:"retries"`
	RetryWait    Duration `json:"retry_wait"`
}

type Slot struct {
	Cron     string   `json:"cron"`
	Attempts int      `json:"attempts"`
	Wait     Duration `json:"wait"`
}

type Admin struct {
	// Listen is the admin http address, empty disables the admin api.
	Listen      string `json:"listen"`
	AccessToken string `json:"access_token"`
}

type Config struct {
	Telegram  Telegram  `json:"telegram"`
	WordPress WordPress `json:"wordpress"`
	Relay     Relay     `json:"relay"`
	Schedule  []Slot    `json:"schedule"`
	Admin     Admin     `json:"admin"`
}

// DefaultSchedule mirrors relay.DefaultSlots, run in Asia/Baghdad.
var DefaultSchedule = []Slot{
	{Cron: "40 4 * * *", Attempts: 2, Wait: Duration(time.Hour)},
	{Cron: "0 5 * * *", Attempts: 3, Wait: Duration(45 * time.Minute)},
	{Cron: "0 9 * * *", Attempts: 4, Wait: Duration(30 * time.Minute)},
}

// WithDefaults fills every unset field.
func (c Config) WithDefaults() Config {
	if c.Relay.DataDir == "" {
		c.Relay.DataDir = "data"
	}
	if c.Relay.BackupDir == "" {
		c.Relay.BackupDir = c.Relay.DataDir
	}
	if c.Relay.LedgerDB == "" {
		c.Relay.LedgerDB = filepath.Join(c.Relay.DataDir, "ledger.db")
	}
	if c.Relay.PublishDelay == 0 {
		c.Relay.PublishDelay = Duration(3 * time.Second)
	}
	if c.Relay.Retries == 0 {
		c.Relay.Retries = 3
	}
	if c.Relay.RetryWait == 0 {
		c.Relay.RetryWait = Duration(3 * time.Hour)
	}

	if c.Telegram.SessionFile == "" {
		c.Telegram.SessionFile = filepath.Join(c.Relay.DataDir, "session.json")
	}
	if c.Telegram.MaxMessages == 0 {
		c.Telegram.MaxMessages = 1_000_000
	}
	if c.Telegram.TimeLimit == 0 {
		c.Telegram.TimeLimit = Duration(6 * time.Hour)
	}

	if c.WordPress.PostStatus == "" {
		c.WordPress.PostStatus = "publish"
	}
	if c.WordPress.CategoryID == 0 {
		c.WordPress.CategoryID = 33
	}
	if c.WordPress.ImagesDir == "" {
		c.WordPress.ImagesDir = filepath.Join(c.Relay.DataDir, "images")
	}
	if c.WordPress.Timeout == 0 {
		c.WordPress.Timeout = Duration(30 * time.Second)
	}
	if c.WordPress.RequestsPerSecond == 0 {
		c.WordPress.RequestsPerSecond = 2
	}

	if len(c.Schedule) == 0 {
		c.Schedule = append([]Slot(nil), DefaultSchedule...)
	}
	return c
}

// Validate reports every missing credential and malformed field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Telegram.ApiID == 0 {
		errs = append(errs, errors.New("telegram.api_id (TELEGRAM_API_ID) is required"))
	}
	if c.Telegram.ApiHash == "" {
		errs = append(errs, errors.New("telegram.api_hash (TELEGRAM_API_HASH) is required"))
	}
	if len(c.Telegram.Channels) == 0 {
		errs = append(errs, errors.New("telegram.channels must list at least one channel"))
	}
	if c.WordPress.BaseURL == "" {
		errs = append(errs, errors.New("wordpress.base_url (WP_BASE_URL) is required"))
	}
	if c.WordPress.Username == "" || c.WordPress.AppPassword == "" {
		errs = append(errs, errors.New("wordpress.username and wordpress.app_password (WP_USERNAME, WP_APP_PASSWORD) are required"))
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for i, slot := range c.Schedule {
		if _, err := parser.Parse(slot.Cron); err != nil {
			errs = append(errs, fmt.Errorf("schedule[%d].cron: %w", i, err))
		}
		if slot.Attempts <= 0 {
			errs = append(errs, fmt.Errorf("schedule[%d].attempts must be positive", i))
		}
	}
	return errors.Join(errs...)
}

// Slots converts the schedule into retry policies keyed by 1-based slot.
func (c Config) Slots() map[int]relay.RetryPolicy {
	out := make(map[int]relay.RetryPolicy, len(c.Schedule))
	for i, slot := range c.Schedule {
		out[i+1] = relay.RetryPolicy{Attempts: slot.Attempts, Wait: slot.Wait.Std()}
	}
	return out
}

// applyEnv overrides secrets with environment variables when they are set.
func (c *Config) applyEnv(getenv func(string) string) error {
	return configutil.ApplyEnv(
		getenv,
		configutil.EnvInt("TELEGRAM_API_ID", &c.Telegram.ApiID),
		configutil.EnvString("TELEGRAM_API_HASH", &c.Telegram.ApiHash),
		configutil.EnvString("TELEGRAM_PHONE", &c.Telegram.Phone),
		configutil.EnvString("WP_BASE_URL", &c.WordPress.BaseURL),
		configutil.EnvString("WP_USERNAME", &c.WordPress.Username),
		configutil.EnvString("WP_APP_PASSWORD", &c.WordPress.AppPassword),
	)
}

// Load reads path (json5, merged with <name>.local.json5), then .env in the
// working directory, then the environment. A missing config file is not an
// error as long as the environment supplies the secrets.
func Load(path string) (Config, error) {
	cfg, err := configutil.ReadConfig[Config](path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	err = configutil.LoadDotEnv(".env")
	if err != nil {
		return Config{}, err
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return Config{}, err
	}
	return cfg.WithDefaults(), nil
}
