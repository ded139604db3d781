package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"horoscope-relay/internal/relay"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()

	require.Equal(t, "data", cfg.Relay.DataDir)
	require.Equal(t, filepath.Join("data", "ledger.db"), cfg.Relay.LedgerDB)
	require.Equal(t, 3*time.Second, cfg.Relay.PublishDelay.Std())
	require.Equal(t, 3, cfg.Relay.Retries)
	require.Equal(t, 33, cfg.WordPress.CategoryID)
	require.Equal(t, "publish", cfg.WordPress.PostStatus)
	require.Equal(t, filepath.Join("data", "images"), cfg.WordPress.ImagesDir)
	require.Equal(t, 1_000_000, cfg.Telegram.MaxMessages)
	require.Equal(t, 6*time.Hour, cfg.Telegram.TimeLimit.Std())
	require.Len(t, cfg.Schedule, 3)

	custom := Config{
		Relay:     Relay{DataDir: "/var/relay", PublishDelay: Duration(time.Second)},
		WordPress: WordPress{CategoryID: 7},
	}.WithDefaults()
	require.Equal(t, filepath.Join("/var/relay", "ledger.db"), custom.Relay.LedgerDB)
	require.Equal(t, time.Second, custom.Relay.PublishDelay.Std())
	require.Equal(t, 7, custom.WordPress.CategoryID)
}

func TestSlots(t *testing.T) {
	slots := Config{}.WithDefaults().Slots()
	if diff := cmp.Diff(relay.DefaultSlots, slots); diff != "" {
		t.Fatalf("default schedule diverged from relay defaults (-want +got):\n%s", diff)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		Telegram:  Telegram{ApiID: 1, ApiHash: "hash", Channels: []string{"@stars"}},
		WordPress: WordPress{BaseURL: "https://example.com/wp-json/wp/v2", Username: "u", AppPassword: "p"},
	}.WithDefaults()
	require.NoError(t, valid.Validate())

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api id", func(c *Config) { c.Telegram.ApiID = 0 }},
		{"missing api hash", func(c *Config) { c.Telegram.ApiHash = "" }},
		{"no channels", func(c *Config) { c.Telegram.Channels = nil }},
		{"missing base url", func(c *Config) { c.WordPress.BaseURL = "" }},
		{"missing password", func(c *Config) { c.WordPress.AppPassword = "" }},
		{"bad cron", func(c *Config) { c.Schedule = []Slot{{Cron: "every day", Attempts: 1}} }},
		{"zero attempts", func(c *Config) { c.Schedule = []Slot{{Cron: "0 5 * * *"}} }},
	}
	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			cfg := valid
			cfg.Telegram.Channels = append([]string(nil), valid.Telegram.Channels...)
			cfg.Schedule = append([]Slot(nil), valid.Schedule...)
			test.mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"TELEGRAM_API_ID":   "12345",
		"TELEGRAM_API_HASH": "abc",
		"WP_APP_PASSWORD":   "secret",
	}
	cfg := Config{WordPress: WordPress{Username: "from-file", AppPassword: "old"}}
	require.NoError(t, cfg.applyEnv(func(k string) string { return env[k] }))

	require.Equal(t, 12345, cfg.Telegram.ApiID)
	require.Equal(t, "abc", cfg.Telegram.ApiHash)
	require.Equal(t, "from-file", cfg.WordPress.Username)
	require.Equal(t, "secret", cfg.WordPress.AppPassword)

	env["TELEGRAM_API_ID"] = "twelve"
	require.Error(t, cfg.applyEnv(func(k string) string { return env[k] }))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "relay.json5")
	require.NoError(t, os.WriteFile(path, []byte(`{
		// channels to scrape
		telegram: { api_id: 1, channels: ["@stars"], time_limit: "2h" },
		wordpress: { base_url: "https://example.com/wp-json/wp/v2" },
		relay: { publish_delay: "500ms" },
	}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("WP_USERNAME=editor\n"), 0644))
	t.Setenv("TELEGRAM_API_HASH", "from-env")
	t.Setenv("WP_USERNAME", "")
	require.NoError(t, os.Unsetenv("WP_USERNAME"))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 1, cfg.Telegram.ApiID)
	require.Equal(t, "from-env", cfg.Telegram.ApiHash)
	require.Equal(t, 2*time.Hour, cfg.Telegram.TimeLimit.Std())
	require.Equal(t, 500*time.Millisecond, cfg.Relay.PublishDelay.Std())
	require.Equal(t, []string{"@stars"}, cfg.Telegram.Channels)
	require.Equal(t, "editor", cfg.WordPress.Username)
	require.Equal(t, 33, cfg.WordPress.CategoryID)
}

func TestLoadMissingFile(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("absent.json5")
	require.NoError(t, err)
	require.Equal(t, "data", cfg.Relay.DataDir)
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
