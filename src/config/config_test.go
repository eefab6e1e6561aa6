package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------

const validYAML = `
name: backtest
host: 0.0.0.0
port: 8080
log_level: INFO
storage:
  db_type: sqlite
  db_path: ./data/test.db
session:
  mode: data
  start_date: "2024-01-15"
  end_date: "2024-01-19"
  symbols:
    - symbol: AAPL
      intervals: ["1m", "5m"]
      indicators:
        - type: sma
          interval: 5m
          period: 20
  scans:
    - at: "10:30"
      symbols: ["NVDA"]
      indicator:
        type: rsi
        interval: 1m
        period: 14
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// -----------------------------------------------------------------------------

func TestNewConfigValid(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	require.Equal(t, "backtest", cfg.Name)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "sqlite", cfg.Storage.DBType)
	require.Len(t, cfg.Session.Symbols, 1)
	require.Len(t, cfg.Session.Scans, 1)

	// Defaults fill the omitted session knobs.
	require.Equal(t, 30, cfg.Session.TickSeconds)
	require.Equal(t, 1.0, cfg.Session.SpeedMultiplier)
	require.Equal(t, 500, cfg.Session.ClockTimeoutMs)
	require.Equal(t, 10, cfg.Session.MaxOverruns)
	require.Equal(t, 7, cfg.Session.HistoricalDays)
}

// -----------------------------------------------------------------------------

func TestNewConfigMissingFile(t *testing.T) {
	_, err := NewConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

// -----------------------------------------------------------------------------

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"empty name", func(c *Config) { c.Name = "" }, "name"},
		{"privileged port", func(c *Config) { c.Port = 80 }, "port"},
		{"sqlite without path", func(c *Config) { c.Storage.DBPath = "" }, "path"},
		{"bad mode", func(c *Config) { c.Session.Mode = "turbo" }, "mode"},
		{"bad start date", func(c *Config) { c.Session.StartDate = "15/01/2024" }, "start_date"},
		{"end before start", func(c *Config) { c.Session.EndDate = "2024-01-01" }, "precedes"},
		{"no symbols", func(c *Config) { c.Session.Symbols = nil }, "symbol"},
		{"bad interval", func(c *Config) { c.Session.Symbols[0].Intervals = []string{"1x"} }, "interval"},
		{"bad scan time", func(c *Config) { c.Session.Scans[0].At = "25:99" }, "scan"},
		{"scan without symbols", func(c *Config) { c.Session.Scans[0].Symbols = nil }, "scan"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewConfig(writeConfig(t, validYAML))
			require.NoError(t, err)

			tc.mutate(cfg)
			err = cfg.Validate()
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

// -----------------------------------------------------------------------------

func TestValidateLiveSkipsDates(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	cfg.Session.Live = true
	cfg.Session.StartDate = ""
	cfg.Session.EndDate = ""
	require.NoError(t, cfg.Validate())
}

// -----------------------------------------------------------------------------

func TestSaveRoundTrip(t *testing.T) {
	cfg, err := NewConfig(writeConfig(t, validYAML))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "saved.yaml")
	require.NoError(t, cfg.Save(path))

	reloaded, err := NewConfig(path)
	require.NoError(t, err)
	require.Equal(t, cfg.Session.Symbols, reloaded.Session.Symbols)
	require.Equal(t, cfg.Storage, reloaded.Storage)
}
