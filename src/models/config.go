package models

// MConfig Structure
type MConfig struct {
	Name     string         `yaml:"name"`
	Host     string         `yaml:"host"`
	Port     int            `yaml:"port"`
	LogLevel string         `yaml:"log_level"`
	Storage  MStorageConfig `yaml:"storage"`
	Session  MSessionConfig `yaml:"session"`
}

type MStorageConfig struct {
	DBType             string `yaml:"db_type"`
	DBPath             string `yaml:"db_path"`
	DBConnectionString string `yaml:"db_connection_string"`
}

// MSessionConfig drives the multi-day session loop.
type MSessionConfig struct {
	Mode            string  `yaml:"mode"` // "data" or "clock"
	Live            bool    `yaml:"live"` // real-time session (simulated time frozen features disabled)
	StartDate       string  `yaml:"start_date"` // YYYY-MM-DD
	EndDate         string  `yaml:"end_date"`
	TickSeconds     int     `yaml:"tick_seconds"`      // simulated increment per tick (clock mode)
	SpeedMultiplier float64 `yaml:"speed_multiplier"`  // clock mode pacing, 1.0 = real time
	ClockTimeoutMs  int     `yaml:"clock_timeout_ms"`  // bounded per-tick wait (clock mode only)
	MaxOverruns     int     `yaml:"max_overruns"`      // liveness ceiling before fatal abort
	HistoricalDays  int     `yaml:"historical_days"`   // full backfill depth for configured symbols

	Symbols []MSymbolConfig `yaml:"symbols"`
	Scans   []MScanConfig   `yaml:"scans"`
}

// MSymbolConfig is one statically configured symbol with its full requirements.
type MSymbolConfig struct {
	Symbol     string             `yaml:"symbol"`
	Intervals  []string           `yaml:"intervals"`
	Indicators []MIndicatorConfig `yaml:"indicators"`
}

// MScanConfig is a scheduled scanner activity during Phase 3. Matched symbols
// are added adhoc (one indicator, minimal warm-up, no full backfill).
type MScanConfig struct {
	At        string           `yaml:"at"` // market time "HH:MM"
	Symbols   []string         `yaml:"symbols"`
	Indicator MIndicatorConfig `yaml:"indicator"`
}
