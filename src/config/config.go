package config

import (
	"fmt"
	"os"
	"time"

	"backtest-engine/src/intervals"
	"backtest-engine/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

func (c *Config) applyDefaults() {
	s := &c.Session
	if s.Mode == "" {
		s.Mode = "data"
	}
	if s.TickSeconds <= 0 {
		s.TickSeconds = 30
	}
	if s.SpeedMultiplier <= 0 {
		s.SpeedMultiplier = 1.0
	}
	if s.ClockTimeoutMs <= 0 {
		s.ClockTimeoutMs = 500
	}
	if s.MaxOverruns <= 0 {
		s.MaxOverruns = 10
	}
	if s.HistoricalDays <= 0 {
		s.HistoricalDays = 7
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Session configuration
	s := c.Session
	if s.Mode != "data" && s.Mode != "clock" {
		return fmt.Errorf("session mode must be 'data' or 'clock', got '%s'", s.Mode)
	}
	if !s.Live {
		if _, err := time.Parse("2006-01-02", s.StartDate); err != nil {
			return fmt.Errorf("invalid session start_date '%s': %w", s.StartDate, err)
		}
		if _, err := time.Parse("2006-01-02", s.EndDate); err != nil {
			return fmt.Errorf("invalid session end_date '%s': %w", s.EndDate, err)
		}
		if s.EndDate < s.StartDate {
			return fmt.Errorf("session end_date precedes start_date")
		}
	}
	if len(s.Symbols) == 0 {
		return fmt.Errorf("at least one session symbol must be configured")
	}
	for i, sym := range s.Symbols {
		if sym.Symbol == "" {
			return fmt.Errorf("session symbol %d must have a name", i)
		}
		for _, iv := range sym.Intervals {
			if _, err := intervals.Seconds(iv); err != nil {
				return fmt.Errorf("symbol '%s': %w", sym.Symbol, err)
			}
		}
	}
	for i, scan := range s.Scans {
		if _, err := time.Parse("15:04", scan.At); err != nil {
			return fmt.Errorf("scan %d: invalid time '%s' (want HH:MM)", i, scan.At)
		}
		if len(scan.Symbols) == 0 {
			return fmt.Errorf("scan %d must list at least one symbol", i)
		}
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
