package indicators

import (
	"fmt"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// Registry validates indicator configurations and derives the lookback
// (warm-up) length each one needs. The analysis stage computes values once a
// symbol has that many bars on the indicator's interval.
// -----------------------------------------------------------------------------

type Registry struct{}

func NewRegistry() *Registry {
	return &Registry{}
}

// -----------------------------------------------------------------------------

// Validate checks that cfg names a known indicator type with legal parameters.
func (r *Registry) Validate(cfg models.MIndicatorConfig) error {
	if cfg.Interval == "" {
		return fmt.Errorf("indicator %s: interval is required", cfg.Type)
	}

	switch cfg.Type {
	case "sma", "ema", "rsi", "vwap":
		if cfg.Period <= 0 {
			return fmt.Errorf("indicator %s: period must be positive, got %d", cfg.Type, cfg.Period)
		}
	case "macd":
		if cfg.Period <= 0 || cfg.Slow <= cfg.Period {
			return fmt.Errorf("macd: fast period %d must be positive and below slow period %d", cfg.Period, cfg.Slow)
		}
		if cfg.Signal <= 0 {
			return fmt.Errorf("macd: signal period must be positive, got %d", cfg.Signal)
		}
	default:
		return fmt.Errorf("unknown indicator type %q", cfg.Type)
	}
	return nil
}

// -----------------------------------------------------------------------------

// Lookback returns the number of bars required before the indicator is warm.
func (r *Registry) Lookback(cfg models.MIndicatorConfig) (int, error) {
	if err := r.Validate(cfg); err != nil {
		return 0, err
	}

	switch cfg.Type {
	case "sma", "ema", "vwap":
		return cfg.Period, nil
	case "rsi":
		// one extra bar for the first delta
		return cfg.Period + 1, nil
	default: // macd
		return cfg.Slow + cfg.Signal, nil
	}
}
