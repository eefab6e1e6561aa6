package models

import "fmt"

// MIndicatorConfig describes one indicator registration. The registry
// validates it and derives the lookback (warm-up) length in bars.
type MIndicatorConfig struct {
	Type     string `json:"type" yaml:"type"`         // "sma", "ema", "rsi", "macd", "vwap"
	Interval string `json:"interval" yaml:"interval"` // interval the indicator runs on
	Period   int    `json:"period" yaml:"period"`
	Slow     int    `json:"slow,omitempty" yaml:"slow"`     // macd only
	Signal   int    `json:"signal,omitempty" yaml:"signal"` // macd only
}

// -----------------------------------------------------------------------------

// Key uniquely identifies an indicator within a symbol's session data.
func (c MIndicatorConfig) Key() string {
	if c.Type == "macd" {
		return fmt.Sprintf("macd(%d,%d,%d)@%s", c.Period, c.Slow, c.Signal, c.Interval)
	}
	return fmt.Sprintf("%s(%d)@%s", c.Type, c.Period, c.Interval)
}
