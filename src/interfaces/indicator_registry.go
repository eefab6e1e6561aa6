package interfaces

import "backtest-engine/src/models"

// -----------------------------------------------------------------------------
// IIndicatorRegistry validates indicator configurations and derives the
// warm-up (lookback) length each one needs before producing values.
// -----------------------------------------------------------------------------

type IIndicatorRegistry interface {

	// Validate checks that cfg names a known indicator type with legal params.
	Validate(cfg models.MIndicatorConfig) error

	// -----------------------------------------------------------------------------

	// Lookback returns the number of bars required before the indicator is warm.
	Lookback(cfg models.MIndicatorConfig) (int, error)
}
