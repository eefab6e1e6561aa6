package interfaces

import "backtest-engine/src/models"

// -----------------------------------------------------------------------------
// IProvisioner is the single entry path for session membership mutation.
// Every caller (config loading, scanners, strategies, control API) goes
// through these four operations.
// -----------------------------------------------------------------------------

type IProvisioner interface {

	// AddSymbol provisions a symbol with the given intervals and indicators.
	// An existing adhoc symbol receiving a full-scope request is upgraded.
	AddSymbol(symbol string, intervals []string, indicators []models.MIndicatorConfig, by models.SourceTag) models.MOperationResult

	// -----------------------------------------------------------------------------

	// AddBarInterval adds one interval to an existing symbol.
	AddBarInterval(symbol, interval string, by models.SourceTag) models.MOperationResult

	// -----------------------------------------------------------------------------

	// AddIndicator registers one indicator on an existing symbol.
	AddIndicator(symbol string, cfg models.MIndicatorConfig, by models.SourceTag) models.MOperationResult

	// -----------------------------------------------------------------------------

	// RemoveSymbol drops a symbol and everything it owns.
	RemoveSymbol(symbol string, by models.SourceTag) models.MOperationResult
}
