package interfaces

import (
	"time"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// IHistoricalStore defines the contract for historical bar storage.
// -----------------------------------------------------------------------------

type IHistoricalStore interface {

	// -----------------------------------------------------------------------------

	// Initialize sets up the database schema and tables.
	Initialize() error

	// -----------------------------------------------------------------------------

	// LoadBars returns bars for a symbol/interval inside [from, to), ordered
	// by start time ascending.
	LoadBars(symbol, interval string, from, to time.Time) ([]models.MBar, error)

	// -----------------------------------------------------------------------------

	// SaveBarsBulk inserts a batch of bars (seed tooling and live capture).
	SaveBarsBulk(bars []models.MBar) error

	// -----------------------------------------------------------------------------

	// Availability reports which raw base granularities exist for a symbol.
	// A symbol with no rows at all is unreachable.
	Availability(symbol string) (models.MAvailabilityInfo, error)

	// -----------------------------------------------------------------------------

	// EarliestBar returns the start time of the oldest bar stored for a
	// symbol/interval. Used to check historical depth sufficiency.
	EarliestBar(symbol, interval string) (time.Time, error)

	// -----------------------------------------------------------------------------

	// Close the database connection
	Close() error
}
