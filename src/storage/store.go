package storage

import (
	"fmt"

	"backtest-engine/src/interfaces"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------

// NewStore builds the historical store matching the configured backend.
func NewStore(cfg *models.MConfig, log *logger.Logger) (interfaces.IHistoricalStore, error) {
	switch cfg.Storage.DBType {
	case "sqlite":
		return NewSQLiteStore(cfg, log)
	case "postgres":
		return NewPostgresStore(cfg, log)
	default:
		return nil, fmt.Errorf("unsupported db_type '%s' (want sqlite or postgres)", cfg.Storage.DBType)
	}
}
