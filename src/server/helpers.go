package server

import (
	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// Snapshot filtering helpers
// -----------------------------------------------------------------------------

// filterSnapshot narrows a snapshot to the requested symbols. An empty filter
// returns the snapshot as is. The result is marked INITIAL: it answers a
// subscribe command, not a tick.
func filterSnapshot(snapshot *models.MSessionSnapshot, symbols []string) *models.MSessionSnapshot {
	out := *snapshot
	out.Type = "INITIAL"

	if len(symbols) == 0 {
		return &out
	}

	filtered := make(map[string]models.MSymbolStatus, len(symbols))
	for _, sym := range symbols {
		if status, ok := snapshot.Symbols[sym]; ok {
			filtered[sym] = status
		}
	}
	out.Symbols = filtered
	return &out
}
