package core

import (
	"math"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------

// CombineOHLCV folds an ordered run of source bars into one coarser bar body.
// The caller owns window boundaries and completeness checks.
func CombineOHLCV(bars []models.MBar) (open, high, low, closePrice, volume float64) {
	if len(bars) == 0 {
		return 0, 0, 0, 0, 0
	}

	open = bars[0].Open
	closePrice = bars[len(bars)-1].Close
	high = -1.0
	low = math.MaxFloat64

	for _, b := range bars {
		if b.High > high {
			high = b.High
		}
		if b.Low < low {
			low = b.Low
		}
		volume += b.Volume
	}

	return open, high, low, closePrice, volume
}

// -----------------------------------------------------------------------------

// CalculateChangePercent calculates percentage change.
func CalculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		return 0.0
	}
	return (current - previous) / previous
}
