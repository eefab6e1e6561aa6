package indicators

import (
	"backtest-engine/src/analysis/core"
	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// Value computation over lookback windows. Called by the analysis stage with
// the most recent bars of the indicator's interval; returns (value, warm).
// -----------------------------------------------------------------------------

func Compute(cfg models.MIndicatorConfig, bars []models.MBar) (float64, bool) {
	switch cfg.Type {
	case "sma":
		return sma(closes(bars), cfg.Period)
	case "ema":
		return ema(closes(bars), cfg.Period)
	case "rsi":
		return rsi(closes(bars), cfg.Period)
	case "macd":
		return macd(closes(bars), cfg.Period, cfg.Slow)
	case "vwap":
		return vwap(bars, cfg.Period)
	}
	return 0, false
}

// -----------------------------------------------------------------------------

func closes(bars []models.MBar) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

// -----------------------------------------------------------------------------

func sma(values []float64, period int) (float64, bool) {
	if len(values) < period {
		return 0, false
	}
	mean, _ := core.CalculateMeanStd(values[len(values)-period:])
	return mean, true
}

// -----------------------------------------------------------------------------

func ema(values []float64, period int) (float64, bool) {
	if len(values) < period {
		return 0, false
	}

	// Seed with the SMA of the first period, then fold forward.
	seed, _ := core.CalculateMeanStd(values[:period])
	k := 2.0 / (float64(period) + 1.0)

	v := seed
	for _, p := range values[period:] {
		v = p*k + v*(1.0-k)
	}
	return v, true
}

// -----------------------------------------------------------------------------

func rsi(values []float64, period int) (float64, bool) {
	if len(values) < period+1 {
		return 0, false
	}

	window := values[len(values)-period-1:]
	var gains, losses float64
	for i := 1; i < len(window); i++ {
		delta := window[i] - window[i-1]
		if delta > 0 {
			gains += delta
		} else {
			losses -= delta
		}
	}

	if losses == 0 {
		return 100, true
	}
	rs := gains / losses
	return 100 - 100/(1+rs), true
}

// -----------------------------------------------------------------------------

func macd(values []float64, fast, slow int) (float64, bool) {
	fastV, okFast := ema(values, fast)
	slowV, okSlow := ema(values, slow)
	if !okFast || !okSlow {
		return 0, false
	}
	return fastV - slowV, true
}

// -----------------------------------------------------------------------------

func vwap(bars []models.MBar, period int) (float64, bool) {
	if len(bars) < period {
		return 0, false
	}

	window := bars[len(bars)-period:]
	var pv, vol float64
	for _, b := range window {
		typical := (b.High + b.Low + b.Close) / 3.0
		pv += typical * b.Volume
		vol += b.Volume
	}
	if vol == 0 {
		return 0, false
	}
	return pv / vol, true
}
