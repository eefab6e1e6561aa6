package coordinator

import (
	"backtest-engine/src/analysis"
	"backtest-engine/src/indicators"
	"backtest-engine/src/intervals"
	"backtest-engine/src/session"
	"backtest-engine/src/utils"
)

// -----------------------------------------------------------------------------
// analysisStage is the third pipeline stage. On each tick it feeds newly
// closed bars into per-indicator ring buffers, recomputes indicator values,
// refreshes quality scores, and hands the token back to the coordinator.
// -----------------------------------------------------------------------------

type analysisStage struct {
	c *Coordinator

	// One buffer per symbol+indicator, keyed "SYMBOL|key". Rebuilt every day;
	// nothing survives teardown.
	buffers map[string]*utils.RingBuffer

	// High-water mark of bars already fed per buffer key.
	fedUpTo map[string]int64
}

func newAnalysisStage(c *Coordinator) *analysisStage {
	return &analysisStage{
		c:       c,
		buffers: make(map[string]*utils.RingBuffer),
		fedUpTo: make(map[string]int64),
	}
}

func (a *analysisStage) resetDay() {
	a.buffers = make(map[string]*utils.RingBuffer)
	a.fedUpTo = make(map[string]int64)
}

// -----------------------------------------------------------------------------

func (a *analysisStage) run() {
	c := a.c
	for {
		if !c.analysisGate.WaitUntilReady(c.tickTimeout) {
			if c.analysisGate.Stopped() {
				return
			}
			continue
		}
		c.analysisGate.Reset()

		// Same exclusion as the processor: a concurrent provision must not
		// backfill a record this stage is reading.
		c.Engine.Synchronized(a.analyzeTick)

		c.coordGate.SignalReady()
	}
}

// -----------------------------------------------------------------------------

func (a *analysisStage) analyzeTick() {
	for _, sym := range a.c.Session.Symbols() {
		a.analyzeSymbol(sym)
	}
}

// -----------------------------------------------------------------------------

func (a *analysisStage) analyzeSymbol(sym *session.SymbolSessionData) {
	recs := a.c.Session.IntervalRecords(sym.Symbol)

	for key, inst := range a.c.Session.IndicatorInstances(sym.Symbol) {
		rec, ok := recs[inst.Config.Interval]
		if !ok {
			continue
		}

		bufKey := sym.Symbol + "|" + key
		buf, ok := a.buffers[bufKey]
		if !ok {
			ivSec, err := intervals.Seconds(inst.Config.Interval)
			if err != nil {
				continue
			}
			capacity := utils.BufferCapacity(1, ivSec)
			if inst.Lookback > capacity {
				capacity = inst.Lookback
			}
			buf = utils.NewRingBuffer(sym.Symbol, inst.Config.Interval, capacity)
			a.buffers[bufKey] = buf
		}

		for _, bar := range rec.BarsClosedAfter(a.fedUpTo[bufKey]) {
			buf.Append(bar)
			a.fedUpTo[bufKey] = bar.EndTime
		}

		if buf.Size() < inst.Lookback {
			continue
		}
		if value, warm := indicators.Compute(inst.Config, buf.GetLatest(inst.Lookback)); warm {
			inst.Value = value
			inst.Warm = true
		}
	}

	a.refreshQuality(recs)
}

// -----------------------------------------------------------------------------

// refreshQuality rescoring covers the span each record has actually seen.
func (a *analysisStage) refreshQuality(recs map[string]*session.BarIntervalData) {
	for iv, rec := range recs {
		bars := rec.Bars()
		if len(bars) == 0 {
			continue
		}
		ivSec, err := intervals.Seconds(iv)
		if err != nil {
			continue
		}
		span := bars[len(bars)-1].EndTime - bars[0].StartTime
		rec.QualityScore = analysis.Score(len(bars), analysis.ExpectedBars(span, ivSec))
	}
}
