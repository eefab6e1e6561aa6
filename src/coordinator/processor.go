package coordinator

import (
	"sort"

	"backtest-engine/src/analysis"
	"backtest-engine/src/intervals"
	"backtest-engine/src/models"
	"backtest-engine/src/session"
)

// -----------------------------------------------------------------------------
// processor is the second pipeline stage. On each tick it drains the session
// queues up to simulated now, appends the streamed bars, generates derived
// bars behind the completeness gate, synthesizes quotes, and hands the token
// to the analysis stage.
// -----------------------------------------------------------------------------

type processor struct {
	c          *Coordinator
	aggregator analysis.BarAggregator
}

func newProcessor(c *Coordinator) *processor {
	return &processor{c: c}
}

func (p *processor) resetDay() {}

// -----------------------------------------------------------------------------

func (p *processor) run() {
	c := p.c
	for {
		if !c.procGate.WaitUntilReady(c.tickTimeout) {
			if c.procGate.Stopped() {
				return
			}
			continue
		}
		c.procGate.Reset()

		// Hold out provisioning for the tick: in clock-driven mode a scan or
		// control-API call can land while this stage is mid-append.
		c.Engine.Synchronized(func() {
			p.processTick(c.Session.Clock().Now().Unix())
		})

		c.analysisGate.SignalReady()
	}
}

// -----------------------------------------------------------------------------

func (p *processor) processTick(now int64) {
	for _, sym := range p.c.Session.Symbols() {
		p.streamSymbol(sym, now)
	}
}

// -----------------------------------------------------------------------------

func (p *processor) streamSymbol(sym *session.SymbolSessionData, now int64) {
	decision, ok := p.c.Session.Decision(sym.Symbol)
	if !ok || decision.StreamInterval == "" {
		return
	}
	recs := p.c.Session.IntervalRecords(sym.Symbol)
	streamRec, ok := recs[decision.StreamInterval]
	if !ok {
		return
	}

	// Consume everything that closed at or before simulated now.
	bars := sym.DequeueUpTo(now)
	if len(bars) > 0 {
		streamRec.AppendBars(bars)
		p.c.metrics.barsStreamed.Add(int64(len(bars)))
		p.synthesizeQuote(sym, bars[len(bars)-1])
	}

	p.generateDerived(sym, recs, now)
}

// -----------------------------------------------------------------------------

// synthesizeQuote builds bid=ask=close from the most granular bar on hand.
// Live sessions stream real quotes instead; nothing to synthesize here.
func (p *processor) synthesizeQuote(sym *session.SymbolSessionData, last models.MBar) {
	if p.c.Config.Session.Live {
		return
	}

	sym.LastQuote = models.MQuote{
		Symbol:         sym.Symbol,
		Bid:            last.Close,
		Ask:            last.Close,
		Timestamp:      last.EndTime,
		Synthesized:    true,
		SourceInterval: last.Interval,
	}
	p.c.metrics.quotesSynthesized.Add(1)
}

// -----------------------------------------------------------------------------

// generateDerived rebuilds every derived interval from its source record,
// smallest span first so a derived interval feeding a coarser one is current
// before the coarser one aggregates. The completeness gate lives inside the
// aggregator: partial source windows are skipped, never partially combined.
func (p *processor) generateDerived(sym *session.SymbolSessionData, recs map[string]*session.BarIntervalData, now int64) {
	ordered := make([]string, 0, len(recs))
	for iv, rec := range recs {
		if rec.Derived {
			ordered = append(ordered, iv)
		}
	}
	sort.Slice(ordered, func(i, j int) bool {
		a, _ := intervals.Seconds(ordered[i])
		b, _ := intervals.Seconds(ordered[j])
		return a < b
	})

	for _, iv := range ordered {
		rec := recs[iv]
		src, ok := recs[rec.SourceInterval]
		if !ok {
			continue
		}

		wSec, err := intervals.Seconds(iv)
		if err != nil {
			continue
		}
		srcSec, err := intervals.Seconds(rec.SourceInterval)
		if err != nil {
			continue
		}

		res := p.aggregator.Aggregate(sym.Symbol, iv, wSec, srcSec, src.Bars(), rec.Watermark, now)
		rec.Watermark = res.Watermark
		if len(res.Bars) > 0 {
			rec.AppendBars(res.Bars)
			p.c.metrics.barsGenerated.Add(int64(len(res.Bars)))
		}
		p.c.metrics.incompleteWindows.Add(int64(res.Skipped))
	}
}
