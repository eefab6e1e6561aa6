package analysis

import (
	"sort"
	"time"

	"backtest-engine/src/analysis/core"
	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// BarAggregator generates derived bars from finer-grained source bars.
//
// Completeness gate: a derived bar for a covering window is generated only if
// the source window is 100% complete (actual bar count == expected count for
// the span). Partial source data causes the window to be skipped entirely,
// never aggregated partially.
// -----------------------------------------------------------------------------

type BarAggregator struct{}

// AggregateResult is one pass over a source sequence.
type AggregateResult struct {
	Bars      []models.MBar // derived bars, ordered by window start
	Skipped   int           // closed windows dropped for incompleteness
	Watermark int64         // highest closed-window end examined
}

// -----------------------------------------------------------------------------

// Aggregate scans source bars (ordered by start time) and emits one derived
// bar per fully-complete window. Only windows that close in (after, upTo] are
// considered, so repeated per-tick calls never re-emit or re-count.
func (a *BarAggregator) Aggregate(symbol, interval string, windowSeconds, sourceSeconds int64, source []models.MBar, after, upTo int64) AggregateResult {
	res := AggregateResult{Watermark: after}

	if len(source) == 0 || windowSeconds <= 0 || sourceSeconds <= 0 {
		return res
	}

	expected := int(windowSeconds / sourceSeconds)
	if expected <= 0 {
		return res
	}

	minTs := source[0].StartTime
	maxTs := source[len(source)-1].StartTime

	firstStart, _ := CalculateWindowBoundaries(minTs, windowSeconds)

	for wStart := firstStart; wStart <= maxTs; wStart += windowSeconds {
		wEnd := wStart + windowSeconds

		if wEnd <= after {
			continue // already examined on an earlier pass
		}
		if wEnd > upTo {
			break // window not closed yet at simulated now
		}

		// Locate the source run covering [wStart, wEnd)
		startIdx := sort.Search(len(source), func(i int) bool {
			return source[i].StartTime >= wStart
		})
		endIdx := sort.Search(len(source), func(i int) bool {
			return source[i].StartTime >= wEnd
		})

		res.Watermark = wEnd

		n := endIdx - startIdx
		if n == 0 {
			continue // no source data at all (market gap), not a quality defect
		}
		if n != expected {
			res.Skipped++
			continue
		}

		open, high, low, closePrice, volume := core.CombineOHLCV(source[startIdx:endIdx])
		res.Bars = append(res.Bars, models.MBar{
			Symbol:    symbol,
			Interval:  interval,
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
			Volume:    volume,
			StartTime: wStart,
			EndTime:   wEnd,
			CreatedAt: time.Now().UTC(),
		})
	}

	return res
}

// -----------------------------------------------------------------------------

// CalculateWindowBoundaries returns the aligned window containing ts.
func CalculateWindowBoundaries(ts int64, window int64) (int64, int64) {
	start := ts - (ts % window)
	return start, start + window
}
