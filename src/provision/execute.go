package provision

import (
	"fmt"
	"time"

	"backtest-engine/src/analysis"
	"backtest-engine/src/helpers"
	"backtest-engine/src/intervals"
	"backtest-engine/src/models"
	"backtest-engine/src/session"
)

// -----------------------------------------------------------------------------
// Execute phase: run the planned steps in order. On the first step failure
// execution stops for this operation; steps that already completed stay in
// place. Partial state is visible through the symbol metadata rather than
// undone.
// -----------------------------------------------------------------------------

const (
	storeRetries   = 3
	storeBaseDelay = 200 * time.Millisecond
)

func (e *Engine) Execute(reqs *models.MProvisioningRequirements) error {
	for _, step := range reqs.Steps {
		if err := e.runStep(reqs, step); err != nil {
			stepErr := helpers.NewProvisioningStepError(reqs.Symbol, string(step.Kind), err)
			e.Logger.Error("Provisioning step %s failed for %s, keeping completed steps: %v", step.Kind, reqs.Symbol, err)
			return stepErr
		}
		e.Logger.Debug("Provisioning step %s done for %s", step.Kind, reqs.Symbol)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (e *Engine) runStep(reqs *models.MProvisioningRequirements, step models.MProvisioningStep) error {
	switch step.Kind {
	case models.StepCreateSymbol:
		return e.stepCreateSymbol(reqs)
	case models.StepUpgradeSymbol:
		return e.stepUpgradeSymbol(reqs)
	case models.StepAddInterval:
		_, err := e.session.AddInterval(reqs.Symbol, step.Interval, step.Derived, step.SourceInterval)
		return err
	case models.StepLoadHistorical:
		return e.stepLoadHistorical(reqs)
	case models.StepLoadSessionQueue:
		return e.stepLoadSessionQueue(reqs)
	case models.StepRegisterIndicator:
		return e.stepRegisterIndicator(reqs, step.Indicator)
	case models.StepRecomputeQuality:
		return e.stepRecomputeQuality(reqs)
	}
	return fmt.Errorf("unknown step kind %s", step.Kind)
}

// -----------------------------------------------------------------------------

func (e *Engine) stepCreateSymbol(reqs *models.MProvisioningRequirements) error {
	_, err := e.session.AddSymbol(reqs.Symbol, reqs.RequestedBy, reqs.Adhoc, e.session.Clock().Now())
	if err != nil {
		return err
	}
	return e.session.SetDecision(reqs.Symbol, reqs.Decision)
}

// -----------------------------------------------------------------------------

func (e *Engine) stepUpgradeSymbol(reqs *models.MProvisioningRequirements) error {
	if err := e.session.Upgrade(reqs.Symbol, reqs.RequestedBy); err != nil {
		return err
	}
	// An upgrade widens the interval set, so the resolution is replaced too.
	return e.session.SetDecision(reqs.Symbol, reqs.Decision)
}

// -----------------------------------------------------------------------------

// stepLoadHistorical backfills every required interval over the window ending
// at the current day open. Stored intervals load from the store; derived
// intervals are aggregated from their source bars, smallest span first so
// sources are always populated before dependents.
func (e *Engine) stepLoadHistorical(reqs *models.MProvisioningRequirements) error {
	sym, ok := e.session.Symbol(reqs.Symbol)
	if !ok {
		return fmt.Errorf("symbol %s not found in session", reqs.Symbol)
	}

	dayOpen, _ := e.day()
	from := dayOpen.AddDate(0, 0, -reqs.HistoricalDepth)
	to := dayOpen

	ordered := append([]string{}, reqs.RequiredIntervals...)
	intervals.SortAscending(ordered)

	for _, iv := range ordered {
		rec, ok := sym.Intervals[iv]
		if !ok {
			return fmt.Errorf("interval %s not registered for %s", iv, reqs.Symbol)
		}
		if rec.BarCount() > 0 {
			// already backfilled by an earlier operation on this symbol
			continue
		}

		if !rec.Derived {
			var bars []models.MBar
			err := helpers.RetryWithBackoff("load historical "+iv, storeRetries, storeBaseDelay, func() error {
				var loadErr error
				bars, loadErr = e.store.LoadBars(reqs.Symbol, iv, from, to)
				return loadErr
			})
			if err != nil {
				return err
			}
			rec.AppendBars(bars)
			e.Logger.Debug("Backfilled %d %s bars for %s", len(bars), iv, reqs.Symbol)
			continue
		}

		if err := e.backfillDerived(reqs.Symbol, sym, rec, to.Unix()); err != nil {
			return err
		}
	}
	return nil
}

// -----------------------------------------------------------------------------

// backfillDerived rebuilds a derived interval from its source record, up to
// (and excluding windows closing after) upTo.
func (e *Engine) backfillDerived(symbol string, sym *session.SymbolSessionData, rec *session.BarIntervalData, upTo int64) error {
	src, ok := sym.Intervals[rec.SourceInterval]
	if !ok {
		return fmt.Errorf("source interval %s missing for derived %s", rec.SourceInterval, rec.Interval)
	}

	wSec, err := intervals.Seconds(rec.Interval)
	if err != nil {
		return err
	}
	srcSec, err := intervals.Seconds(rec.SourceInterval)
	if err != nil {
		return err
	}

	res := e.aggregator.Aggregate(symbol, rec.Interval, wSec, srcSec, src.Bars(), rec.Watermark, upTo)
	rec.Watermark = res.Watermark
	rec.AppendBars(res.Bars)
	if res.Skipped > 0 {
		e.Logger.Debug("Skipped %d incomplete %s windows for %s during backfill", res.Skipped, rec.Interval, symbol)
	}
	return nil
}

// -----------------------------------------------------------------------------

// stepLoadSessionQueue loads the current day's streamed bars into the
// symbol's pending queue. The processor drains it as simulated time advances.
func (e *Engine) stepLoadSessionQueue(reqs *models.MProvisioningRequirements) error {
	sym, ok := e.session.Symbol(reqs.Symbol)
	if !ok {
		return fmt.Errorf("symbol %s not found in session", reqs.Symbol)
	}

	dayOpen, dayClose := e.day()

	var bars []models.MBar
	err := helpers.RetryWithBackoff("load session queue", storeRetries, storeBaseDelay, func() error {
		var loadErr error
		bars, loadErr = e.store.LoadBars(reqs.Symbol, reqs.Decision.StreamInterval, dayOpen, dayClose)
		return loadErr
	})
	if err != nil {
		return err
	}

	sym.SetQueue(bars)
	e.Logger.Info("Loaded %d %s bars into session queue for %s", len(bars), reqs.Decision.StreamInterval, reqs.Symbol)
	return nil
}

// -----------------------------------------------------------------------------

func (e *Engine) stepRegisterIndicator(reqs *models.MProvisioningRequirements, cfg models.MIndicatorConfig) error {
	lookback, err := e.registry.Lookback(cfg)
	if err != nil {
		return err
	}
	return e.session.RegisterIndicator(reqs.Symbol, &session.IndicatorInstance{
		Config:   cfg,
		Lookback: lookback,
	})
}

// -----------------------------------------------------------------------------

// stepRecomputeQuality rescoring runs last so it sees every bar the earlier
// steps loaded. Completeness is measured against the span the record actually
// covers.
func (e *Engine) stepRecomputeQuality(reqs *models.MProvisioningRequirements) error {
	sym, ok := e.session.Symbol(reqs.Symbol)
	if !ok {
		return fmt.Errorf("symbol %s not found in session", reqs.Symbol)
	}

	for iv, rec := range sym.Intervals {
		ivSec, err := intervals.Seconds(iv)
		if err != nil {
			return err
		}

		bars := rec.Bars()
		if len(bars) == 0 {
			rec.QualityScore = 0
			continue
		}

		span := bars[len(bars)-1].EndTime - bars[0].StartTime
		rec.QualityScore = e.quality(len(bars), analysis.ExpectedBars(span, ivSec))
	}
	return nil
}
