package provision

import (
	"fmt"

	"backtest-engine/src/intervals"
	"backtest-engine/src/models"
	"backtest-engine/src/session"
)

// -----------------------------------------------------------------------------
// Analyze phase: compute what the operation requires (intervals and their
// generation sources, backfill scope, queue loading, the ordered step plan)
// against the current session state. Already-satisfied operations are
// flagged as duplicates; a full-scope request against an adhoc symbol is an
// upgrade, not a duplicate.
// -----------------------------------------------------------------------------

func (e *Engine) Analyze(req Request) models.MProvisioningRequirements {
	reqs := models.MProvisioningRequirements{
		Symbol:      req.Symbol,
		Operation:   req.Kind,
		RequestedBy: req.By,
		Adhoc:       req.Adhoc,
		CanProceed:  true,
	}

	requested := e.requestedIntervals(req)
	if len(requested) == 0 {
		reqs.Block("nothing requested: no intervals or indicators")
		return reqs
	}

	existing, exists := e.session.Symbol(req.Symbol)
	if !exists && req.Kind != models.OpSymbol {
		reqs.Block(fmt.Sprintf("symbol %s not found; add the symbol first", req.Symbol))
		return reqs
	}

	// Resolve the stream/generation plan. Without availability there is no
	// plan to build; validation will report reachability in detail.
	avail, err := e.store.Availability(req.Symbol)
	if err != nil {
		reqs.Block(fmt.Sprintf("data source unreachable for %s: %v", req.Symbol, err))
		return reqs
	}

	required, decision, err := requiredClosure(avail, requested)
	if err != nil {
		reqs.Block(err.Error())
		return reqs
	}
	reqs.RequiredIntervals = required
	reqs.Decision = decision

	// Backfill scope: full depth for full-scope requests, a minimal warm-up
	// window for adhoc ones.
	if req.Adhoc {
		reqs.NeedsHistorical = len(req.Indicators) > 0
		reqs.HistoricalDepth = 1
	} else {
		reqs.NeedsHistorical = true
		reqs.HistoricalDepth = e.historicalDays
	}

	if !exists {
		reqs.NeedsSessionLoad = true
		e.planNewSymbol(&reqs, req)
		return reqs
	}

	e.planExistingSymbol(&reqs, req, existing)
	return reqs
}

// -----------------------------------------------------------------------------

// requestedIntervals merges explicitly requested intervals with the intervals
// the requested indicators run on.
func (e *Engine) requestedIntervals(req Request) []string {
	out := append([]string{}, req.Intervals...)
	for _, ind := range req.Indicators {
		if ind.Interval != "" {
			out = append(out, ind.Interval)
		}
	}
	return intervals.Dedupe(out)
}

// -----------------------------------------------------------------------------

// requiredClosure expands the requested set with the streamed base and every
// transitive generation source, so each derived interval's source is itself
// registered. Returns the set sorted ascending and the final decision.
func requiredClosure(avail models.MAvailabilityInfo, requested []string) ([]string, models.MStreamDecision, error) {
	set := append([]string{}, requested...)

	for {
		decision, err := intervals.Resolve(avail, set)
		if err != nil {
			return nil, models.MStreamDecision{}, err
		}

		next := intervals.Dedupe(append(append([]string{decision.StreamInterval}, set...), sourcesOf(decision)...))
		if len(next) == len(set) {
			intervals.SortAscending(next)
			// one final resolve over the stable set keeps the decision in sync
			final, err := intervals.Resolve(avail, next)
			if err != nil {
				return nil, models.MStreamDecision{}, err
			}
			return next, final, nil
		}
		set = next
	}
}

func sourcesOf(d models.MStreamDecision) []string {
	out := make([]string, 0, len(d.Generated))
	for _, g := range d.Generated {
		out = append(out, g.Source)
	}
	return out
}

// -----------------------------------------------------------------------------

// planNewSymbol builds the full step plan for a symbol not yet in session.
func (e *Engine) planNewSymbol(reqs *models.MProvisioningRequirements, req Request) {
	reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepCreateSymbol})
	e.appendIntervalSteps(reqs, reqs.RequiredIntervals)

	if reqs.NeedsHistorical {
		reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepLoadHistorical})
	}
	reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepLoadSessionQueue})

	for _, ind := range req.Indicators {
		reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepRegisterIndicator, Indicator: ind})
	}
	reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepRecomputeQuality})
}

// -----------------------------------------------------------------------------

// planExistingSymbol handles upgrades, incremental adds, and duplicates.
func (e *Engine) planExistingSymbol(reqs *models.MProvisioningRequirements, req Request, existing *session.SymbolSessionData) {
	missingIvs := e.missingIntervals(reqs.RequiredIntervals, existing)
	missingInds := e.missingIndicators(req.Indicators, existing)

	isAdhoc := existing.Meta.AutoProvisioned && !existing.Meta.MeetsFullRequirements
	upgrade := req.Kind == models.OpSymbol && isAdhoc && !req.Adhoc

	if !upgrade && len(missingIvs) == 0 && len(missingInds) == 0 {
		switch req.Kind {
		case models.OpBar:
			reqs.Block(fmt.Sprintf("duplicate: interval already provisioned for %s", req.Symbol))
		case models.OpIndicator:
			reqs.Block(fmt.Sprintf("duplicate: indicator already registered for %s", req.Symbol))
		default:
			reqs.Block(fmt.Sprintf("duplicate: symbol %s already fully provisioned", req.Symbol))
		}
		return
	}

	if upgrade {
		reqs.IsUpgrade = true
		reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepUpgradeSymbol})
	}

	e.appendIntervalSteps(reqs, missingIvs)

	if reqs.NeedsHistorical {
		reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepLoadHistorical})
	}

	// The stream queue survives incremental adds; reload only if the symbol
	// has never had its streamed base registered.
	if _, ok := existing.Intervals[reqs.Decision.StreamInterval]; !ok {
		reqs.NeedsSessionLoad = true
		reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepLoadSessionQueue})
	}

	for _, ind := range missingInds {
		reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepRegisterIndicator, Indicator: ind})
	}
	reqs.Steps = append(reqs.Steps, models.MProvisioningStep{Kind: models.StepRecomputeQuality})
}

// -----------------------------------------------------------------------------

func (e *Engine) missingIntervals(required []string, existing *session.SymbolSessionData) []string {
	var out []string
	for _, iv := range required {
		if _, ok := existing.Intervals[iv]; !ok {
			out = append(out, iv)
		}
	}
	return out
}

func (e *Engine) missingIndicators(requested []models.MIndicatorConfig, existing *session.SymbolSessionData) []models.MIndicatorConfig {
	var out []models.MIndicatorConfig
	for _, cfg := range requested {
		if _, ok := existing.Indicators[cfg.Key()]; !ok {
			out = append(out, cfg)
		}
	}
	return out
}

// -----------------------------------------------------------------------------

// appendIntervalSteps emits one add-interval step per interval, smallest span
// first so generation sources are registered before their dependents.
func (e *Engine) appendIntervalSteps(reqs *models.MProvisioningRequirements, ivs []string) {
	ordered := append([]string{}, ivs...)
	intervals.SortAscending(ordered)

	for _, iv := range ordered {
		step := models.MProvisioningStep{Kind: models.StepAddInterval, Interval: iv}
		if iv != reqs.Decision.StreamInterval {
			for _, g := range reqs.Decision.Generated {
				if g.Interval == iv {
					step.Derived = true
					step.SourceInterval = g.Source
					break
				}
			}
		}
		reqs.Steps = append(reqs.Steps, step)
	}
}
