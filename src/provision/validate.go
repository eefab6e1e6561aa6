package provision

import (
	"fmt"

	"backtest-engine/src/intervals"
	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// Validate phase: independent checks, all of which run and all of whose
// failure reasons accumulate. Produces canProceed plus the full reason list;
// never panics and never returns an error.
// -----------------------------------------------------------------------------

func (e *Engine) Validate(req Request, reqs *models.MProvisioningRequirements) models.MSymbolValidationResult {
	v := models.MSymbolValidationResult{
		Symbol:               req.Symbol,
		SourceReachable:      true,
		IntervalsDerivable:   true,
		HistoricalSufficient: true,
		CanProceed:           true,
	}

	// Check 1: data source reachable.
	avail, err := e.store.Availability(req.Symbol)
	switch {
	case err != nil:
		v.SourceReachable = false
		v.CanProceed = false
		v.Reasons = append(v.Reasons, fmt.Sprintf("data source unreachable for %s: %v", req.Symbol, err))
	case !avail.HasAnyBase():
		v.SourceReachable = false
		v.CanProceed = false
		v.Reasons = append(v.Reasons, fmt.Sprintf("no base granularity available for %s", req.Symbol))
	}

	// Check 2: every requested interval derivable from available base data.
	// Runs even when the source is unreachable so all reasons surface.
	for _, iv := range e.requestedIntervals(req) {
		if _, err := intervals.Seconds(iv); err != nil {
			v.IntervalsDerivable = false
			v.CanProceed = false
			v.Reasons = append(v.Reasons, err.Error())
			continue
		}
		if ok, reason := intervals.Derivable(avail, iv); !ok {
			v.IntervalsDerivable = false
			v.CanProceed = false
			v.Reasons = append(v.Reasons, reason)
		}
	}

	// Check 2b: indicator configurations accepted by the registry.
	for _, ind := range req.Indicators {
		if err := e.registry.Validate(ind); err != nil {
			v.CanProceed = false
			v.Reasons = append(v.Reasons, err.Error())
		}
	}

	// Check 3: sufficient historical depth behind the session day.
	if reqs.NeedsHistorical && v.SourceReachable && reqs.Decision.StreamInterval != "" {
		dayOpen, _ := e.day()
		needBefore := dayOpen.AddDate(0, 0, -reqs.HistoricalDepth)

		earliest, err := e.store.EarliestBar(req.Symbol, reqs.Decision.StreamInterval)
		if err != nil || earliest.After(needBefore) {
			v.HistoricalSufficient = false
			v.CanProceed = false
			v.Reasons = append(v.Reasons, fmt.Sprintf(
				"insufficient historical depth for %s: need %d day(s) before %s",
				req.Symbol, reqs.HistoricalDepth, dayOpen.Format("2006-01-02")))
		}
	}

	// Check 4: not a disallowed duplicate. The analyze phase already blocked
	// the plan; the validation result just reflects it.
	if !reqs.CanProceed {
		v.CanProceed = false
	}

	return v
}
