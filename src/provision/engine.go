package provision

import (
	"strings"
	"sync"
	"time"

	"backtest-engine/src/analysis"
	"backtest-engine/src/helpers"
	"backtest-engine/src/interfaces"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"
	"backtest-engine/src/session"
)

// -----------------------------------------------------------------------------
// Engine is the single entry path for symbol/bar/indicator mutation. Every
// caller (static config, scheduled scanner, running strategy, control API)
// goes through the same analyze -> validate -> execute pipeline.
// -----------------------------------------------------------------------------

type Engine struct {
	session    *session.SessionData
	store      interfaces.IHistoricalStore
	registry   interfaces.IIndicatorRegistry
	quality    analysis.QualityFunc
	aggregator analysis.BarAggregator
	Logger     *logger.Logger

	// Full backfill depth for non-adhoc symbols, in days of history.
	historicalDays int

	// Provisioning operations are serialized: analyze reads the session state
	// its execute phase will mutate.
	opMu sync.Mutex

	// Current session-day bounds, replaced by the coordinator each day.
	dayMu    sync.RWMutex
	dayOpen  time.Time
	dayClose time.Time
}

// -----------------------------------------------------------------------------

func NewEngine(sess *session.SessionData, store interfaces.IHistoricalStore, registry interfaces.IIndicatorRegistry, historicalDays int, log *logger.Logger) *Engine {
	return &Engine{
		session:        sess,
		store:          store,
		registry:       registry,
		quality:        analysis.Score,
		Logger:         log,
		historicalDays: historicalDays,
	}
}

// -----------------------------------------------------------------------------

// SetDay installs the current session-day bounds. Called at Phase 1 before
// any provisioning for that day runs.
func (e *Engine) SetDay(open, close time.Time) {
	e.dayMu.Lock()
	e.dayOpen = open
	e.dayClose = close
	e.dayMu.Unlock()
}

func (e *Engine) day() (time.Time, time.Time) {
	e.dayMu.RLock()
	defer e.dayMu.RUnlock()
	return e.dayOpen, e.dayClose
}

// -----------------------------------------------------------------------------

// Synchronized runs fn under the provisioning operation lock. Pipeline stages
// wrap each tick in it so a mid-day scan or control-API provision never
// appends to an interval record the tick is reading.
func (e *Engine) Synchronized(fn func()) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	fn()
}

// -----------------------------------------------------------------------------
// Request describes one provisioning operation before analysis.
// -----------------------------------------------------------------------------

type Request struct {
	Symbol     string
	Kind       models.OperationKind
	Intervals  []string
	Indicators []models.MIndicatorConfig
	By         models.SourceTag

	// Adhoc requests provision minimally: only the intervals the indicator
	// needs and a warm-up window instead of a full backfill.
	Adhoc bool
}

// -----------------------------------------------------------------------------
// Caller-facing entry points
// -----------------------------------------------------------------------------

// AddSymbol provisions a symbol with the given intervals and indicators.
func (e *Engine) AddSymbol(symbol string, ivs []string, inds []models.MIndicatorConfig, by models.SourceTag) models.MOperationResult {
	return e.provision(Request{
		Symbol:     symbol,
		Kind:       models.OpSymbol,
		Intervals:  ivs,
		Indicators: inds,
		By:         by,
		Adhoc:      by == models.SourceScanner || by == models.SourceAdhoc,
	})
}

// -----------------------------------------------------------------------------

// AddBarInterval adds one interval to an existing symbol.
func (e *Engine) AddBarInterval(symbol, interval string, by models.SourceTag) models.MOperationResult {
	return e.provision(Request{
		Symbol:    symbol,
		Kind:      models.OpBar,
		Intervals: []string{interval},
		By:        by,
	})
}

// -----------------------------------------------------------------------------

// AddIndicator registers one indicator on an existing symbol, adding the
// interval it runs on when missing.
func (e *Engine) AddIndicator(symbol string, cfg models.MIndicatorConfig, by models.SourceTag) models.MOperationResult {
	return e.provision(Request{
		Symbol:     symbol,
		Kind:       models.OpIndicator,
		Indicators: []models.MIndicatorConfig{cfg},
		By:         by,
	})
}

// -----------------------------------------------------------------------------

// RemoveSymbol drops a symbol and everything it owns.
func (e *Engine) RemoveSymbol(symbol string, by models.SourceTag) models.MOperationResult {
	res := models.MOperationResult{Symbol: symbol, Kind: models.OpSymbol}

	if err := e.session.RemoveSymbol(symbol); err != nil {
		res.Reason = err.Error()
		return res
	}

	e.Logger.Info("Removed symbol %s (requested by %s)", symbol, by)
	res.Success = true
	return res
}

// -----------------------------------------------------------------------------
// provision runs one operation through all three phases.
// -----------------------------------------------------------------------------

func (e *Engine) provision(req Request) models.MOperationResult {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	res := models.MOperationResult{Symbol: req.Symbol, Kind: req.Kind}

	if !models.ValidSourceTag(req.By) {
		res.Reason = "unknown source attribution: " + string(req.By)
		return res
	}

	reqs := e.Analyze(req)
	val := e.Validate(req, &reqs)

	if !reqs.CanProceed || !val.CanProceed {
		reasons := append([]string{}, reqs.Reasons...)
		reasons = append(reasons, val.Reasons...)
		res.Reason = strings.Join(reasons, "; ")
		e.Logger.Warning("Provisioning blocked for %s (%s): %s", req.Symbol, req.Kind, res.Reason)
		return res
	}

	if err := e.Execute(&reqs); err != nil {
		// Completed steps are NOT rolled back: the symbol may remain
		// partially provisioned rather than fully undone.
		res.Reason = err.Error()
		return res
	}

	res.Success = true
	res.Upgraded = reqs.IsUpgrade
	return res
}

// -----------------------------------------------------------------------------
// Batch provisioning (session start and scheduled scans)
// -----------------------------------------------------------------------------

type BatchResult struct {
	Results   []models.MOperationResult
	Succeeded int
	Failed    int
}

// ProvisionBatch runs each request independently: one symbol's failure never
// blocks the others. When sessionStart is set and every request fails, the
// returned error is fatal (the session must not start).
func (e *Engine) ProvisionBatch(requests []Request, sessionStart bool) (BatchResult, error) {
	var batch BatchResult

	for _, req := range requests {
		res := e.provision(req)
		batch.Results = append(batch.Results, res)
		if res.Success {
			batch.Succeeded++
		} else {
			batch.Failed++
			e.Logger.Warning("Batch provisioning failed for %s: %s", req.Symbol, res.Reason)
		}
	}

	if sessionStart && len(requests) > 0 && batch.Succeeded == 0 {
		return batch, helpers.NewAllSymbolsFailedError(len(requests))
	}
	return batch, nil
}
