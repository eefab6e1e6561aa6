package coordinator

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"backtest-engine/src/helpers"
	"backtest-engine/src/interfaces"
	"backtest-engine/src/intervals"
	"backtest-engine/src/logger"
	"backtest-engine/src/models"
	"backtest-engine/src/provision"
	"backtest-engine/src/session"
	"backtest-engine/src/utils"
)

// -----------------------------------------------------------------------------
// Coordinator owns simulated time and the multi-day session loop. It drives
// three pipeline stages (coordinator -> processor -> analysis -> coordinator)
// whose only handoff mechanism is the StreamSubscription gate. Pausing gates
// the coordinator's own tick start through the same primitive; no separate
// pause mechanism exists.
//
// State machine: STOPPED -> RUNNING <-> PAUSED -> STOPPED (terminal).
// -----------------------------------------------------------------------------

const (
	StateStopped = "STOPPED"
	StateRunning = "RUNNING"
	StatePaused  = "PAUSED"
)

type Coordinator struct {
	Config    *models.MConfig
	Logger    *logger.Logger
	Session   *session.SessionData
	Engine    *provision.Engine
	Store     interfaces.IHistoricalStore
	Scheduler *utils.MarketScheduler
	Exchanger interfaces.IDataExchanger // nil when running headless

	mode        session.ScheduleMode
	tickTimeout time.Duration

	// stateMu also guards currentDay and history: the HTTP goroutine reads
	// both through Snapshot/History while the session loop writes them.
	stateMu    sync.Mutex
	state      string
	started    bool
	currentDay string
	history    []models.MDayMetrics

	// Stage gates, cycled every tick.
	procGate     *session.StreamSubscription // coordinator -> processor
	analysisGate *session.StreamSubscription // processor -> analysis
	coordGate    *session.StreamSubscription // analysis -> coordinator
	pauseGate    *session.StreamSubscription // resume -> paused coordinator

	proc *processor
	anl  *analysisStage

	metrics *dayCounters

	doneCh chan struct{}
	wg     sync.WaitGroup
}

// -----------------------------------------------------------------------------

func NewCoordinator(cfg *models.MConfig, sess *session.SessionData, eng *provision.Engine, store interfaces.IHistoricalStore, sched *utils.MarketScheduler, log *logger.Logger) *Coordinator {
	mode := session.DataDriven
	if cfg.Session.Mode == "clock" {
		mode = session.ClockDriven
	}

	c := &Coordinator{
		Config:      cfg,
		Logger:      log,
		Session:     sess,
		Engine:      eng,
		Store:       store,
		Scheduler:   sched,
		mode:        mode,
		tickTimeout: time.Duration(cfg.Session.ClockTimeoutMs) * time.Millisecond,
		state:       StateStopped,
		metrics:     &dayCounters{},
		doneCh:      make(chan struct{}),
	}

	c.procGate = session.NewStreamSubscription("coordinator->processor", mode)
	c.analysisGate = session.NewStreamSubscription("processor->analysis", mode)
	c.coordGate = session.NewStreamSubscription("analysis->coordinator", mode)
	// Pause always blocks indefinitely regardless of the session mode.
	c.pauseGate = session.NewStreamSubscription("pause", session.DataDriven)

	c.proc = newProcessor(c)
	c.anl = newAnalysisStage(c)
	return c
}

// -----------------------------------------------------------------------------
// State machine
// -----------------------------------------------------------------------------

// State returns "STOPPED", "RUNNING" or "PAUSED".
func (c *Coordinator) State() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.state
}

// -----------------------------------------------------------------------------

// Pause freezes simulated time. Only legal from RUNNING, and never in live
// mode: real market time cannot be frozen.
func (c *Coordinator) Pause() bool {
	if c.Config.Session.Live {
		c.Logger.Warning("Pause rejected: session is live")
		return false
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != StateRunning {
		return false
	}
	c.pauseGate.Reset()
	c.state = StatePaused
	c.Logger.Info("Session paused at %s", c.Session.Clock().Now().Format(time.RFC3339))
	return true
}

// -----------------------------------------------------------------------------

// Resume unfreezes simulated time. Only legal from PAUSED.
func (c *Coordinator) Resume() bool {
	if c.Config.Session.Live {
		return false
	}

	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	if c.state != StatePaused {
		return false
	}
	c.state = StateRunning
	c.pauseGate.SignalReady()
	c.Logger.Info("Session resumed")
	return true
}

// -----------------------------------------------------------------------------

// Stop ends the session irreversibly. Every outstanding gate is
// force-signaled so indefinitely blocked stages observe the stop and exit.
func (c *Coordinator) Stop() {
	c.stateMu.Lock()
	alreadyStopped := c.state == StateStopped && c.started
	c.state = StateStopped
	c.stateMu.Unlock()
	if alreadyStopped {
		return
	}

	c.procGate.Stop()
	c.analysisGate.Stop()
	c.coordGate.Stop()
	c.pauseGate.Stop()
	c.Logger.Info("Session stop requested")
}

// -----------------------------------------------------------------------------

// Done is closed when the session loop has fully exited.
func (c *Coordinator) Done() <-chan struct{} {
	return c.doneCh
}

// -----------------------------------------------------------------------------
// Session loop
// -----------------------------------------------------------------------------

// Run executes Phase 0 then the multi-day loop. It blocks until the session
// ends (final day processed, Stop called, or a fatal error).
func (c *Coordinator) Run() error {
	c.stateMu.Lock()
	if c.started {
		c.stateMu.Unlock()
		return fmt.Errorf("session already ran; STOPPED is terminal")
	}
	c.started = true
	c.state = StateRunning
	c.stateMu.Unlock()

	defer close(c.doneCh)

	// Phase 0: system-wide stream-config validation, run once.
	if err := c.validateStreamConfig(); err != nil {
		c.Stop()
		return err
	}

	c.startStages()

	err := c.runDays()

	// Stop before waiting: blocked stages only exit once their gates are
	// force-signaled.
	c.Stop()
	c.wg.Wait()

	if err != nil {
		c.Logger.Error("Session ended with error: %v", err)
	}
	return err
}

// -----------------------------------------------------------------------------

func (c *Coordinator) startStages() {
	c.wg.Add(2)
	go func() {
		defer c.wg.Done()
		c.proc.run()
	}()
	go func() {
		defer c.wg.Done()
		c.anl.run()
	}()
}

// -----------------------------------------------------------------------------

// validateStreamConfig is Phase 0: the configuration must be coherent before
// any day starts. Per-symbol data problems are handled later, per symbol.
func (c *Coordinator) validateStreamConfig() error {
	s := c.Config.Session

	for _, sym := range s.Symbols {
		if len(sym.Intervals) == 0 && len(sym.Indicators) == 0 {
			return &helpers.ConfigurationError{SessionError: helpers.SessionError{
				Message: fmt.Sprintf("symbol %s requests no intervals and no indicators", sym.Symbol),
			}}
		}
		for _, iv := range sym.Intervals {
			if _, err := intervals.Seconds(iv); err != nil {
				return &helpers.ConfigurationError{SessionError: helpers.SessionError{
					Message: fmt.Sprintf("symbol %s: bad interval", sym.Symbol), Cause: err,
				}}
			}
		}
	}

	c.Logger.Info("Stream configuration validated: %d symbols, mode=%s, live=%t",
		len(s.Symbols), c.mode, s.Live)
	return nil
}

// -----------------------------------------------------------------------------

func (c *Coordinator) runDays() error {
	cal := c.Scheduler.Primary()

	// The day cursor lives in the exchange timezone. A UTC-midnight cursor
	// would land on the previous evening in New York and shift every session
	// label by one day.
	loc := cal.Location()

	var day, finalDay time.Time
	if c.Config.Session.Live {
		now := time.Now().In(loc)
		day = cal.FirstTradingDayFrom(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc))
		finalDay = day
	} else {
		start, _ := time.ParseInLocation("2006-01-02", c.Config.Session.StartDate, loc)
		end, _ := time.ParseInLocation("2006-01-02", c.Config.Session.EndDate, loc)
		day = cal.FirstTradingDayFrom(start)
		finalDay = end
	}

	first := true
	for c.State() != StateStopped && !day.After(finalDay) {
		// Phase 1: teardown. Everything from the previous day is destroyed
		// wholesale; the simulated clock jumps to the new day's open.
		if !first {
			c.Session.Reset()
		}
		first = false

		open, close := c.Scheduler.SessionBounds(day)
		c.Session.Clock().Set(open)
		c.Engine.SetDay(open, close)
		c.metrics.reset()
		label := day.Format("2006-01-02")
		c.stateMu.Lock()
		c.currentDay = label
		c.stateMu.Unlock()
		c.proc.resetDay()
		c.anl.resetDay()
		c.Logger.Info("Session day %s: open=%s close=%s", label,
			open.Format("15:04"), close.Format("15:04"))

		// Phase 2: provision every configured symbol. One failure degrades;
		// all failing aborts the session.
		if err := c.provisionConfiguredSymbols(); err != nil {
			return err
		}

		// Phase 3: streaming.
		if err := c.streamDay(open, close); err != nil {
			return err
		}

		// Phase 4: end of day. Metrics recorded; data survives only on the
		// final day, for downstream export.
		c.recordDay()
		c.publish(true)

		day = c.Scheduler.NextTradingDay(day)
	}
	return nil
}

// -----------------------------------------------------------------------------

func (c *Coordinator) provisionConfiguredSymbols() error {
	var requests []provision.Request
	for _, sym := range c.Config.Session.Symbols {
		requests = append(requests, provision.Request{
			Symbol:     sym.Symbol,
			Kind:       models.OpSymbol,
			Intervals:  sym.Intervals,
			Indicators: sym.Indicators,
			By:         models.SourceConfig,
		})
	}

	batch, err := c.Engine.ProvisionBatch(requests, true)
	c.metrics.symbolsProvisioned.Store(int64(batch.Succeeded))
	c.metrics.provisioningFailures.Store(int64(batch.Failed))
	if err != nil {
		return err
	}

	c.Logger.Info("Day %s provisioned: %d ok, %d failed", c.day(), batch.Succeeded, batch.Failed)
	return nil
}

// -----------------------------------------------------------------------------

// streamDay is the Phase 3 tick loop. Each tick: advance simulated time,
// signal the processor, then (data-driven) wait for the analysis stage to
// hand the token back, or (clock-driven) wait at most the configured timeout
// and proceed regardless.
func (c *Coordinator) streamDay(open, close time.Time) error {
	scans := newScanSchedule(c.Config.Session.Scans, open)

	for {
		if c.State() == StateStopped {
			return nil
		}

		// Pause gates the tick start through the same handoff primitive the
		// stages use. Simulated time is frozen for the whole wait.
		if c.State() == StatePaused {
			if !c.pauseGate.WaitUntilReady(0) {
				return nil
			}
		}

		now, ok := c.advanceTime(close)
		if !ok {
			return nil // day exhausted
		}
		c.metrics.ticks.Add(1)

		scans.fire(c, now)

		c.procGate.SignalReady()

		if c.coordGate.WaitUntilReady(c.tickTimeout) {
			c.coordGate.Reset()
		} else {
			if c.coordGate.Stopped() {
				return nil
			}
			// Clock-driven timeout: the pipeline lags this tick. Tolerated,
			// bounded by the liveness ceiling; the tick's tardy completion
			// signal is drained and counted, never carried into the next
			// tick.
			c.coordGate.Lapse()
		}

		if err := c.checkLiveness(); err != nil {
			return err
		}

		c.publish(false)
	}
}

// -----------------------------------------------------------------------------

// advanceTime applies the configured time advancement policy and returns the
// new simulated time. ok=false means the trading day is over.
func (c *Coordinator) advanceTime(close time.Time) (time.Time, bool) {
	clock := c.Session.Clock()

	if c.Config.Session.Live {
		tick := time.Duration(c.Config.Session.TickSeconds) * time.Second
		for {
			now := time.Now()
			clock.Set(now)
			if now.After(close) {
				return now, false
			}
			if c.Scheduler.AnyMarketOpen() {
				time.Sleep(tick)
				return now, true
			}
			// No tracked market is open (holiday hours, pre-open); idle
			// through the tick instead of streaming nothing.
			if c.State() == StateStopped {
				return now, false
			}
			time.Sleep(tick)
		}
	}

	if c.mode == session.DataDriven {
		// Jump straight to the next available data timestamp; idle time is
		// skipped entirely.
		next, ok := c.nextDataTime()
		if !ok || next.After(close) {
			return clock.Now(), false
		}
		clock.Set(next)
		return next, true
	}

	// Clock-driven: fixed simulated increment per wall-clock tick, paced by
	// the speed multiplier and independent of data availability.
	wall := time.Duration(float64(c.Config.Session.TickSeconds) * float64(time.Second) / c.Config.Session.SpeedMultiplier)
	time.Sleep(wall)
	now := clock.Advance(time.Duration(c.Config.Session.TickSeconds) * time.Second)
	if now.After(close) {
		return now, false
	}
	return now, true
}

// -----------------------------------------------------------------------------

// nextDataTime finds the earliest pending queue timestamp across all symbols.
func (c *Coordinator) nextDataTime() (time.Time, bool) {
	var best int64
	found := false
	for _, sym := range c.Session.Symbols() {
		if ts, ok := sym.NextQueuedTime(); ok {
			if !found || ts < best {
				best = ts
				found = true
			}
		}
	}
	if !found {
		return time.Time{}, false
	}
	return time.Unix(best, 0).UTC(), true
}

// -----------------------------------------------------------------------------

// checkLiveness enforces the overrun ceiling. Overruns only exist in
// clock-driven mode; a data-driven stall is backpressure, not a failure.
func (c *Coordinator) checkLiveness() error {
	if c.mode != session.ClockDriven {
		return nil
	}

	total := c.procGate.OverrunCount() + c.analysisGate.OverrunCount() + c.coordGate.OverrunCount()
	c.metrics.overruns.Store(total)

	if total > int64(c.Config.Session.MaxOverruns) {
		err := helpers.NewLivenessError("pipeline", total)
		c.Logger.Error("%v", err)
		return err
	}
	return nil
}

// -----------------------------------------------------------------------------
// Snapshots and metrics
// -----------------------------------------------------------------------------

// day returns the current session-day label.
func (c *Coordinator) day() string {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return c.currentDay
}

// -----------------------------------------------------------------------------

func (c *Coordinator) recordDay() {
	m := c.metrics.toModel(c.day())
	c.stateMu.Lock()
	c.history = append(c.history, m)
	c.stateMu.Unlock()
	c.Logger.Info("Day %s done: ticks=%d streamed=%d generated=%d quotes=%d skipped=%d overruns=%d",
		m.Day, m.Ticks, m.BarsStreamed, m.BarsGenerated, m.QuotesSynthesized, m.IncompleteWindows, m.Overruns)
}

// -----------------------------------------------------------------------------

// History returns the per-day metrics recorded so far.
func (c *Coordinator) History() []models.MDayMetrics {
	c.stateMu.Lock()
	defer c.stateMu.Unlock()
	return append([]models.MDayMetrics{}, c.history...)
}

// -----------------------------------------------------------------------------

// Snapshot builds the externally visible session state.
func (c *Coordinator) Snapshot() models.MSessionSnapshot {
	c.stateMu.Lock()
	state := c.state
	day := c.currentDay
	c.stateMu.Unlock()

	// Bar counts and quality scores are written by the stages mid-tick;
	// read them under the same exclusion the stages use.
	var statuses map[string]models.MSymbolStatus
	c.Engine.Synchronized(func() {
		statuses = c.Session.SymbolStatuses()
	})

	return models.MSessionSnapshot{
		Type:          "UPDATE",
		State:         state,
		Mode:          c.mode.String(),
		Day:           day,
		SimulatedTime: c.Session.Clock().Now().Unix(),
		Symbols:       statuses,
		Metrics:       c.metrics.toModel(day),
		Timestamp:     time.Now().Unix(),
	}
}

// -----------------------------------------------------------------------------

func (c *Coordinator) publish(broadcast bool) {
	if c.Exchanger == nil {
		return
	}
	snap := c.Snapshot()
	if broadcast {
		c.Exchanger.Broadcast(snap)
		return
	}
	c.Exchanger.UpdateState(snap)
}

// -----------------------------------------------------------------------------
// dayCounters collects per-day metrics across the three stages. Atomic fields
// because processor and analysis write while the coordinator reads.
// -----------------------------------------------------------------------------

type dayCounters struct {
	ticks                atomic.Int64
	barsStreamed         atomic.Int64
	barsGenerated        atomic.Int64
	quotesSynthesized    atomic.Int64
	incompleteWindows    atomic.Int64
	overruns             atomic.Int64
	symbolsProvisioned   atomic.Int64
	provisioningFailures atomic.Int64
}

func (d *dayCounters) reset() {
	d.ticks.Store(0)
	d.barsStreamed.Store(0)
	d.barsGenerated.Store(0)
	d.quotesSynthesized.Store(0)
	d.incompleteWindows.Store(0)
	d.overruns.Store(0)
	d.symbolsProvisioned.Store(0)
	d.provisioningFailures.Store(0)
}

func (d *dayCounters) toModel(day string) models.MDayMetrics {
	return models.MDayMetrics{
		Day:                  day,
		Ticks:                d.ticks.Load(),
		BarsStreamed:         d.barsStreamed.Load(),
		BarsGenerated:        d.barsGenerated.Load(),
		QuotesSynthesized:    d.quotesSynthesized.Load(),
		IncompleteWindows:    d.incompleteWindows.Load(),
		Overruns:             d.overruns.Load(),
		SymbolsProvisioned:   int(d.symbolsProvisioned.Load()),
		ProvisioningFailures: int(d.provisioningFailures.Load()),
		RecordedAt:           time.Now().UTC(),
	}
}
