package session

import (
	"sync"
	"time"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// SymbolSessionData and its children. Owned by SessionData; destroyed
// wholesale at day teardown (the final day is retained for export).
// -----------------------------------------------------------------------------

// SymbolMeta carries symbol lifecycle metadata.
type SymbolMeta struct {
	AddedBy               models.SourceTag `json:"added_by"`
	AutoProvisioned       bool             `json:"auto_provisioned"`
	MeetsFullRequirements bool             `json:"meets_full_requirements"`
	UpgradedFromAdhoc     bool             `json:"upgraded_from_adhoc"` // monotonic false->true
	AddedAt               time.Time        `json:"added_at"`            // simulated timestamp
}

// -----------------------------------------------------------------------------

type SymbolSessionData struct {
	Symbol       string
	BaseInterval string
	Decision     models.MStreamDecision
	Intervals    map[string]*BarIntervalData
	Indicators   map[string]*IndicatorInstance
	Meta         SymbolMeta

	// Most recent quote, synthesized from the finest streamed bar in
	// simulated mode. Written by the processor only.
	LastQuote models.MQuote

	// Current-day session queue: base bars pending consumption, drained by
	// the processor as simulated time advances. Provisioning may reload it
	// mid-day, so the queue has its own small lock.
	qMu      sync.Mutex
	queue    []models.MBar
	queuePos int
}

// -----------------------------------------------------------------------------

// SetQueue loads the current-day base bars. Called by provisioning
// (load-session-queue step) before the processor starts draining.
func (s *SymbolSessionData) SetQueue(bars []models.MBar) {
	s.qMu.Lock()
	s.queue = bars
	s.queuePos = 0
	s.qMu.Unlock()
}

// -----------------------------------------------------------------------------

// DequeueUpTo returns queued bars whose window closes at or before ts.
func (s *SymbolSessionData) DequeueUpTo(ts int64) []models.MBar {
	s.qMu.Lock()
	defer s.qMu.Unlock()

	start := s.queuePos
	for s.queuePos < len(s.queue) && s.queue[s.queuePos].EndTime <= ts {
		s.queuePos++
	}
	if s.queuePos == start {
		return nil
	}
	return s.queue[start:s.queuePos]
}

// -----------------------------------------------------------------------------

// NextQueuedTime returns the close time of the next pending bar, used by
// data-driven time advancement to jump over idle gaps.
func (s *SymbolSessionData) NextQueuedTime() (int64, bool) {
	s.qMu.Lock()
	defer s.qMu.Unlock()

	if s.queuePos >= len(s.queue) {
		return 0, false
	}
	return s.queue[s.queuePos].EndTime, true
}

// -----------------------------------------------------------------------------

// QueueRemaining returns how many bars are still pending.
func (s *SymbolSessionData) QueueRemaining() int {
	s.qMu.Lock()
	defer s.qMu.Unlock()
	return len(s.queue) - s.queuePos
}

// -----------------------------------------------------------------------------
// BarIntervalData: one interval's ordered, append-only bar sequence.
// -----------------------------------------------------------------------------

type BarIntervalData struct {
	Interval       string
	Derived        bool
	SourceInterval string // set when Derived
	QualityScore   float64 // completeness score in [0,100]

	// Highest derived-window close examined by generation. Skipped windows
	// advance it too, so they are never re-examined or re-counted.
	Watermark int64

	bars []models.MBar // append-only, single writer
}

// -----------------------------------------------------------------------------

// AppendBar appends one bar. Bars are never mutated or removed.
func (b *BarIntervalData) AppendBar(bar models.MBar) {
	b.bars = append(b.bars, bar)
}

// -----------------------------------------------------------------------------

// AppendBars appends a batch in order.
func (b *BarIntervalData) AppendBars(bars []models.MBar) {
	b.bars = append(b.bars, bars...)
}

// -----------------------------------------------------------------------------

// Bars returns the full ordered sequence.
func (b *BarIntervalData) Bars() []models.MBar {
	return b.bars
}

// -----------------------------------------------------------------------------

// BarCount returns the number of bars appended so far.
func (b *BarIntervalData) BarCount() int {
	return len(b.bars)
}

// -----------------------------------------------------------------------------

// LastBar returns the most recent bar, if any.
func (b *BarIntervalData) LastBar() (models.MBar, bool) {
	if len(b.bars) == 0 {
		return models.MBar{}, false
	}
	return b.bars[len(b.bars)-1], true
}

// -----------------------------------------------------------------------------

// LastEndTime returns the close time of the most recent bar, or 0 when empty.
func (b *BarIntervalData) LastEndTime() int64 {
	if len(b.bars) == 0 {
		return 0
	}
	return b.bars[len(b.bars)-1].EndTime
}

// -----------------------------------------------------------------------------

// BarsClosedAfter returns bars whose window closed strictly after ts.
func (b *BarIntervalData) BarsClosedAfter(ts int64) []models.MBar {
	// bars are ordered by close time; scan from the tail
	i := len(b.bars)
	for i > 0 && b.bars[i-1].EndTime > ts {
		i--
	}
	return b.bars[i:]
}

// -----------------------------------------------------------------------------
// IndicatorInstance: one registered indicator and its warm-up state.
// -----------------------------------------------------------------------------

type IndicatorInstance struct {
	Config   models.MIndicatorConfig
	Lookback int // bars required before the indicator is warm

	// Written by the analysis stage only.
	Warm  bool
	Value float64
}
