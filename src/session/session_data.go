package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"backtest-engine/src/models"
)

// -----------------------------------------------------------------------------
// SessionData exclusively owns the symbol map and the simulated-time
// reference. Structural mutation (symbol add/remove, interval add, metadata
// changes) is serialized by the operation lock; bar appends within an
// already-registered interval are append-only, single-writer, and do not take
// that lock. No component holds back-pointers into the session.
// -----------------------------------------------------------------------------

type SessionData struct {
	opMu    sync.RWMutex // operation lock
	clock   *SimClock
	symbols map[string]*SymbolSessionData
}

// -----------------------------------------------------------------------------

func NewSessionData(start time.Time) *SessionData {
	return &SessionData{
		clock:   NewSimClock(start),
		symbols: make(map[string]*SymbolSessionData),
	}
}

// -----------------------------------------------------------------------------

// Clock returns the simulated-time reference owned by this session.
func (sd *SessionData) Clock() *SimClock {
	return sd.clock
}

// -----------------------------------------------------------------------------
// Structural operations (operation lock held)
// -----------------------------------------------------------------------------

// AddSymbol creates a symbol record. Fails if the symbol already exists;
// upgrades go through Upgrade, never through re-creation.
func (sd *SessionData) AddSymbol(symbol string, by models.SourceTag, autoProvisioned bool, now time.Time) (*SymbolSessionData, error) {
	sd.opMu.Lock()
	defer sd.opMu.Unlock()

	if _, exists := sd.symbols[symbol]; exists {
		return nil, fmt.Errorf("symbol %s already exists", symbol)
	}

	s := &SymbolSessionData{
		Symbol:     symbol,
		Intervals:  make(map[string]*BarIntervalData),
		Indicators: make(map[string]*IndicatorInstance),
		Meta: SymbolMeta{
			AddedBy:         by,
			AutoProvisioned: autoProvisioned,
			// autoProvisioned implies not meeting full requirements until an
			// upgrade transition.
			MeetsFullRequirements: !autoProvisioned,
			AddedAt:               now,
		},
	}
	sd.symbols[symbol] = s
	return s, nil
}

// -----------------------------------------------------------------------------

// Upgrade transitions an adhoc symbol to fully provisioned. UpgradedFromAdhoc
// is monotonic: once true it never resets for the symbol's lifetime.
func (sd *SessionData) Upgrade(symbol string, by models.SourceTag) error {
	sd.opMu.Lock()
	defer sd.opMu.Unlock()

	s, exists := sd.symbols[symbol]
	if !exists {
		return fmt.Errorf("symbol %s not found", symbol)
	}

	s.Meta.MeetsFullRequirements = true
	s.Meta.UpgradedFromAdhoc = true
	s.Meta.AddedBy = by
	return nil
}

// -----------------------------------------------------------------------------

// RemoveSymbol drops a symbol and everything it owns.
func (sd *SessionData) RemoveSymbol(symbol string) error {
	sd.opMu.Lock()
	defer sd.opMu.Unlock()

	if _, exists := sd.symbols[symbol]; !exists {
		return fmt.Errorf("symbol %s not found", symbol)
	}
	delete(sd.symbols, symbol)
	return nil
}

// -----------------------------------------------------------------------------

// AddInterval registers an interval record on an existing symbol.
func (sd *SessionData) AddInterval(symbol, interval string, derived bool, source string) (*BarIntervalData, error) {
	sd.opMu.Lock()
	defer sd.opMu.Unlock()

	s, exists := sd.symbols[symbol]
	if !exists {
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}
	if _, exists := s.Intervals[interval]; exists {
		return nil, fmt.Errorf("interval %s already registered for %s", interval, symbol)
	}

	b := &BarIntervalData{
		Interval:       interval,
		Derived:        derived,
		SourceInterval: source,
	}
	s.Intervals[interval] = b

	if !derived && s.BaseInterval == "" {
		s.BaseInterval = interval
	}
	return b, nil
}

// -----------------------------------------------------------------------------

// SetDecision installs the stream resolution on a symbol. Taken structurally
// because the processor reads the decision on every tick.
func (sd *SessionData) SetDecision(symbol string, d models.MStreamDecision) error {
	sd.opMu.Lock()
	defer sd.opMu.Unlock()

	s, exists := sd.symbols[symbol]
	if !exists {
		return fmt.Errorf("symbol %s not found", symbol)
	}
	s.Decision = d
	return nil
}

// -----------------------------------------------------------------------------

// RegisterIndicator attaches an indicator instance to an existing symbol.
// Registering the same key twice is an error (duplicate operation).
func (sd *SessionData) RegisterIndicator(symbol string, inst *IndicatorInstance) error {
	sd.opMu.Lock()
	defer sd.opMu.Unlock()

	s, exists := sd.symbols[symbol]
	if !exists {
		return fmt.Errorf("symbol %s not found", symbol)
	}

	key := inst.Config.Key()
	if _, exists := s.Indicators[key]; exists {
		return fmt.Errorf("indicator %s already registered for %s", key, symbol)
	}
	s.Indicators[key] = inst
	return nil
}

// -----------------------------------------------------------------------------

// Reset is the Phase 1 teardown: every symbol and all its metadata, bars and
// queues are destroyed wholesale. Nothing survives a session day by design.
func (sd *SessionData) Reset() {
	sd.opMu.Lock()
	defer sd.opMu.Unlock()
	sd.symbols = make(map[string]*SymbolSessionData)
}

// -----------------------------------------------------------------------------
// Lookups
// -----------------------------------------------------------------------------

// Symbol returns the session record for a symbol, if present.
func (sd *SessionData) Symbol(name string) (*SymbolSessionData, bool) {
	sd.opMu.RLock()
	defer sd.opMu.RUnlock()
	s, ok := sd.symbols[name]
	return s, ok
}

// -----------------------------------------------------------------------------

// Symbols returns a stable-ordered snapshot of all symbol records.
func (sd *SessionData) Symbols() []*SymbolSessionData {
	sd.opMu.RLock()
	defer sd.opMu.RUnlock()

	out := make([]*SymbolSessionData, 0, len(sd.symbols))
	for _, s := range sd.symbols {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// -----------------------------------------------------------------------------

// Decision returns the symbol's current stream resolution.
func (sd *SessionData) Decision(symbol string) (models.MStreamDecision, bool) {
	sd.opMu.RLock()
	defer sd.opMu.RUnlock()

	s, ok := sd.symbols[symbol]
	if !ok {
		return models.MStreamDecision{}, false
	}
	return s.Decision, true
}

// -----------------------------------------------------------------------------

// IntervalRecords returns a snapshot of a symbol's interval map. The records
// themselves are shared; only the map copy is private to the caller.
func (sd *SessionData) IntervalRecords(symbol string) map[string]*BarIntervalData {
	sd.opMu.RLock()
	defer sd.opMu.RUnlock()

	s, ok := sd.symbols[symbol]
	if !ok {
		return nil
	}
	out := make(map[string]*BarIntervalData, len(s.Intervals))
	for iv, rec := range s.Intervals {
		out[iv] = rec
	}
	return out
}

// -----------------------------------------------------------------------------

// IndicatorInstances returns a snapshot of a symbol's indicator map.
func (sd *SessionData) IndicatorInstances(symbol string) map[string]*IndicatorInstance {
	sd.opMu.RLock()
	defer sd.opMu.RUnlock()

	s, ok := sd.symbols[symbol]
	if !ok {
		return nil
	}
	out := make(map[string]*IndicatorInstance, len(s.Indicators))
	for key, inst := range s.Indicators {
		out[key] = inst
	}
	return out
}

// -----------------------------------------------------------------------------

// Count returns the number of live symbols.
func (sd *SessionData) Count() int {
	sd.opMu.RLock()
	defer sd.opMu.RUnlock()
	return len(sd.symbols)
}

// -----------------------------------------------------------------------------

// SymbolStatuses builds the per-symbol view pushed to external subscribers.
func (sd *SessionData) SymbolStatuses() map[string]models.MSymbolStatus {
	sd.opMu.RLock()
	defer sd.opMu.RUnlock()

	out := make(map[string]models.MSymbolStatus, len(sd.symbols))
	for name, s := range sd.symbols {
		st := models.MSymbolStatus{
			Symbol:                name,
			BaseInterval:          s.BaseInterval,
			Intervals:             make(map[string]models.MIntervalStatus, len(s.Intervals)),
			AddedBy:               s.Meta.AddedBy,
			AutoProvisioned:       s.Meta.AutoProvisioned,
			MeetsFullRequirements: s.Meta.MeetsFullRequirements,
			UpgradedFromAdhoc:     s.Meta.UpgradedFromAdhoc,
		}
		for iv, data := range s.Intervals {
			st.Intervals[iv] = models.MIntervalStatus{
				Bars:         data.BarCount(),
				Derived:      data.Derived,
				Source:       data.SourceInterval,
				QualityScore: data.QualityScore,
			}
		}
		for key := range s.Indicators {
			st.Indicators = append(st.Indicators, key)
		}
		sort.Strings(st.Indicators)
		out[name] = st
	}
	return out
}
