package utils

import (
	"sync"
	"time"

	"backtest-engine/src/logger"
)

// MarketScheduler maps the session's symbols to their trading calendars and
// answers the day-level questions the session loop asks: which days trade,
// when the session opens and closes, and (in live mode) whether any tracked
// market is open right now. The primary calendar, taken from the first
// configured symbol, drives the simulated day sequence.
type MarketScheduler struct {
	Calendars map[string]*TradingCalendar
	primary   *TradingCalendar
	Logger    *logger.Logger
	mu        sync.RWMutex
}

// -----------------------------------------------------------------------------

func NewMarketScheduler(symbols []string, l *logger.Logger) *MarketScheduler {
	ms := &MarketScheduler{
		Calendars: make(map[string]*TradingCalendar),
		Logger:    l,
	}
	ms.MapSymbolsToCalendars(symbols)
	return ms
}

// -----------------------------------------------------------------------------

// MapSymbolsToCalendars maps a list of symbols to their respective calendars.
// The map is rebuilt wholesale so removed symbols drop out.
func (ms *MarketScheduler) MapSymbolsToCalendars(symbols []string) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	ms.Calendars = make(map[string]*TradingCalendar)
	ms.primary = nil

	for _, symbol := range symbols {
		cal := GetCalendar(symbol)
		if cal != nil {
			ms.Calendars[symbol] = cal
			if ms.primary == nil {
				ms.primary = cal
			}
		}
	}
	if ms.primary == nil {
		ms.primary = GetCalendar("")
	}

	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	ms.Logger.Info("MarketScheduler: Mapped %d symbols to %d unique calendars.",
		len(symbols), len(uniqueCals))
}

// UpdateSymbols updates the scheduler with a new list of symbols
func (ms *MarketScheduler) UpdateSymbols(symbols []string) {
	ms.MapSymbolsToCalendars(symbols)
}

// -----------------------------------------------------------------------------

// Primary returns the calendar driving the simulated day sequence.
func (ms *MarketScheduler) Primary() *TradingCalendar {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	return ms.primary
}

// -----------------------------------------------------------------------------

// IsTradingDay reports whether the primary market trades on the given date.
func (ms *MarketScheduler) IsTradingDay(date time.Time) bool {
	return ms.Primary().IsTradingDay(date)
}

// -----------------------------------------------------------------------------

// SessionBounds returns the primary market's open and close for the day.
func (ms *MarketScheduler) SessionBounds(day time.Time) (time.Time, time.Time) {
	return ms.Primary().SessionBounds(day)
}

// -----------------------------------------------------------------------------

// NextTradingDay returns the primary market's next trading day after date.
func (ms *MarketScheduler) NextTradingDay(date time.Time) time.Time {
	return ms.Primary().NextTradingDay(date)
}

// -----------------------------------------------------------------------------

// AnyMarketOpen checks if ANY tracked markets are currently open. Live mode
// only; simulated sessions drive time themselves.
func (ms *MarketScheduler) AnyMarketOpen() bool {
	now := time.Now().UTC()

	ms.mu.RLock()
	defer ms.mu.RUnlock()

	uniqueCals := make(map[*TradingCalendar]bool)
	for _, cal := range ms.Calendars {
		uniqueCals[cal] = true
	}

	if len(uniqueCals) == 0 {
		return false
	}

	for cal := range uniqueCals {
		if cal.IsOpenOnMinute(now) {
			return true
		}
	}

	return false
}
