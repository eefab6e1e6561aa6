package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backtest-engine/src/logger"
)

// -----------------------------------------------------------------------------

func TestGetCalendarSuffixMapping(t *testing.T) {
	// Unsuffixed and suffixed symbols both resolve to a usable calendar.
	for _, symbol := range []string{"AAPL", "VOD.L", "AIR.PA", "7203.T"} {
		cal := GetCalendar(symbol)
		require.NotNil(t, cal, symbol)
		require.NotNil(t, cal.Timezone, symbol)
	}
}

// -----------------------------------------------------------------------------

func TestTradingDaySkipsWeekend(t *testing.T) {
	cal := GetCalendar("AAPL")

	friday := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	saturday := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)

	require.True(t, cal.IsTradingDay(friday))
	require.False(t, cal.IsTradingDay(saturday))

	// Next trading day after Friday is Monday.
	next := cal.NextTradingDay(friday)
	require.Equal(t, time.Monday, next.Weekday())

	// A Saturday start rolls forward, a trading day stays put.
	require.Equal(t, time.Monday, cal.FirstTradingDayFrom(saturday).Weekday())
	require.Equal(t, friday, cal.FirstTradingDayFrom(friday))
}

// -----------------------------------------------------------------------------

func TestDayCursorNeedsExchangeLocalMidnight(t *testing.T) {
	cal := GetCalendar("AAPL")

	// The same calendar date is a trading day at exchange-local midnight but
	// not at UTC midnight: 2024-03-11T00:00Z is still Sunday evening in New
	// York. Day cursors must be anchored in cal.Location().
	monday := time.Date(2024, 3, 11, 0, 0, 0, 0, cal.Location())
	require.True(t, cal.IsTradingDay(monday))
	require.False(t, cal.IsTradingDay(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)))

	open, close := cal.SessionBounds(monday)
	require.Equal(t, 11, open.Day())
	require.Equal(t, 11, close.Day())
}

// -----------------------------------------------------------------------------

func TestSessionBounds(t *testing.T) {
	cal := GetCalendar("AAPL")
	day := time.Date(2024, 3, 11, 0, 0, 0, 0, cal.Timezone)

	open, close := cal.SessionBounds(day)
	require.Equal(t, 9, open.Hour())
	require.Equal(t, 30, open.Minute())
	require.Equal(t, 16, close.Hour())
	require.True(t, open.Before(close))
	require.Equal(t, 6*time.Hour+30*time.Minute, close.Sub(open))
}

// -----------------------------------------------------------------------------

func TestMarketSchedulerPrimary(t *testing.T) {
	log := logger.NewLogger(nil, "test")
	ms := NewMarketScheduler([]string{"AAPL", "MSFT", "VOD.L"}, log)

	require.NotNil(t, ms.Primary())
	require.Len(t, ms.Calendars, 3)

	// The primary calendar answers the day-level questions.
	saturday := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	require.False(t, ms.IsTradingDay(saturday))

	// Rebuilding the map drops removed symbols.
	ms.UpdateSymbols([]string{"AAPL"})
	require.Len(t, ms.Calendars, 1)

	// Without symbols a default primary still exists, and no tracked market
	// can be open.
	ms.UpdateSymbols(nil)
	require.NotNil(t, ms.Primary())
	require.False(t, ms.AnyMarketOpen())
}
