package utils

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers trading-day and session-hour questions using
// scmhub/calendar, with a plain Mon-Fri fallback when no MIC calendar loads.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// Regular cash session used by the fallback and for session-day bounds.
const (
	sessionOpenHour   = 9
	sessionOpenMinute = 30
	sessionCloseHour  = 16
)

// Symbol suffix to MIC code (ISO 10383). Unsuffixed symbols are treated as
// NYSE listings.
var suffixMIC = map[string]string{
	".L":  "xlon",
	".PA": "xpar",
	".DE": "xfra",
	".AS": "xams",
	".BR": "xbru",
	".MI": "xmil",
	".MC": "xmad",
	".ST": "xsto",
	".CO": "xcse",
	".HE": "xhel",
	".VI": "xwbo",
	".SW": "xswx",
	".TO": "xtse",
	".V":  "xtsx",
	".T":  "xtks",
	".HK": "xhkg",
	".AX": "xasx",
	".KS": "xkrx",
	".TW": "xtai",
	".SS": "xshg",
	".SZ": "xshe",
}

// -----------------------------------------------------------------------------

func GetCalendar(symbol string) *TradingCalendar {
	mic := "xnys"
	for suffix, code := range suffixMIC {
		if strings.HasSuffix(symbol, suffix) {
			mic = code
			break
		}
	}

	cal := calendar.GetCalendar(mic)
	if cal == nil {
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		log.Printf("WARNING: Failed to load calendar for MIC '%s' and fallback 'xnys'. Using simple fallback (Mon-Fri 09:30-16:00 NY).", mic)
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Fallback: false, Timezone: cal.Loc}
}

// -----------------------------------------------------------------------------

// Location returns the exchange timezone, falling back to UTC.
func (tc *TradingCalendar) Location() *time.Location {
	if tc.Timezone != nil {
		return tc.Timezone
	}
	return time.UTC
}

// -----------------------------------------------------------------------------

func (tc *TradingCalendar) IsTradingDay(date time.Time) bool {
	if tc.Timezone != nil {
		date = date.In(tc.Timezone)
	}

	if tc.Fallback {
		weekday := date.Weekday()
		return weekday != time.Saturday && weekday != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(date)
}

// -----------------------------------------------------------------------------

// IsOpenOnMinute checks if the market is open at a specific minute.
func (tc *TradingCalendar) IsOpenOnMinute(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}

	if tc.Fallback {
		if !tc.IsTradingDay(t) {
			return false
		}

		hour := t.Hour()
		minute := t.Minute()

		if (hour > sessionOpenHour || (hour == sessionOpenHour && minute >= sessionOpenMinute)) && hour < sessionCloseHour {
			return true
		}
		return false
	}

	return tc.Calendar.IsOpen(t)
}

// -----------------------------------------------------------------------------

// NextTradingDay returns the first trading day strictly after date.
func (tc *TradingCalendar) NextTradingDay(date time.Time) time.Time {
	d := date.AddDate(0, 0, 1)
	for !tc.IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// -----------------------------------------------------------------------------

// FirstTradingDayFrom returns date itself when it trades, otherwise the next
// trading day after it.
func (tc *TradingCalendar) FirstTradingDayFrom(date time.Time) time.Time {
	if tc.IsTradingDay(date) {
		return date
	}
	return tc.NextTradingDay(date)
}

// -----------------------------------------------------------------------------

// SessionBounds returns the regular cash session open and close instants for
// the given trading day, in the calendar timezone.
func (tc *TradingCalendar) SessionBounds(day time.Time) (time.Time, time.Time) {
	loc := tc.Timezone
	if loc == nil {
		loc = time.UTC
	}
	d := day.In(loc)
	open := time.Date(d.Year(), d.Month(), d.Day(), sessionOpenHour, sessionOpenMinute, 0, 0, loc)
	close := time.Date(d.Year(), d.Month(), d.Day(), sessionCloseHour, 0, 0, 0, loc)
	return open, close
}
