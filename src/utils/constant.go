package utils

import "math"

// -----------------------------------------------------------------------------

// Constants and helper functions for session sizing.
// Standard cash session of 6.5 hours = 23400 seconds, which is
// 390 one-minute bars or 780 thirty-second bars per day.
const (
	SessionSeconds = 23400

	DefaultHistoricalDays = 7
)

// -----------------------------------------------------------------------------

// BarsPerSession returns how many bars of the given span fit in one regular
// session day, never less than 1 (daily bars).
func BarsPerSession(intervalSeconds int64) int {
	if intervalSeconds <= 0 {
		return 0
	}
	n := int(math.Ceil(float64(SessionSeconds) / float64(intervalSeconds)))
	if n < 1 {
		n = 1
	}
	return n
}

// -----------------------------------------------------------------------------

// BufferCapacity sizes a bar buffer to cover the given number of trading days
// at the given interval, with headroom for early opens and late prints.
func BufferCapacity(days int, intervalSeconds int64) int {
	if days < 1 {
		days = 1
	}
	return days*BarsPerSession(intervalSeconds) + 16
}
