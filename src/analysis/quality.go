package analysis

// -----------------------------------------------------------------------------
// Quality scoring: actual-vs-expected bar count mapped to [0,100].
// -----------------------------------------------------------------------------

// QualityFunc maps an actual and expected bar count to a score in [0,100].
type QualityFunc func(actual, expected int) float64

// -----------------------------------------------------------------------------

// Score is the default quality function.
func Score(actual, expected int) float64 {
	if expected <= 0 {
		return 100.0
	}
	s := float64(actual) / float64(expected) * 100.0
	if s > 100.0 {
		return 100.0
	}
	if s < 0 {
		return 0.0
	}
	return s
}

// -----------------------------------------------------------------------------

// ExpectedBars returns how many bars of a given interval fit a span.
func ExpectedBars(spanSeconds, intervalSeconds int64) int {
	if intervalSeconds <= 0 {
		return 0
	}
	return int(spanSeconds / intervalSeconds)
}
