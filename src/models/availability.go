package models

// -----------------------------------------------------------------------------
// MAvailabilityInfo reports which raw base granularities exist for a symbol.
// -----------------------------------------------------------------------------

type MAvailabilityInfo struct {
	Symbol       string `json:"symbol"`
	HasSubMinute bool   `json:"has_sub_minute"`
	HasMinute    bool   `json:"has_minute"`
	HasDaily     bool   `json:"has_daily"`
	HasQuotes    bool   `json:"has_quotes"`
}

// -----------------------------------------------------------------------------

// HasAnyBase returns true if at least one base granularity exists.
// A symbol with no base at all can neither be streamed nor generated.
func (a MAvailabilityInfo) HasAnyBase() bool {
	return a.HasSubMinute || a.HasMinute || a.HasDaily
}
