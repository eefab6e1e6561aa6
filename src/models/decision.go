package models

// -----------------------------------------------------------------------------
// MStreamDecision is the Interval Resolver output for one symbol: which
// interval is actually consumed from the feed and which are generated locally.
// -----------------------------------------------------------------------------

type MGeneratedInterval struct {
	Interval string `json:"interval"` // the derived interval, e.g. "5m"
	Source   string `json:"source"`   // the interval it aggregates from, e.g. "1m"
}

type MStreamDecision struct {
	Symbol         string               `json:"symbol"`
	StreamInterval string               `json:"stream_interval"` // smallest available base
	Generated      []MGeneratedInterval `json:"generated"`
	QuoteSource    string               `json:"quote_source"` // interval quotes are synthesized from
}

// -----------------------------------------------------------------------------

// GeneratedIntervals returns just the derived interval names, in plan order.
func (d MStreamDecision) GeneratedIntervals() []string {
	out := make([]string, 0, len(d.Generated))
	for _, g := range d.Generated {
		out = append(out, g.Interval)
	}
	return out
}
