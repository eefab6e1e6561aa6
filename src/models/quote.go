package models

// MQuote represents a bid/ask quote. In simulated sessions quotes are
// synthesized from the most granular available bar (bid = ask = close).
type MQuote struct {
	Symbol         string  `json:"symbol"`
	Bid            float64 `json:"bid"`
	Ask            float64 `json:"ask"`
	Timestamp      int64   `json:"timestamp"`
	Synthesized    bool    `json:"synthesized"`
	SourceInterval string  `json:"source_interval,omitempty"` // set when synthesized
}
