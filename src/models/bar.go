package models

import "time"

// MBar represents one OHLCV bar for a symbol at a given interval.
type MBar struct {
	Symbol    string    `json:"symbol"`
	Interval  string    `json:"interval"` // e.g., "30s", "1m", "1d"
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	StartTime int64     `json:"start_time"`
	EndTime   int64     `json:"end_time"`
	CreatedAt time.Time `json:"created_at"`
}
