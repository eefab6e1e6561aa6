package models

import "time"

// MDayMetrics records what one session day produced. Written at Phase 4.
type MDayMetrics struct {
	Day                  string    `json:"day"` // YYYY-MM-DD
	Ticks                int64     `json:"ticks"`
	BarsStreamed         int64     `json:"bars_streamed"`
	BarsGenerated        int64     `json:"bars_generated"`
	QuotesSynthesized    int64     `json:"quotes_synthesized"`
	IncompleteWindows    int64     `json:"incomplete_windows"` // derived windows skipped by the completeness gate
	Overruns             int64     `json:"overruns"`           // clock mode only
	SymbolsProvisioned   int       `json:"symbols_provisioned"`
	ProvisioningFailures int       `json:"provisioning_failures"`
	RecordedAt           time.Time `json:"recorded_at"`
}
