package models

// -----------------------------------------------------------------------------
// Server State Structure (pushed to websocket subscribers)
// -----------------------------------------------------------------------------

type MIntervalStatus struct {
	Bars         int     `json:"bars"`
	Derived      bool    `json:"derived"`
	Source       string  `json:"source,omitempty"`
	QualityScore float64 `json:"quality_score"`
}

type MSymbolStatus struct {
	Symbol                string                     `json:"symbol"`
	BaseInterval          string                     `json:"base_interval"`
	Intervals             map[string]MIntervalStatus `json:"intervals"`
	Indicators            []string                   `json:"indicators"`
	AddedBy               SourceTag                  `json:"added_by"`
	AutoProvisioned       bool                       `json:"auto_provisioned"`
	MeetsFullRequirements bool                       `json:"meets_full_requirements"`
	UpgradedFromAdhoc     bool                       `json:"upgraded_from_adhoc"`
}

type MSessionSnapshot struct {
	Type          string                   `json:"type"` // "INITIAL" or "UPDATE"
	State         string                   `json:"state"`
	Mode          string                   `json:"mode"`
	Day           string                   `json:"day"`
	SimulatedTime int64                    `json:"simulated_time"`
	Symbols       map[string]MSymbolStatus `json:"symbols"`
	Metrics       MDayMetrics              `json:"metrics"`
	Timestamp     int64                    `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// SubscribeCommand for client messages
// -----------------------------------------------------------------------------

type MSubscribeCommand struct {
	Command string   `json:"command"`
	Symbols []string `json:"symbols"`
}
