package models

// -----------------------------------------------------------------------------
// Source attribution and operation kinds (closed sets, not free-form strings)
// -----------------------------------------------------------------------------

// SourceTag identifies who requested a provisioning operation.
type SourceTag string

const (
	SourceConfig   SourceTag = "config"
	SourceStrategy SourceTag = "strategy"
	SourceScanner  SourceTag = "scanner"
	SourceAdhoc    SourceTag = "adhoc"
)

// ValidSourceTag reports whether tag is one of the closed set.
func ValidSourceTag(tag SourceTag) bool {
	switch tag {
	case SourceConfig, SourceStrategy, SourceScanner, SourceAdhoc:
		return true
	}
	return false
}

// OperationKind identifies what a provisioning operation mutates.
type OperationKind string

const (
	OpSymbol    OperationKind = "symbol"
	OpBar       OperationKind = "bar"
	OpIndicator OperationKind = "indicator"
)

// -----------------------------------------------------------------------------
// Provisioning steps
// -----------------------------------------------------------------------------

// StepKind is one executable unit of a provisioning plan.
type StepKind string

const (
	StepCreateSymbol      StepKind = "create_symbol"
	StepUpgradeSymbol     StepKind = "upgrade_symbol"
	StepAddInterval       StepKind = "add_interval"
	StepLoadHistorical    StepKind = "load_historical"
	StepLoadSessionQueue  StepKind = "load_session_queue"
	StepRegisterIndicator StepKind = "register_indicator"
	StepRecomputeQuality  StepKind = "recompute_quality"
)

// MProvisioningStep carries the parameters for one step. Unused fields stay
// at their zero value depending on the step kind.
type MProvisioningStep struct {
	Kind           StepKind         `json:"kind"`
	Interval       string           `json:"interval,omitempty"`
	SourceInterval string           `json:"source_interval,omitempty"` // set for derived intervals
	Derived        bool             `json:"derived,omitempty"`
	Indicator      MIndicatorConfig `json:"indicator,omitempty"`
}

// -----------------------------------------------------------------------------
// MProvisioningRequirements is the computed plan produced by the analyze phase.
// -----------------------------------------------------------------------------

type MProvisioningRequirements struct {
	Symbol            string              `json:"symbol"`
	Operation         OperationKind       `json:"operation"`
	RequestedBy       SourceTag           `json:"requested_by"`
	RequiredIntervals []string            `json:"required_intervals"`
	NeedsHistorical   bool                `json:"needs_historical"`
	HistoricalDepth   int                 `json:"historical_depth"` // trading days of backfill
	NeedsSessionLoad  bool                `json:"needs_session_load"`
	Adhoc             bool                `json:"adhoc"`
	Steps             []MProvisioningStep `json:"steps"`
	Decision          MStreamDecision     `json:"decision"` // resolved stream/generation plan
	IsUpgrade         bool                `json:"is_upgrade"`
	CanProceed        bool                `json:"can_proceed"`
	Reasons           []string            `json:"reasons"`
}

// -----------------------------------------------------------------------------

// Block marks the plan not-proceedable and records why. Reasons accumulate;
// validation never stops at the first failure.
func (r *MProvisioningRequirements) Block(reason string) {
	r.CanProceed = false
	r.Reasons = append(r.Reasons, reason)
}

// -----------------------------------------------------------------------------
// MSymbolValidationResult is the outcome of the validate phase.
// -----------------------------------------------------------------------------

type MSymbolValidationResult struct {
	Symbol               string   `json:"symbol"`
	SourceReachable      bool     `json:"source_reachable"`
	IntervalsDerivable   bool     `json:"intervals_derivable"`
	HistoricalSufficient bool     `json:"historical_sufficient"`
	CanProceed           bool     `json:"can_proceed"`
	Reasons              []string `json:"reasons"`
}

// Reason flattens the accumulated failure reasons into one readable string.
func (v MSymbolValidationResult) Reason() string {
	if len(v.Reasons) == 0 {
		return ""
	}
	out := v.Reasons[0]
	for _, r := range v.Reasons[1:] {
		out += "; " + r
	}
	return out
}

// -----------------------------------------------------------------------------
// MOperationResult is what provisioning entry points return to callers.
// -----------------------------------------------------------------------------

type MOperationResult struct {
	Symbol   string        `json:"symbol"`
	Kind     OperationKind `json:"kind"`
	Success  bool          `json:"success"`
	Upgraded bool          `json:"upgraded"`
	Reason   string        `json:"reason,omitempty"`
}
