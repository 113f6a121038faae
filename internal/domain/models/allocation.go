package models

// Adjustment is one multiplicative discount applied to base risk.
// Factor is always in (0,1]; adjustments never increase risk.
type Adjustment struct {
	Name   string  `json:"name"`
	Factor float64 `json:"factor"`
	Detail string  `json:"detail,omitempty"`
}

// EntryAllocation is the per-entry slice of an approved allocation.
type EntryAllocation struct {
	Price   float64 `json:"price"`
	Stop    float64 `json:"stop"`
	Target  float64 `json:"target,omitempty"`
	RiskPct float64 `json:"risk_pct"`
	Volume  float64 `json:"volume"`
}

// RiskAllocation is the immutable output of the risk allocator for one
// admitted or declined candidate.
type RiskAllocation struct {
	SignalID     string            `json:"signal_id"`
	Approved     bool              `json:"approved"`
	TotalRiskPct float64           `json:"total_risk_pct"`
	BaseRiskPct  float64           `json:"base_risk_pct"`
	Entries      []EntryAllocation `json:"entries,omitempty"`
	Adjustments  []Adjustment      `json:"adjustments,omitempty"`
	Reason       ReasonCode        `json:"reason,omitempty"`
	ReasonDetail string            `json:"reason_detail,omitempty"`
}
