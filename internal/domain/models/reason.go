package models

// ReasonCode is the machine-readable rejection reason carried on every
// declined decision. Never empty on a REJECT; a silent drop is a defect.
type ReasonCode string

const (
	ReasonNone                   ReasonCode = ""
	ReasonAccepted               ReasonCode = "accepted"
	ReasonValidationFailed       ReasonCode = "validation-failed"
	ReasonBelowMinScore          ReasonCode = "below-min-score"
	ReasonDuplicateIntentionLost ReasonCode = "duplicate-intention-lost"
	ReasonLockTimeout            ReasonCode = "lock-timeout"
	ReasonExposureCap            ReasonCode = "exposure-cap"
	ReasonHeadroomBelowMinimum   ReasonCode = "headroom-below-minimum"
	ReasonNegativeExpectedValue  ReasonCode = "negative-expected-value"
	ReasonDegenerateContext      ReasonCode = "degenerate-context"
	ReasonKillSwitchBlocked      ReasonCode = "kill-switch-blocked"
)

// Explanation returns the human-readable explanation for a reason code.
func (r ReasonCode) Explanation() string {
	switch r {
	case ReasonAccepted:
		return "candidate admitted"
	case ReasonValidationFailed:
		return "candidate failed structural validation"
	case ReasonBelowMinScore:
		return "quality score below admission threshold"
	case ReasonDuplicateIntentionLost:
		return "another candidate won the same instrument and direction"
	case ReasonLockTimeout:
		return "intention lock could not be acquired within the bounded wait"
	case ReasonExposureCap:
		return "admission would breach a budget dimension cap"
	case ReasonHeadroomBelowMinimum:
		return "remaining budget headroom below minimum tradable size"
	case ReasonNegativeExpectedValue:
		return "expected value after slippage and costs is not positive"
	case ReasonDegenerateContext:
		return "market or correlation context too degenerate to arbitrate"
	case ReasonKillSwitchBlocked:
		return "kill switch forbids order transmission"
	default:
		return "unspecified"
	}
}

// Rejection is the structured rejection surfaced to the external
// observability layer.
type Rejection struct {
	SignalID   string        `json:"signal_id"`
	StrategyID string        `json:"strategy_id"`
	Symbol     string        `json:"symbol"`
	Reason     ReasonCode    `json:"reason"`
	Detail     string        `json:"detail,omitempty"`
	Inputs     InputSnapshot `json:"inputs"`
}
