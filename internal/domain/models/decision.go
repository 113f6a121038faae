package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// DecisionStatus marks the outcome of arbitration for one candidate.
type DecisionStatus string

const (
	DecisionAccept DecisionStatus = "ACCEPT"
	DecisionReject DecisionStatus = "REJECT"
)

// DecisionID derives the deterministic ledger key for one candidate in
// one batch. Re-submitting the same {batch, signal, instrument, horizon}
// always yields the same id, which makes ledger writes idempotent.
func DecisionID(batchID, signalID, symbol, horizon string) string {
	h := sha256.New()
	h.Write([]byte(batchID))
	h.Write([]byte{0})
	h.Write([]byte(signalID))
	h.Write([]byte{0})
	h.Write([]byte(symbol))
	h.Write([]byte{0})
	h.Write([]byte(horizon))
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// ExecutionMetadata is the post-hoc enrichment attached by the
// execution layer after a fill outcome is known.
type ExecutionMetadata struct {
	OrderID     string    `json:"order_id"`
	FillPrice   float64   `json:"fill_price"`
	FillVolume  float64   `json:"fill_volume"`
	SlippageBps float64   `json:"slippage_bps"`
	FilledAt    time.Time `json:"filled_at"`
}

// Decision is one ledger entry: the complete, immutable record of an
// admission or rejection, optionally enriched later with execution
// metadata. The original payload is never removed by enrichment.
type Decision struct {
	ID         string             `json:"id"`
	BatchID    string             `json:"batch_id"`
	SignalID   string             `json:"signal_id"`
	StrategyID string             `json:"strategy_id"`
	Symbol     string             `json:"symbol"`
	Direction  Direction          `json:"direction"`
	Horizon    string             `json:"horizon"`
	Status     DecisionStatus     `json:"status"`
	Reason     ReasonCode         `json:"reason"`
	Detail     string             `json:"detail,omitempty"`
	Evaluation *QualityEvaluation `json:"evaluation,omitempty"`
	Allocation *RiskAllocation    `json:"allocation,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
	Execution  *ExecutionMetadata `json:"execution,omitempty"`
}

// Accepted reports whether the decision admitted the candidate.
func (d *Decision) Accepted() bool {
	return d.Status == DecisionAccept
}
