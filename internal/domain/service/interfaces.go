package service

import (
	"context"

	"RiskArbiter/internal/domain/models"
)

// Scorer turns one candidate plus context into a bounded composite score.
type Scorer interface {
	Evaluate(candidate *models.SignalCandidate, snapshot *models.CorrelationSnapshot) models.QualityEvaluation
}

// AllocationLimits are resolved policy limits passed into allocation.
type AllocationLimits struct {
	MinScore        float64
	MaxRiskPct      float64
	MinTradablePct  float64
	SigmoidSlope    float64
	SigmoidMidpoint float64
}

// Allocator maps an admitted candidate's score to a risk allocation.
// The exposure argument is a point-in-time headroom copy; the final
// reservation is re-validated atomically by the tracker.
type Allocator interface {
	Allocate(eval *models.QualityEvaluation, candidate *models.SignalCandidate, exposure models.ExposureCheck) models.RiskAllocation
}

// ExposureTracker maintains the committed-risk ledgers. CheckAndReserve
// is atomic: the reservation is only visible if every dimension check
// passed, and no two concurrent reservations can jointly breach a cap.
type ExposureTracker interface {
	CheckAndReserve(candidate *models.SignalCandidate, riskPct float64, cluster int) (models.ExposureCheck, error)
	Headroom(candidate *models.SignalCandidate, cluster int) models.ExposureCheck
	Release(candidateID string) bool
	Snapshot() models.BudgetSnapshot
}

// CorrelationTracker maintains rolling per-strategy return histories
// and exposes immutable pairwise snapshots.
type CorrelationTracker interface {
	RecordOutcome(strategyID string, ret float64)
	SnapshotMatrix() *models.CorrelationSnapshot
}

// KillSwitch is the fail-closed safety gate. CanSendOrders must be
// consulted immediately before every order, never cached.
type KillSwitch interface {
	CanSendOrders() bool
	RecordTradeRisk(riskPct float64)
	RecordTradeOutcome(strategyID string, pnlPct float64)
	RecordDailyDrawdown(drawdownPct float64)
	RecordPortfolioDrawdown(drawdownPct float64)
	EmergencyStop(reason string)
	DailyReset() bool
}

// Ledger records every decision exactly once, keyed by deterministic id.
type Ledger interface {
	Write(decision *models.Decision) bool
	Enrich(decisionID string, meta models.ExecutionMetadata) bool
	Get(decisionID string) (*models.Decision, bool)
	Export() []*models.Decision
	Len() int
}

// AuditSink receives every ledgered decision for export. Implementations
// must be idempotent on decision id so replays are stable.
type AuditSink interface {
	Record(ctx context.Context, decision *models.Decision) error
	Close() error
}

// Metrics is the observability surface the engine records into.
type Metrics interface {
	RecordDecision(status, reason string)
	RecordCommittedRisk(dimension, key string, pct float64)
	RecordCycleDuration(seconds float64)
	RecordLedgerEviction()
	RecordKillSwitchBlock(layer string)
	RecordLockTimeout()
}
