package engine

import (
	"context"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/internal/services/arbiter"
	"RiskArbiter/internal/services/audit"
	"RiskArbiter/pkg/logger"
)

// Engine is the context object owning every arbitration component. It
// is constructed once and passed explicitly; there is no package-level
// state. Scoring runs in parallel across candidates; ledger writes and
// budget reservations stay serialized inside their owning components.
type Engine struct {
	scorer      service.Scorer
	arbiter     *arbiter.Arbiter
	exposure    service.ExposureTracker
	correlation service.CorrelationTracker
	killSwitch  service.KillSwitch
	ledger      service.Ledger
	audit       *audit.Dispatcher
	events      *Broadcaster
	metrics     service.Metrics
	log         *logger.Logger
	validate    *validator.Validate
}

// CycleResult is the outcome of one arbitration cycle. Sendable is the
// subset of accepted decisions that passed the final pre-send gate; a
// kill switch block arriving mid-cycle keeps accepted decisions in the
// ledger but out of Sendable.
type CycleResult struct {
	BatchID    string
	Decisions  []*models.Decision
	Sendable   []*models.Decision
	Suppressed int
	Duration   time.Duration
}

func New(
	scorer service.Scorer,
	arb *arbiter.Arbiter,
	exposure service.ExposureTracker,
	correlation service.CorrelationTracker,
	killSwitch service.KillSwitch,
	ledger service.Ledger,
	dispatcher *audit.Dispatcher,
	events *Broadcaster,
	metrics service.Metrics,
	log *logger.Logger,
) *Engine {
	return &Engine{
		scorer:      scorer,
		arbiter:     arb,
		exposure:    exposure,
		correlation: correlation,
		killSwitch:  killSwitch,
		ledger:      ledger,
		audit:       dispatcher,
		events:      events,
		metrics:     metrics,
		log:         log,
		validate:    validator.New(),
	}
}

// RunCycle arbitrates one bounded batch of candidates. Every candidate
// yields exactly one decision; a failure on one never aborts the rest.
func (e *Engine) RunCycle(ctx context.Context, candidates []*models.SignalCandidate) (*CycleResult, error) {
	start := time.Now()
	batchID := uuid.NewString()

	result := &CycleResult{BatchID: batchID}

	// Admission gate: while blocked, every candidate is rejected up
	// front. The decisions are still ledgered so the block is auditable.
	if !e.killSwitch.CanSendOrders() {
		for _, c := range candidates {
			result.Decisions = append(result.Decisions,
				e.rejectCandidate(batchID, c, models.ReasonKillSwitchBlocked, "kill switch is BLOCKED"))
		}
		e.finishCycle(result, start)
		return result, nil
	}

	valid := make([]*models.SignalCandidate, 0, len(candidates))
	for _, c := range candidates {
		if err := e.validateCandidate(c); err != nil {
			result.Decisions = append(result.Decisions,
				e.rejectCandidate(batchID, c, models.ReasonValidationFailed, err.Error()))
			continue
		}
		valid = append(valid, c)
	}

	snap := e.correlation.SnapshotMatrix()

	// Parallel scoring: each candidate is independent and the scorer is
	// pure, so this is the one place the cycle fans out.
	scored := make([]arbiter.Scored, len(valid))
	var wg sync.WaitGroup
	for i, c := range valid {
		wg.Add(1)
		go func(i int, c *models.SignalCandidate) {
			defer wg.Done()
			scored[i] = arbiter.Scored{Candidate: c, Evaluation: e.scorer.Evaluate(c, snap)}
		}(i, c)
	}
	wg.Wait()

	if len(scored) > 0 {
		result.Decisions = append(result.Decisions, e.arbiter.Arbitrate(ctx, batchID, scored, snap)...)
	}

	for _, d := range result.Decisions {
		if d.Accepted() && d.Allocation != nil {
			e.killSwitch.RecordTradeRisk(d.Allocation.TotalRiskPct)
		}
	}

	// Pre-send gate: consulted per decision, immediately before handing
	// the order out. A block that landed during this cycle makes every
	// not-yet-sent order unsendable without touching the ledger. The
	// suppressed order is never sent, so its budget reservation is
	// returned here.
	for _, d := range result.Decisions {
		if !d.Accepted() {
			continue
		}
		if e.killSwitch.CanSendOrders() {
			result.Sendable = append(result.Sendable, d)
			continue
		}
		result.Suppressed++
		e.exposure.Release(d.SignalID)
		e.log.Warn("order suppressed at pre-send gate, reservation released",
			logger.String("decision_id", d.ID),
			logger.String("symbol", d.Symbol))
	}

	e.finishCycle(result, start)
	return result, nil
}

// EnrichDecision attaches post-fill execution metadata to a ledgered
// decision and re-exports the enriched record.
func (e *Engine) EnrichDecision(decisionID string, meta models.ExecutionMetadata) bool {
	if !e.ledger.Enrich(decisionID, meta) {
		return false
	}
	if d, ok := e.ledger.Get(decisionID); ok && e.audit != nil {
		e.audit.Enqueue(d)
	}
	return true
}

// ReleaseDecision frees the budget reservation held by an accepted
// decision once its position is closed or the order abandoned. Returns
// false when the decision is unknown, was rejected, or its reservation
// was already released.
func (e *Engine) ReleaseDecision(decisionID string) bool {
	d, ok := e.ledger.Get(decisionID)
	if !ok || !d.Accepted() {
		return false
	}
	if !e.exposure.Release(d.SignalID) {
		return false
	}
	e.log.Info("reservation released",
		logger.String("decision_id", d.ID),
		logger.String("signal_id", d.SignalID),
		logger.String("symbol", d.Symbol))
	return true
}

// RecordTradeOutcome feeds a realized result back into the strategy
// circuit breaker and the correlation histories.
func (e *Engine) RecordTradeOutcome(strategyID string, pnlPct float64) {
	e.killSwitch.RecordTradeOutcome(strategyID, pnlPct)
	e.correlation.RecordOutcome(strategyID, pnlPct)
}

// Ledger exposes the decision ledger to the read API.
func (e *Engine) Ledger() service.Ledger { return e.ledger }

// Budget exposes the committed-risk snapshot to the read API.
func (e *Engine) Budget() models.BudgetSnapshot { return e.exposure.Snapshot() }

// KillSwitch exposes the safety gate to the control API.
func (e *Engine) KillSwitch() service.KillSwitch { return e.killSwitch }

// Events exposes the decision stream for websocket subscribers.
func (e *Engine) Events() *Broadcaster { return e.events }

func (e *Engine) validateCandidate(c *models.SignalCandidate) error {
	if err := e.validate.Struct(c); err != nil {
		return err
	}
	return nil
}

func (e *Engine) rejectCandidate(batchID string, c *models.SignalCandidate, reason models.ReasonCode, detail string) *models.Decision {
	return &models.Decision{
		ID:         models.DecisionID(batchID, c.SignalID, c.Symbol, c.Horizon),
		BatchID:    batchID,
		SignalID:   c.SignalID,
		StrategyID: c.StrategyID,
		Symbol:     c.Symbol,
		Direction:  c.Direction,
		Horizon:    c.Horizon,
		Status:     models.DecisionReject,
		Reason:     reason,
		Detail:     detail,
		CreatedAt:  time.Now().UTC(),
	}
}

func (e *Engine) finishCycle(result *CycleResult, start time.Time) {
	for _, d := range result.Decisions {
		e.ledger.Write(d)
		if e.metrics != nil {
			e.metrics.RecordDecision(string(d.Status), string(d.Reason))
		}
		if e.audit != nil {
			e.audit.Enqueue(d)
		}
		if e.events != nil {
			e.events.Publish(d)
		}
		if !d.Accepted() {
			e.log.Info("candidate rejected",
				logger.String("batch_id", d.BatchID),
				logger.String("signal_id", d.SignalID),
				logger.String("strategy_id", d.StrategyID),
				logger.String("symbol", d.Symbol),
				logger.String("reason", string(d.Reason)),
				logger.String("detail", d.Detail))
		}
	}

	result.Duration = time.Since(start)
	if e.metrics != nil {
		e.metrics.RecordCycleDuration(result.Duration.Seconds())
	}
}
