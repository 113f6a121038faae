package arbiter

import (
	"context"
	"fmt"
	"sort"
	"time"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/logger"
	"RiskArbiter/pkg/numeric"
)

// Scored pairs a candidate with its quality evaluation for arbitration.
type Scored struct {
	Candidate  *models.SignalCandidate
	Evaluation models.QualityEvaluation
}

// Config holds arbitration policy.
type Config struct {
	LockTimeout    time.Duration
	LiquidityFloor float64
	SlippageBps    float64
}

// Arbiter groups mutually exclusive candidates, selects one winner per
// intention group, and admits it through the budget tracker using the
// copy-validate-commit pattern. It never holds the intention lock and
// the tracker's mutex through a call into another component.
type Arbiter struct {
	cfg       Config
	locks     *IntentionLocks
	cost      *CostModel
	exposure  service.ExposureTracker
	allocator service.Allocator
	log       *logger.Logger
	metrics   service.Metrics
}

// New creates a conflict arbiter.
func New(cfg Config, exposure service.ExposureTracker, allocator service.Allocator, log *logger.Logger, metrics service.Metrics) *Arbiter {
	return &Arbiter{
		cfg:       cfg,
		locks:     NewIntentionLocks(),
		cost:      NewCostModel(cfg.LiquidityFloor, cfg.SlippageBps),
		exposure:  exposure,
		allocator: allocator,
		log:       log,
		metrics:   metrics,
	}
}

// Arbitrate resolves one batch of scored candidates into decisions.
// Every candidate in the batch yields exactly one decision; a failure
// on one candidate never aborts the rest.
func (a *Arbiter) Arbitrate(ctx context.Context, batchID string, batch []Scored, snap *models.CorrelationSnapshot) []*models.Decision {
	decisions := make([]*models.Decision, 0, len(batch))

	for _, group := range groupByInstrument(batch) {
		ordered := a.rankGroup(group)
		winner := ordered[0]

		for _, loser := range ordered[1:] {
			decisions = append(decisions, a.reject(batchID, loser,
				models.ReasonDuplicateIntentionLost,
				fmt.Sprintf("lost to %s (score %.3f vs %.3f)",
					winner.Candidate.SignalID, winner.Evaluation.Score, loser.Evaluation.Score)))
		}

		decisions = append(decisions, a.admit(ctx, batchID, winner, snap))
	}

	return decisions
}

// admit pushes one group winner through lock, expected value, and the
// budget commit. Any failure degrades to an explicit REJECT decision.
func (a *Arbiter) admit(ctx context.Context, batchID string, s Scored, snap *models.CorrelationSnapshot) *models.Decision {
	c := s.Candidate
	intention := c.Intention()

	if !a.locks.Acquire(ctx, intention, a.cfg.LockTimeout) {
		if a.metrics != nil {
			a.metrics.RecordLockTimeout()
		}
		a.log.Warn("intention lock timeout",
			logger.String("symbol", c.Symbol),
			logger.String("direction", string(c.Direction)),
			logger.String("signal_id", c.SignalID))
		return a.reject(batchID, s, models.ReasonLockTimeout,
			fmt.Sprintf("intention lock not acquired within %s", a.cfg.LockTimeout))
	}
	defer a.locks.Release(intention)

	if c.Entry <= 0 || !numeric.IsFinite(c.Entry) {
		return a.reject(batchID, s, models.ReasonDegenerateContext, "entry price unusable")
	}

	ev := a.cost.NetExpectedValueBps(c, s.Evaluation.Score)
	if ev <= 0 {
		return a.reject(batchID, s, models.ReasonNegativeExpectedValue,
			fmt.Sprintf("net expected value %.2f bps", ev))
	}

	cluster := -1
	if snap != nil {
		cluster = snap.Cluster(c.StrategyID)
	}

	// Copy-validate-commit: take a headroom copy, size against it, then
	// let the tracker re-validate atomically on commit. No lock is held
	// across the allocator call.
	headroom := a.exposure.Headroom(c, cluster)
	allocation := a.allocator.Allocate(&s.Evaluation, c, headroom)
	if !allocation.Approved {
		return a.rejectWithAllocation(batchID, s, &allocation)
	}

	check, err := a.exposure.CheckAndReserve(c, allocation.TotalRiskPct, cluster)
	if err != nil {
		return a.reject(batchID, s, models.ReasonValidationFailed, err.Error())
	}
	if !check.Passed {
		detail := "budget dimension cap would be breached"
		if failed, ok := check.FailedDimension(); ok {
			detail = fmt.Sprintf("%s cap %.2f%% with %.2f%% committed", failed.Dimension, failed.CapPct, failed.Committed)
		}
		return a.reject(batchID, s, models.ReasonExposureCap, detail)
	}

	eval := s.Evaluation
	alloc := allocation
	return &models.Decision{
		ID:         models.DecisionID(batchID, c.SignalID, c.Symbol, c.Horizon),
		BatchID:    batchID,
		SignalID:   c.SignalID,
		StrategyID: c.StrategyID,
		Symbol:     c.Symbol,
		Direction:  c.Direction,
		Horizon:    c.Horizon,
		Status:     models.DecisionAccept,
		Reason:     models.ReasonAccepted,
		Evaluation: &eval,
		Allocation: &alloc,
		CreatedAt:  time.Now().UTC(),
	}
}

// rankGroup orders a group best-first: highest score, then lowest
// estimated cost, then signal id. Iteration order never decides.
func (a *Arbiter) rankGroup(group []Scored) []Scored {
	ordered := append([]Scored(nil), group...)
	sort.SliceStable(ordered, func(i, j int) bool {
		si, sj := ordered[i].Evaluation.Score, ordered[j].Evaluation.Score
		if si != sj {
			return si > sj
		}
		ci := a.cost.EstimatedCostBps(ordered[i].Candidate)
		cj := a.cost.EstimatedCostBps(ordered[j].Candidate)
		if ci != cj {
			return ci < cj
		}
		return ordered[i].Candidate.SignalID < ordered[j].Candidate.SignalID
	})
	return ordered
}

func (a *Arbiter) reject(batchID string, s Scored, reason models.ReasonCode, detail string) *models.Decision {
	c := s.Candidate
	eval := s.Evaluation
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
		Evaluation: &eval,
		CreatedAt:  time.Now().UTC(),
	}
}

func (a *Arbiter) rejectWithAllocation(batchID string, s Scored, alloc *models.RiskAllocation) *models.Decision {
	d := a.reject(batchID, s, alloc.Reason, alloc.ReasonDetail)
	d.Allocation = alloc
	return d
}

// groupByInstrument collects candidates into mutually exclusive groups.
// Same instrument in the same batch is one intention group regardless
// of direction: opposing directions conflict just as duplicates do.
// Group order follows first appearance in the batch, keeping output
// deterministic for a given input order.
func groupByInstrument(batch []Scored) [][]Scored {
	index := make(map[string]int)
	groups := make([][]Scored, 0)
	for _, s := range batch {
		key := s.Candidate.Symbol
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], s)
	}
	return groups
}
