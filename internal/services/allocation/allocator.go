package allocation

import (
	"fmt"
	"math"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/logger"
	"RiskArbiter/pkg/numeric"
)

// Allocator maps quality scores to risk percentages. The score→risk
// curve is a scaled sigmoid; its exact shape is policy and comes from
// configuration, but it is strictly increasing, which is the contract.
type Allocator struct {
	limits service.AllocationLimits
	log    *logger.Logger
}

// New creates a risk allocator with the given policy limits.
func New(limits service.AllocationLimits, log *logger.Logger) *Allocator {
	return &Allocator{limits: limits, log: log}
}

var _ service.Allocator = (*Allocator)(nil)

// Allocate produces the risk allocation for one scored candidate.
// Adjustments only ever reduce risk; the final value is the minimum of
// the adjusted risk, the tightest budget headroom, and the per-idea cap.
func (a *Allocator) Allocate(eval *models.QualityEvaluation, c *models.SignalCandidate, exposure models.ExposureCheck) models.RiskAllocation {
	out := models.RiskAllocation{SignalID: c.SignalID}

	if eval.Score < a.limits.MinScore {
		out.Reason = models.ReasonBelowMinScore
		out.ReasonDetail = fmt.Sprintf("score %.3f below minimum %.2f", eval.Score, a.limits.MinScore)
		return out
	}

	base := a.baseRisk(eval.Score)
	out.BaseRiskPct = base

	adjusted := base
	apply := func(name string, factor float64, detail string) {
		factor = numeric.Clamp(factor, 0, 1)
		if factor >= 1 {
			return
		}
		adjusted *= factor
		out.Adjustments = append(out.Adjustments, models.Adjustment{
			Name:   name,
			Factor: factor,
			Detail: detail,
		})
	}

	// Budget scarcity for the originating strategy.
	for _, d := range exposure.Dimensions {
		if d.Dimension != models.DimensionStrategy || d.CapPct <= 0 {
			continue
		}
		utilization := numeric.Clamp01(numeric.SafeDiv(d.Committed, d.CapPct, 0))
		if utilization > 0.5 {
			apply("strategy-budget-scarcity", 1.25-0.75*utilization,
				fmt.Sprintf("strategy budget %.0f%% utilized", utilization*100))
		}
	}

	// Existing concentration in the symbol.
	if existing := c.Portfolio.SymbolExposure[c.Symbol]; existing > 0 {
		apply("symbol-concentration", 1-existing/4.0,
			fmt.Sprintf("%.2f%% already committed to %s", existing, c.Symbol))
	}

	// Correlation with open positions.
	if corr := eval.Inputs.AvgCorrelation; corr > 0.2 {
		apply("open-position-correlation", 1-0.5*corr,
			fmt.Sprintf("average open correlation %.2f", corr))
	}

	// Extreme volatility context.
	switch {
	case c.Market.VolPercentile >= 90:
		apply("extreme-volatility", 0.5,
			fmt.Sprintf("volatility percentile %.0f", c.Market.VolPercentile))
	case c.Market.VolPercentile >= 75:
		apply("elevated-volatility", 0.75,
			fmt.Sprintf("volatility percentile %.0f", c.Market.VolPercentile))
	}

	final := math.Min(adjusted, a.limits.MaxRiskPct)
	if exposure.MinHeadroom < final {
		final = exposure.MinHeadroom
		out.Adjustments = append(out.Adjustments, models.Adjustment{
			Name:   "budget-headroom-clamp",
			Factor: numeric.SafeDiv(exposure.MinHeadroom, adjusted, 1),
			Detail: fmt.Sprintf("clamped to remaining headroom %.4f%%", exposure.MinHeadroom),
		})
	}

	if final < a.limits.MinTradablePct {
		out.Reason = models.ReasonHeadroomBelowMinimum
		out.ReasonDetail = fmt.Sprintf("allocatable %.4f%% below minimum tradable %.2f%%", final, a.limits.MinTradablePct)
		out.Adjustments = nil
		return out
	}

	out.Approved = true
	out.TotalRiskPct = final
	out.Entries = a.splitEntries(c, final)
	return out
}

// baseRisk is the strictly increasing score→risk mapping.
func (a *Allocator) baseRisk(score float64) float64 {
	score = numeric.Clamp01(score)
	raw := a.limits.MaxRiskPct / (1 + math.Exp(-a.limits.SigmoidSlope*(score-a.limits.SigmoidMidpoint)))
	return numeric.Clamp(raw, 0, a.limits.MaxRiskPct)
}

// splitEntries distributes total risk across requested entry points
// proportionally to per-entry quality weight. The parts sum to the
// total within floating tolerance; the last entry absorbs the residual.
func (a *Allocator) splitEntries(c *models.SignalCandidate, totalPct float64) []models.EntryAllocation {
	target := 0.0
	if len(c.Targets) > 0 {
		target = c.Targets[0]
	}

	if len(c.Entries) == 0 {
		return []models.EntryAllocation{{
			Price:   c.Entry,
			Stop:    c.Stop,
			Target:  target,
			RiskPct: totalPct,
			Volume:  volumeFor(c.Portfolio.Equity, totalPct, c.Entry, c.Stop),
		}}
	}

	weightSum := 0.0
	for _, e := range c.Entries {
		if numeric.IsFinite(e.QualityWeight) && e.QualityWeight > 0 {
			weightSum += e.QualityWeight
		}
	}

	out := make([]models.EntryAllocation, 0, len(c.Entries))
	assigned := 0.0
	for i, e := range c.Entries {
		var part float64
		if i == len(c.Entries)-1 {
			part = totalPct - assigned
		} else if weightSum > 0 && numeric.IsFinite(e.QualityWeight) && e.QualityWeight > 0 {
			part = totalPct * e.QualityWeight / weightSum
		} else {
			part = totalPct / float64(len(c.Entries))
		}
		assigned += part
		out = append(out, models.EntryAllocation{
			Price:   e.Price,
			Stop:    e.Stop,
			Target:  e.Target,
			RiskPct: part,
			Volume:  volumeFor(c.Portfolio.Equity, part, e.Price, e.Stop),
		})
	}
	return out
}

// volumeFor sizes a position so the stop distance risks riskPct of
// equity. A degenerate stop distance yields zero volume, never Inf.
func volumeFor(equity, riskPct, price, stop float64) float64 {
	riskAmount := equity * riskPct / 100
	dist := math.Abs(price - stop)
	return numeric.FloorAt(numeric.SafeDiv(riskAmount, dist, 0), 0)
}
