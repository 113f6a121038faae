package arbiter

import (
	"RiskArbiter/internal/domain/models"
	"RiskArbiter/pkg/numeric"
)

// CostModel estimates transaction cost and net expected value. The
// depth proxy is floored before any division; the raw value is never
// used as a denominator.
type CostModel struct {
	liquidityFloor float64
	slippageBps    float64
}

// NewCostModel creates a cost model. liquidityFloor must be positive.
func NewCostModel(liquidityFloor, slippageBps float64) *CostModel {
	return &CostModel{
		liquidityFloor: numeric.FloorAt(liquidityFloor, numeric.Epsilon),
		slippageBps:    numeric.FloorAt(slippageBps, 0),
	}
}

// EstimatedCostBps returns the estimated round-trip cost of executing
// a candidate, in basis points of the entry price.
func (m *CostModel) EstimatedCostBps(c *models.SignalCandidate) float64 {
	spreadBps := numeric.SafeDiv(c.Market.Spread, c.Entry, 0) * 10000

	depth := numeric.FloorAt(c.Market.Depth, m.liquidityFloor)
	// Impact grows as depth shrinks toward the floor; at generous depth
	// it converges to the base slippage.
	impactBps := m.slippageBps * (1 + numeric.SafeDiv(1e5, depth, 0))

	return spreadBps/2 + impactBps
}

// NetExpectedValueBps returns the candidate's expected move toward its
// first target, scaled by score, minus estimated costs. Degenerate
// geometry yields a non-positive result, which rejects the candidate
// rather than erroring.
func (m *CostModel) NetExpectedValueBps(c *models.SignalCandidate, score float64) float64 {
	if len(c.Targets) == 0 {
		// No target: assume one risk-distance of favorable movement.
		dist := c.Entry - c.Stop
		if dist < 0 {
			dist = -dist
		}
		moveBps := numeric.SafeDiv(dist, c.Entry, 0) * 10000
		return moveBps*numeric.Clamp01(score) - m.EstimatedCostBps(c)
	}

	move := c.Targets[0] - c.Entry
	if c.Direction == models.DirectionShort {
		move = -move
	}
	moveBps := numeric.SafeDiv(move, c.Entry, 0) * 10000
	return moveBps*numeric.Clamp01(score) - m.EstimatedCostBps(c)
}
