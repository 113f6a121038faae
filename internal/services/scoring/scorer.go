package scoring

import (
	"math"
	"time"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/logger"
	"RiskArbiter/pkg/numeric"
)

// Dimension weights. The five weights sum to 1 and are part of the
// scoring contract; sub-metric blends inside each dimension are tuning.
const (
	weightPedigree       = 0.25
	weightStrength       = 0.25
	weightMicrostructure = 0.20
	weightDataHealth     = 0.15
	weightPortfolioFit   = 0.15
)

// neutral is substituted for any sub-metric computed from a degenerate
// input. It keeps the dimension defined without rewarding or punishing.
const neutral = 0.5

// maxDataAgeMs is the market-data age beyond which data is considered stale.
const maxDataAgeMs = 5000

// Scorer computes bounded composite quality scores.
type Scorer struct {
	log *logger.Logger
}

// New creates a quality scorer.
func New(log *logger.Logger) *Scorer {
	return &Scorer{log: log}
}

var _ service.Scorer = (*Scorer)(nil)

// Evaluate computes the composite score for one candidate. The result
// is always finite and clamped to [0,1]; degenerate inputs substitute
// neutral values and set warning flags instead of aborting.
func (s *Scorer) Evaluate(c *models.SignalCandidate, snap *models.CorrelationSnapshot) models.QualityEvaluation {
	eval := models.QualityEvaluation{
		SignalID:    c.SignalID,
		Confidence:  1.0,
		EvaluatedAt: time.Now().UTC(),
		Inputs: models.InputSnapshot{
			Strength:      c.Strength,
			WinRate:       c.StrategyWinRate,
			Trades:        c.StrategyTrades,
			Spread:        c.Market.Spread,
			Depth:         c.Market.Depth,
			VPIN:          c.Market.VPIN,
			VolPercentile: c.Market.VolPercentile,
			OpenSymbols:   len(c.Portfolio.OpenSymbols),
		},
	}

	flag := func(f string) {
		if !eval.HasFlag(f) {
			eval.Flags = append(eval.Flags, f)
			eval.Confidence = numeric.Clamp01(eval.Confidence - 0.1)
		}
	}

	eval.Dimensions.Pedigree = s.pedigree(c, flag)
	eval.Dimensions.Strength = s.strength(c, flag)
	eval.Dimensions.Microstructure = s.microstructure(c, flag)
	eval.Dimensions.DataHealth = s.dataHealth(c, flag)
	fit, avgCorr := s.portfolioFit(c, snap, flag)
	eval.Dimensions.PortfolioFit = fit
	eval.Inputs.AvgCorrelation = avgCorr

	score := eval.Dimensions.Pedigree*weightPedigree +
		eval.Dimensions.Strength*weightStrength +
		eval.Dimensions.Microstructure*weightMicrostructure +
		eval.Dimensions.DataHealth*weightDataHealth +
		eval.Dimensions.PortfolioFit*weightPortfolioFit

	if !numeric.IsFinite(score) {
		// A non-finite composite is a defect upstream; the guards above
		// should make this unreachable. Substitute zero and flag.
		s.log.Error("non-finite composite score", logger.String("signal_id", c.SignalID))
		flag(models.FlagDegenerateInput)
		score = 0
	}
	eval.Score = numeric.Clamp01(score)
	return eval
}

// pedigree blends win rate, sample maturity, and drawdown discipline.
func (s *Scorer) pedigree(c *models.SignalCandidate, flag func(string)) float64 {
	winRate := numeric.Clamp01(c.StrategyWinRate)

	// Maturity saturates around 200 trades on a log scale.
	maturity := numeric.Clamp01(numeric.SafeLog(float64(c.StrategyTrades)+1, 0) / math.Log(201))
	if c.StrategyTrades < 20 {
		flag(models.FlagShortPedigree)
	}

	// Drawdown in [0,1] of equity; deeper drawdowns score worse.
	ddPenalty := numeric.Clamp01(1 - c.StrategyDrawdown)

	return numeric.Clamp01(0.5*winRate + 0.25*maturity + 0.25*ddPenalty)
}

// strength blends the strategy's own strength metric, confluence, and
// the reward-to-risk geometry of the proposed levels.
func (s *Scorer) strength(c *models.SignalCandidate, flag func(string)) float64 {
	base := numeric.Clamp01(c.Strength)

	confluence := numeric.Clamp01(float64(len(c.Confluence)) / 4.0)

	rr := neutral
	riskDist := math.Abs(c.Entry - c.Stop)
	if len(c.Targets) > 0 {
		rewardDist := math.Abs(c.Targets[0] - c.Entry)
		ratio := numeric.SafeDiv(rewardDist, riskDist, -1)
		if ratio < 0 {
			flag(models.FlagDegenerateInput)
		} else {
			// 1:1 is neutral, 3:1 or better saturates.
			rr = numeric.Clamp01(ratio / 3.0)
		}
	}

	return numeric.Clamp01(0.6*base + 0.15*confluence + 0.25*rr)
}

// microstructure blends relative spread, depth, and flow toxicity.
func (s *Scorer) microstructure(c *models.SignalCandidate, flag func(string)) float64 {
	// Relative spread in basis points; 0 bps -> 1.0, 10+ bps -> 0.
	relSpreadBps := numeric.SafeDiv(c.Market.Spread, c.Entry, -1) * 10000
	spreadScore := neutral
	if relSpreadBps < 0 {
		flag(models.FlagDegenerateInput)
	} else {
		spreadScore = numeric.Clamp01(1 - relSpreadBps/10.0)
	}

	depthScore := neutral
	if c.Market.HasDepth {
		// Depth saturates on a log scale around 1e6 units.
		depthScore = numeric.Clamp01(numeric.SafeLog(c.Market.Depth+1, 0) / math.Log(1e6))
	} else {
		flag(models.FlagMissingDepth)
	}

	toxicity := neutral
	if c.Market.HasVPIN {
		toxicity = numeric.Clamp01(1 - c.Market.VPIN)
	} else {
		flag(models.FlagMissingVPIN)
	}

	return numeric.Clamp01(0.4*spreadScore + 0.3*depthScore + 0.3*toxicity)
}

// dataHealth scores freshness and completeness of the market snapshot.
func (s *Scorer) dataHealth(c *models.SignalCandidate, flag func(string)) float64 {
	age := numeric.Clamp01(1 - float64(c.Market.DataAgeMs)/maxDataAgeMs)
	if c.Market.DataAgeMs > maxDataAgeMs {
		flag(models.FlagStaleMarketData)
	}

	completeness := 1.0
	if !c.Market.HasDepth {
		completeness -= 0.3
	}
	if !c.Market.HasVPIN {
		completeness -= 0.3
	}

	return numeric.Clamp01(0.6*age + 0.4*numeric.Clamp01(completeness))
}

// portfolioFit penalizes concentration and correlation against the
// current book. Returns the fit score and the average open correlation.
func (s *Scorer) portfolioFit(c *models.SignalCandidate, snap *models.CorrelationSnapshot, flag func(string)) (float64, float64) {
	existing := c.Portfolio.SymbolExposure[c.Symbol]
	concentration := numeric.Clamp01(1 - existing/2.0)

	avgCorr := 0.0
	corrScore := neutral
	if snap == nil || len(snap.Strategies) == 0 {
		flag(models.FlagEmptyCorrelation)
	} else {
		var sum float64
		var n int
		for other := range c.Portfolio.StrategyExposure {
			if other == c.StrategyID {
				continue
			}
			sum += math.Abs(snap.Pair(c.StrategyID, other))
			n++
		}
		if n > 0 {
			avgCorr = sum / float64(n)
			corrScore = numeric.Clamp01(1 - avgCorr)
		}
	}

	crowding := numeric.Clamp01(1 - float64(len(c.Portfolio.OpenSymbols))/20.0)

	if c.Market.VolPercentile >= 95 {
		flag(models.FlagExtremeVolatility)
	}

	return numeric.Clamp01(0.4*concentration + 0.4*corrScore + 0.2*crowding), avgCorr
}
