package models

import "time"

// Evaluation warning flags. Missing optional inputs reduce confidence
// but never abort scoring.
const (
	FlagMissingDepth      = "missing-depth"
	FlagMissingVPIN       = "missing-vpin"
	FlagStaleMarketData   = "stale-market-data"
	FlagShortPedigree     = "short-pedigree"
	FlagDegenerateInput   = "degenerate-input"
	FlagEmptyCorrelation  = "empty-correlation"
	FlagExtremeVolatility = "extreme-volatility"
)

// DimensionScores is the per-dimension breakdown of a quality score.
type DimensionScores struct {
	Pedigree       float64 `json:"pedigree"`
	Strength       float64 `json:"strength"`
	Microstructure float64 `json:"microstructure"`
	DataHealth     float64 `json:"data_health"`
	PortfolioFit   float64 `json:"portfolio_fit"`
}

// QualityEvaluation is the immutable scoring result for one candidate
// in one cycle. The inputs snapshot makes the score auditable.
type QualityEvaluation struct {
	SignalID    string          `json:"signal_id"`
	Score       float64         `json:"score"` // [0,1]
	Dimensions  DimensionScores `json:"dimensions"`
	Flags       []string        `json:"flags,omitempty"`
	Confidence  float64         `json:"confidence"` // [0,1], reduced per missing input
	Inputs      InputSnapshot   `json:"inputs"`
	EvaluatedAt time.Time       `json:"evaluated_at"`
}

// InputSnapshot records the raw inputs a score was computed from.
type InputSnapshot struct {
	Strength       float64 `json:"strength"`
	WinRate        float64 `json:"win_rate"`
	Trades         int     `json:"trades"`
	Spread         float64 `json:"spread"`
	Depth          float64 `json:"depth"`
	VPIN           float64 `json:"vpin"`
	VolPercentile  float64 `json:"vol_percentile"`
	OpenSymbols    int     `json:"open_symbols"`
	AvgCorrelation float64 `json:"avg_correlation"`
}

// HasFlag reports whether the evaluation carries the given warning flag.
func (e *QualityEvaluation) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}
