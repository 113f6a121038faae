package models

import "time"

// Direction is the intended trade direction of a candidate.
type Direction string

const (
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

// Valid reports whether the direction is one of the known values.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// Opposite returns the opposing direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// MarketContext is the read-only microstructure snapshot for one symbol
// at evaluation time, supplied by the feature layer.
type MarketContext struct {
	Symbol        string  `json:"symbol"`
	Spread        float64 `json:"spread"`
	Depth         float64 `json:"depth"`
	VPIN          float64 `json:"vpin"`
	VolPercentile float64 `json:"vol_percentile"` // [0,100]
	Sector        string  `json:"sector"`
	DataAgeMs     int64   `json:"data_age_ms"`
	HasDepth      bool    `json:"has_depth"`
	HasVPIN       bool    `json:"has_vpin"`
}

// PortfolioContext is the open-position view supplied by the portfolio
// layer, consumed by scoring and allocation.
type PortfolioContext struct {
	OpenSymbols      []string           `json:"open_symbols"`
	SymbolExposure   map[string]float64 `json:"symbol_exposure"`   // committed risk pct per open symbol
	StrategyExposure map[string]float64 `json:"strategy_exposure"` // committed risk pct per strategy
	Equity           float64            `json:"equity"`
	DailyPnLPct      float64            `json:"daily_pnl_pct"`
}

// EntryPoint is one requested entry for a candidate that scales in.
type EntryPoint struct {
	Price         float64 `json:"price" validate:"gt=0"`
	Stop          float64 `json:"stop" validate:"gt=0"`
	Target        float64 `json:"target"`
	QualityWeight float64 `json:"quality_weight" validate:"gte=0"`
}

// SignalCandidate is one strategy's proposed action for an arbitration
// cycle. Immutable once submitted to the engine.
type SignalCandidate struct {
	SignalID    string       `json:"signal_id" validate:"required"`
	StrategyID  string       `json:"strategy_id" validate:"required"`
	Symbol      string       `json:"symbol" validate:"required"`
	Direction   Direction    `json:"direction" validate:"required,oneof=LONG SHORT"`
	Horizon     string       `json:"horizon" validate:"required"`
	Entry       float64      `json:"entry" validate:"gt=0"`
	Stop        float64      `json:"stop" validate:"gt=0"`
	Targets     []float64    `json:"targets"`
	Entries     []EntryPoint `json:"entries"` // optional multi-entry request
	Strength    float64      `json:"strength" validate:"gte=0,lte=1"`
	Confluence  []string     `json:"confluence"`
	SubmittedAt time.Time    `json:"submitted_at"`

	// Context snapshots taken at evaluation time.
	Market    MarketContext    `json:"market"`
	Portfolio PortfolioContext `json:"portfolio"`

	// Strategy pedigree, maintained by the strategy layer.
	StrategyWinRate  float64 `json:"strategy_win_rate" validate:"gte=0,lte=1"`
	StrategyTrades   int     `json:"strategy_trades" validate:"gte=0"`
	StrategyDrawdown float64 `json:"strategy_drawdown" validate:"gte=0"`
}

// Intention is the (instrument, direction) pair at most one admitted
// decision may occupy per arbitration cycle.
type Intention struct {
	Symbol    string
	Direction Direction
}

// Intention returns the candidate's intention key.
func (c *SignalCandidate) Intention() Intention {
	return Intention{Symbol: c.Symbol, Direction: c.Direction}
}
