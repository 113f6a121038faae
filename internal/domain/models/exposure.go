package models

// BudgetDimension is one classification axis a cap applies to.
type BudgetDimension string

const (
	DimensionTotal     BudgetDimension = "total"
	DimensionSymbol    BudgetDimension = "symbol"
	DimensionStrategy  BudgetDimension = "strategy"
	DimensionSector    BudgetDimension = "sector"
	DimensionDirection BudgetDimension = "direction"
	DimensionCluster   BudgetDimension = "cluster"
)

// DimensionCheck is the cap evaluation for one dimension.
type DimensionCheck struct {
	Dimension BudgetDimension `json:"dimension"`
	Key       string          `json:"key"`
	Committed float64         `json:"committed"`
	CapPct    float64         `json:"cap_pct"`
	Headroom  float64         `json:"headroom"`
	Passed    bool            `json:"passed"`
}

// ExposureCheck is the result of an atomic check-and-reserve.
type ExposureCheck struct {
	CandidateID string           `json:"candidate_id"`
	RiskPct     float64          `json:"risk_pct"`
	Passed      bool             `json:"passed"`
	Dimensions  []DimensionCheck `json:"dimensions"`
	// MinHeadroom is the tightest remaining headroom across all
	// dimensions before this reservation; allocators clamp to it.
	MinHeadroom float64 `json:"min_headroom"`
}

// FailedDimension returns the first failing dimension check, if any.
func (e *ExposureCheck) FailedDimension() (DimensionCheck, bool) {
	for _, d := range e.Dimensions {
		if !d.Passed {
			return d, true
		}
	}
	return DimensionCheck{}, false
}

// BudgetSnapshot is a read-only copy of the committed ledgers, exposed
// to the audit API.
type BudgetSnapshot struct {
	TotalCommitted float64            `json:"total_committed"`
	BySymbol       map[string]float64 `json:"by_symbol"`
	ByStrategy     map[string]float64 `json:"by_strategy"`
	BySector       map[string]float64 `json:"by_sector"`
	ByDirection    map[string]float64 `json:"by_direction"`
	ByCluster      map[string]float64 `json:"by_cluster"`
}
