package exposure

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/shopspring/decimal"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/logger"
)

var (
	ErrNegativeCap   = errors.New("exposure: cap must be >= 0")
	ErrNegativeDelta = errors.New("exposure: committed delta must be positive")
	ErrNonFiniteRisk = errors.New("exposure: risk percentage must be finite")
)

// Caps are the configured per-dimension limits in percent. A zero cap
// disables the dimension.
type Caps struct {
	TotalPct     float64
	SymbolPct    float64
	StrategyPct  float64
	SectorPct    float64
	DirectionPct float64
	ClusterPct   float64
}

// reservation remembers the ledger keys one candidate committed to, so
// release subtracts exactly what was reserved.
type reservation struct {
	amount    decimal.Decimal
	symbol    string
	strategy  string
	sector    string
	direction string
	cluster   string
}

// Tracker maintains committed-risk ledgers across all dimensions.
// Committed amounts are decimal so that repeated reserve/release cycles
// never drift; the check and the commit happen under one mutex, which
// is the whole concurrency story of this component.
type Tracker struct {
	mu           sync.Mutex
	caps         Caps
	total        decimal.Decimal
	bySymbol     map[string]decimal.Decimal
	byStrategy   map[string]decimal.Decimal
	bySector     map[string]decimal.Decimal
	byDirection  map[string]decimal.Decimal
	byCluster    map[string]decimal.Decimal
	reservations map[string]reservation

	log     *logger.Logger
	metrics service.Metrics

	// invariantHook escalates an unrecoverable ledger defect (negative
	// committed risk) to the kill switch emergency path.
	invariantHook func(reason string)
}

// New creates a tracker, validating configuration at construction.
func New(caps Caps, log *logger.Logger, metrics service.Metrics) (*Tracker, error) {
	for name, v := range map[string]float64{
		"total": caps.TotalPct, "symbol": caps.SymbolPct, "strategy": caps.StrategyPct,
		"sector": caps.SectorPct, "direction": caps.DirectionPct, "cluster": caps.ClusterPct,
	} {
		if v < 0 {
			return nil, fmt.Errorf("%w: %s=%v", ErrNegativeCap, name, v)
		}
	}
	return &Tracker{
		caps:         caps,
		bySymbol:     make(map[string]decimal.Decimal),
		byStrategy:   make(map[string]decimal.Decimal),
		bySector:     make(map[string]decimal.Decimal),
		byDirection:  make(map[string]decimal.Decimal),
		byCluster:    make(map[string]decimal.Decimal),
		reservations: make(map[string]reservation),
		log:          log,
		metrics:      metrics,
	}, nil
}

var _ service.ExposureTracker = (*Tracker)(nil)

// SetInvariantHook registers the escalation path for ledger defects.
func (t *Tracker) SetInvariantHook(hook func(reason string)) {
	t.mu.Lock()
	t.invariantHook = hook
	t.mu.Unlock()
}

// CheckAndReserve atomically evaluates every dimension cap and commits
// the reservation when all pass. No partially visible state: either the
// whole reservation is committed or nothing is.
func (t *Tracker) CheckAndReserve(c *models.SignalCandidate, riskPct float64, cluster int) (models.ExposureCheck, error) {
	if math.IsNaN(riskPct) || math.IsInf(riskPct, 0) {
		return models.ExposureCheck{}, ErrNonFiniteRisk
	}
	if riskPct <= 0 {
		return models.ExposureCheck{}, fmt.Errorf("%w: %v", ErrNegativeDelta, riskPct)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	check := t.evaluateLocked(c, riskPct, cluster)
	if !check.Passed {
		return check, nil
	}

	amount := decimal.NewFromFloat(riskPct)
	res := reservation{
		amount:    amount,
		symbol:    c.Symbol,
		strategy:  c.StrategyID,
		sector:    c.Market.Sector,
		direction: string(c.Direction),
		cluster:   clusterKey(cluster),
	}
	t.total = t.total.Add(amount)
	t.bySymbol[res.symbol] = t.bySymbol[res.symbol].Add(amount)
	t.byStrategy[res.strategy] = t.byStrategy[res.strategy].Add(amount)
	if res.sector != "" {
		t.bySector[res.sector] = t.bySector[res.sector].Add(amount)
	}
	t.byDirection[res.direction] = t.byDirection[res.direction].Add(amount)
	if res.cluster != "" {
		t.byCluster[res.cluster] = t.byCluster[res.cluster].Add(amount)
	}
	t.reservations[c.SignalID] = res
	check.CandidateID = c.SignalID

	t.recordGaugesLocked(res)
	return check, nil
}

// Headroom returns a read-only copy of the current cap evaluation for a
// candidate without reserving anything; callers use it for the
// copy-validate-commit pattern.
func (t *Tracker) Headroom(c *models.SignalCandidate, cluster int) models.ExposureCheck {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Probe with a zero-effect epsilon so every dimension reports headroom.
	return t.evaluateLocked(c, 0, cluster)
}

// Release frees a prior reservation. Returns false when the id is
// unknown (already released or never reserved).
func (t *Tracker) Release(candidateID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	res, ok := t.reservations[candidateID]
	if !ok {
		return false
	}
	delete(t.reservations, candidateID)

	t.total = t.total.Sub(res.amount)
	t.bySymbol[res.symbol] = t.bySymbol[res.symbol].Sub(res.amount)
	t.byStrategy[res.strategy] = t.byStrategy[res.strategy].Sub(res.amount)
	if res.sector != "" {
		t.bySector[res.sector] = t.bySector[res.sector].Sub(res.amount)
	}
	t.byDirection[res.direction] = t.byDirection[res.direction].Sub(res.amount)
	if res.cluster != "" {
		t.byCluster[res.cluster] = t.byCluster[res.cluster].Sub(res.amount)
	}

	if t.total.IsNegative() {
		// Cannot happen while reservations are the only mutation path;
		// if it does, the ledger is corrupt and trading must stop.
		t.log.Error("committed risk ledger negative", logger.String("total", t.total.String()))
		if t.invariantHook != nil {
			t.invariantHook("negative committed risk after release of " + candidateID)
		}
	}

	t.recordGaugesLocked(res)
	return true
}

// Snapshot returns a float copy of all committed ledgers.
func (t *Tracker) Snapshot() models.BudgetSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := models.BudgetSnapshot{
		TotalCommitted: t.total.InexactFloat64(),
		BySymbol:       toFloatMap(t.bySymbol),
		ByStrategy:     toFloatMap(t.byStrategy),
		BySector:       toFloatMap(t.bySector),
		ByDirection:    toFloatMap(t.byDirection),
		ByCluster:      toFloatMap(t.byCluster),
	}
	return snap
}

// evaluateLocked builds the per-dimension check for committing riskPct.
// Callers hold t.mu.
func (t *Tracker) evaluateLocked(c *models.SignalCandidate, riskPct float64, cluster int) models.ExposureCheck {
	check := models.ExposureCheck{
		CandidateID: c.SignalID,
		RiskPct:     riskPct,
		Passed:      true,
		MinHeadroom: math.MaxFloat64,
	}

	add := func(dim models.BudgetDimension, key string, committed decimal.Decimal, capPct float64) {
		if capPct <= 0 {
			return
		}
		com := committed.InexactFloat64()
		headroom := capPct - com
		if headroom < 0 {
			headroom = 0
		}
		passed := com+riskPct <= capPct+1e-12
		check.Dimensions = append(check.Dimensions, models.DimensionCheck{
			Dimension: dim,
			Key:       key,
			Committed: com,
			CapPct:    capPct,
			Headroom:  headroom,
			Passed:    passed,
		})
		if !passed {
			check.Passed = false
		}
		if headroom < check.MinHeadroom {
			check.MinHeadroom = headroom
		}
	}

	add(models.DimensionTotal, "total", t.total, t.caps.TotalPct)
	add(models.DimensionSymbol, c.Symbol, t.bySymbol[c.Symbol], t.caps.SymbolPct)
	add(models.DimensionStrategy, c.StrategyID, t.byStrategy[c.StrategyID], t.caps.StrategyPct)
	if c.Market.Sector != "" {
		add(models.DimensionSector, c.Market.Sector, t.bySector[c.Market.Sector], t.caps.SectorPct)
	}
	add(models.DimensionDirection, string(c.Direction), t.byDirection[string(c.Direction)], t.caps.DirectionPct)
	if key := clusterKey(cluster); key != "" {
		add(models.DimensionCluster, key, t.byCluster[key], t.caps.ClusterPct)
	}
	return check
}

func (t *Tracker) recordGaugesLocked(res reservation) {
	if t.metrics == nil {
		return
	}
	t.metrics.RecordCommittedRisk(string(models.DimensionTotal), "total", t.total.InexactFloat64())
	t.metrics.RecordCommittedRisk(string(models.DimensionSymbol), res.symbol, t.bySymbol[res.symbol].InexactFloat64())
	t.metrics.RecordCommittedRisk(string(models.DimensionStrategy), res.strategy, t.byStrategy[res.strategy].InexactFloat64())
	if res.direction != "" {
		t.metrics.RecordCommittedRisk(string(models.DimensionDirection), res.direction, t.byDirection[res.direction].InexactFloat64())
	}
}

func clusterKey(cluster int) string {
	if cluster < 0 {
		return ""
	}
	return fmt.Sprintf("c%d", cluster)
}

func toFloatMap(in map[string]decimal.Decimal) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v.InexactFloat64()
	}
	return out
}
