package correlation

import (
	"sort"
	"sync"
	"time"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/numeric"
)

// Tracker maintains bounded rolling return histories per strategy and
// computes pairwise correlation snapshots. Snapshots are always built
// from a copied view of the histories; the live buffers are never
// iterated outside the mutex.
type Tracker struct {
	mu        sync.Mutex
	histories map[string][]float64
	maxLen    int
	threshold float64
	factors   map[string][]string
}

// New creates a correlation tracker. maxLen bounds each history;
// threshold is the absolute correlation at which two strategies join
// the same risk cluster.
func New(maxLen int, threshold float64) *Tracker {
	if maxLen < 2 {
		maxLen = 2
	}
	return &Tracker{
		histories: make(map[string][]float64),
		maxLen:    maxLen,
		threshold: numeric.Clamp01(threshold),
		factors:   make(map[string][]string),
	}
}

var _ service.CorrelationTracker = (*Tracker)(nil)

// RecordOutcome appends one return observation to a strategy's rolling
// history, evicting the oldest beyond the bound. Non-finite returns are
// dropped; they would poison every downstream correlation.
func (t *Tracker) RecordOutcome(strategyID string, ret float64) {
	if !numeric.IsFinite(ret) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	h := append(t.histories[strategyID], ret)
	if len(h) > t.maxLen {
		h = h[len(h)-t.maxLen:]
	}
	t.histories[strategyID] = h
}

// SetFactors records macro-factor exposure tags for a symbol.
func (t *Tracker) SetFactors(symbol string, factors []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.factors[symbol] = append([]string(nil), factors...)
}

// SnapshotMatrix computes the current correlation matrix and cluster
// assignment from a copied view of the histories. The returned snapshot
// is immutable; later appends never affect it.
func (t *Tracker) SnapshotMatrix() *models.CorrelationSnapshot {
	copied, factors := t.copyState()

	ids := make([]string, 0, len(copied))
	for id := range copied {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	n := len(ids)
	matrix := make([][]float64, n)
	for i := range matrix {
		matrix[i] = make([]float64, n)
		matrix[i][i] = 1
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := pairCorrelation(copied[ids[i]], copied[ids[j]])
			matrix[i][j] = r
			matrix[j][i] = r
		}
	}

	return &models.CorrelationSnapshot{
		Strategies: ids,
		Matrix:     matrix,
		Factors:    factors,
		Clusters:   clusterize(ids, matrix, t.threshold),
		TakenAt:    time.Now().UTC(),
	}
}

// copyState clones histories and factor tags under the mutex so matrix
// computation runs on data no other goroutine can mutate.
func (t *Tracker) copyState() (map[string][]float64, map[string][]string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	histories := make(map[string][]float64, len(t.histories))
	for id, h := range t.histories {
		histories[id] = append([]float64(nil), h...)
	}
	factors := make(map[string][]string, len(t.factors))
	for sym, f := range t.factors {
		factors[sym] = append([]string(nil), f...)
	}
	return histories, factors
}

// pairCorrelation aligns the trailing windows of two histories and
// computes Pearson correlation over the overlap.
func pairCorrelation(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n < 2 {
		return 0
	}
	return numeric.Pearson(a[len(a)-n:], b[len(b)-n:])
}

// clusterize groups strategies whose absolute pairwise correlation
// meets the threshold, via union-find over the matrix.
func clusterize(ids []string, matrix [][]float64, threshold float64) map[string]int {
	parent := make([]int, len(ids))
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		if parent[i] != i {
			parent[i] = find(parent[i])
		}
		return parent[i]
	}
	union := func(i, j int) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
	}

	for i := range ids {
		for j := i + 1; j < len(ids); j++ {
			if abs(matrix[i][j]) >= threshold {
				union(i, j)
			}
		}
	}

	roots := make(map[int]int)
	out := make(map[string]int, len(ids))
	for i, id := range ids {
		root := find(i)
		cluster, ok := roots[root]
		if !ok {
			cluster = len(roots)
			roots[root] = cluster
		}
		out[id] = cluster
	}
	return out
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
