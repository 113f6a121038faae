package models

import "time"

// CorrelationSnapshot is an immutable pairwise correlation matrix over
// strategies plus symbol factor exposures, computed from copied return
// histories on a fixed cadence.
type CorrelationSnapshot struct {
	Strategies []string            `json:"strategies"`
	Matrix     [][]float64         `json:"matrix"`            // symmetric, entries in [-1,1]
	Factors    map[string][]string `json:"factors,omitempty"` // symbol -> macro factor tags
	Clusters   map[string]int      `json:"clusters"`          // strategy -> cluster id
	TakenAt    time.Time           `json:"taken_at"`
}

// Pair returns the correlation between two strategies, or 0 when either
// is absent from the snapshot.
func (s *CorrelationSnapshot) Pair(a, b string) float64 {
	ai, bi := -1, -1
	for i, id := range s.Strategies {
		if id == a {
			ai = i
		}
		if id == b {
			bi = i
		}
	}
	if ai < 0 || bi < 0 {
		return 0
	}
	return s.Matrix[ai][bi]
}

// Cluster returns the correlation cluster id for a strategy. Strategies
// unknown to the snapshot get their own singleton cluster id -1.
func (s *CorrelationSnapshot) Cluster(strategyID string) int {
	if id, ok := s.Clusters[strategyID]; ok {
		return id
	}
	return -1
}
