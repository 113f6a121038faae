package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain service.Metrics using Prometheus.
type Recorder struct {
	decisionsTotal   *prometheus.CounterVec
	committedRisk    *prometheus.GaugeVec
	cycleDuration    prometheus.Histogram
	ledgerEvictions  prometheus.Counter
	killSwitchBlocks *prometheus.CounterVec
	lockTimeouts     prometheus.Counter
}

// New creates a Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskarbiter_decisions_total",
				Help: "Total number of arbitration decisions by status and reason",
			},
			[]string{"status", "reason"},
		),
		committedRisk: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "riskarbiter_committed_risk_pct",
				Help: "Committed risk percentage per budget dimension",
			},
			[]string{"dimension", "key"},
		),
		cycleDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "riskarbiter_cycle_duration_seconds",
				Help:    "Duration of one arbitration cycle in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		ledgerEvictions: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "riskarbiter_ledger_evictions_total",
				Help: "Total number of decision ledger evictions",
			},
		),
		killSwitchBlocks: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "riskarbiter_killswitch_blocks_total",
				Help: "Total number of kill switch block transitions by layer",
			},
			[]string{"layer"},
		),
		lockTimeouts: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "riskarbiter_intention_lock_timeouts_total",
				Help: "Total number of intention lock acquisition timeouts",
			},
		),
	}
}

// RecordDecision records one decision outcome.
func (r *Recorder) RecordDecision(status, reason string) {
	r.decisionsTotal.WithLabelValues(status, reason).Inc()
}

// RecordCommittedRisk records the committed risk for one dimension entry.
func (r *Recorder) RecordCommittedRisk(dimension, key string, pct float64) {
	r.committedRisk.WithLabelValues(dimension, key).Set(pct)
}

// RecordCycleDuration records the duration of one arbitration cycle.
func (r *Recorder) RecordCycleDuration(seconds float64) {
	r.cycleDuration.Observe(seconds)
}

// RecordLedgerEviction records a ledger eviction.
func (r *Recorder) RecordLedgerEviction() {
	r.ledgerEvictions.Inc()
}

// RecordKillSwitchBlock records a kill switch block transition.
func (r *Recorder) RecordKillSwitchBlock(layer string) {
	r.killSwitchBlocks.WithLabelValues(layer).Inc()
}

// RecordLockTimeout records an intention lock timeout.
func (r *Recorder) RecordLockTimeout() {
	r.lockTimeouts.Inc()
}
