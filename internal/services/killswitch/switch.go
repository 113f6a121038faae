package killswitch

import (
	"context"
	"sync"
	"time"

	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/logger"
)

// State of the kill switch gate.
type State string

const (
	StateActive  State = "ACTIVE"
	StateBlocked State = "BLOCKED"
)

// Layer identifies which safety layer forced a block.
type Layer string

const (
	LayerPerTradeRisk    Layer = "per-trade-risk"
	LayerDailyDrawdown   Layer = "daily-drawdown"
	LayerStrategyCircuit Layer = "strategy-circuit"
	LayerPortfolioStop   Layer = "portfolio-stop"
	LayerManual          Layer = "manual"
)

// Thresholds are the layer trip points; policy, supplied by config.
type Thresholds struct {
	PerTradeRiskCapPct   float64
	DailyDrawdownPct     float64
	MaxConsecutiveLosses int
	MinWinRate           float64
	MinTradesForWinRate  int
	PortfolioDrawdownPct float64
}

// Status is a read-only view of the switch for the audit API.
type Status struct {
	State         State            `json:"state"`
	BlockedLayers map[Layer]string `json:"blocked_layers,omitempty"`
	BlockedAt     time.Time        `json:"blocked_at,omitempty"`
	BlockCount    uint64           `json:"block_count"`
}

type strategyStat struct {
	consecutiveLosses int
	wins              int
	trades            int
}

// Switch is the four-layer fail-closed gate. A single mutex guards all
// state; a block transition can only be undone by an explicit reset,
// never lost to a race.
type Switch struct {
	mu sync.Mutex

	th            Thresholds
	state         State
	blockedLayers map[Layer]string
	blockedAt     time.Time
	blockCount    uint64

	strategies        map[string]*strategyStat
	dailyDrawdown     float64
	portfolioDrawdown float64

	log     *logger.Logger
	metrics service.Metrics
	journal Journal
}

// journalTimeout bounds every journal round trip; the gate must never
// wait on the network longer than this.
const journalTimeout = 2 * time.Second

// New creates an ACTIVE kill switch. journal may be nil.
func New(th Thresholds, log *logger.Logger, metrics service.Metrics, journal Journal) *Switch {
	s := &Switch{
		th:            th,
		state:         StateActive,
		blockedLayers: make(map[Layer]string),
		strategies:    make(map[string]*strategyStat),
		log:           log,
		metrics:       metrics,
		journal:       journal,
	}
	s.restore()
	return s
}

var _ service.KillSwitch = (*Switch)(nil)

// restore replays a journaled block so a restart never forgets one.
func (s *Switch) restore() {
	if s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	entry, ok, err := s.journal.Load(ctx)
	if err != nil {
		s.log.Warn("kill switch journal unavailable", logger.Error(err))
		return
	}
	if !ok {
		return
	}
	s.state = StateBlocked
	s.blockedAt = entry.BlockedAt
	for layer, reason := range entry.Layers {
		s.blockedLayers[Layer(layer)] = reason
	}
	s.log.Warn("kill switch restored BLOCKED state from journal",
		logger.Int("layers", len(entry.Layers)))
}

// CanSendOrders is the single pre-send gate. It must be consulted
// before every order; state can transition at any time.
func (s *Switch) CanSendOrders() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateActive
}

// Status returns a copy of the current state.
func (s *Switch) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	layers := make(map[Layer]string, len(s.blockedLayers))
	for l, r := range s.blockedLayers {
		layers[l] = r
	}
	return Status{
		State:         s.state,
		BlockedLayers: layers,
		BlockedAt:     s.blockedAt,
		BlockCount:    s.blockCount,
	}
}

// RecordTradeRisk trips layer 1 when a single trade's risk exceeds the cap.
func (s *Switch) RecordTradeRisk(riskPct float64) {
	if riskPct <= s.th.PerTradeRiskCapPct {
		return
	}
	s.mu.Lock()
	entry, changed := s.blockLocked(LayerPerTradeRisk, "per-trade risk cap exceeded")
	s.mu.Unlock()
	s.persist(entry, changed)
}

// RecordDailyDrawdown trips layer 2 at the daily cutoff.
func (s *Switch) RecordDailyDrawdown(drawdownPct float64) {
	s.mu.Lock()
	s.dailyDrawdown = drawdownPct
	var entry JournalEntry
	var changed bool
	if drawdownPct >= s.th.DailyDrawdownPct {
		entry, changed = s.blockLocked(LayerDailyDrawdown, "daily drawdown cutoff reached")
	}
	s.mu.Unlock()
	s.persist(entry, changed)
}

// RecordTradeOutcome feeds layer 3, the per-strategy circuit breaker.
func (s *Switch) RecordTradeOutcome(strategyID string, pnlPct float64) {
	s.mu.Lock()

	stat, ok := s.strategies[strategyID]
	if !ok {
		stat = &strategyStat{}
		s.strategies[strategyID] = stat
	}
	stat.trades++
	if pnlPct < 0 {
		stat.consecutiveLosses++
	} else {
		stat.consecutiveLosses = 0
		if pnlPct > 0 {
			stat.wins++
		}
	}

	var entry JournalEntry
	var changed bool
	switch {
	case stat.consecutiveLosses >= s.th.MaxConsecutiveLosses:
		entry, changed = s.blockLocked(LayerStrategyCircuit, "consecutive losses for "+strategyID)
	case stat.trades >= s.th.MinTradesForWinRate:
		winRate := float64(stat.wins) / float64(stat.trades)
		if winRate < s.th.MinWinRate {
			entry, changed = s.blockLocked(LayerStrategyCircuit, "win rate collapse for "+strategyID)
		}
	}
	s.mu.Unlock()
	s.persist(entry, changed)
}

// RecordPortfolioDrawdown trips layer 4, the aggregate emergency stop.
func (s *Switch) RecordPortfolioDrawdown(drawdownPct float64) {
	s.mu.Lock()
	s.portfolioDrawdown = drawdownPct
	var entry JournalEntry
	var changed bool
	if drawdownPct >= s.th.PortfolioDrawdownPct {
		entry, changed = s.blockLocked(LayerPortfolioStop, "portfolio drawdown emergency stop")
	}
	s.mu.Unlock()
	s.persist(entry, changed)
}

// EmergencyStop forces BLOCKED unconditionally from any state.
func (s *Switch) EmergencyStop(reason string) {
	s.mu.Lock()
	entry, changed := s.blockLocked(LayerManual, reason)
	s.mu.Unlock()
	s.persist(entry, changed)
}

// DailyReset returns the switch to ACTIVE only when no layer condition
// is still true. A refused reset logs why and leaves the block intact.
func (s *Switch) DailyReset() bool {
	s.mu.Lock()

	if s.state == StateActive {
		s.resetStatsLocked()
		s.mu.Unlock()
		return true
	}

	if s.dailyDrawdown >= s.th.DailyDrawdownPct {
		s.log.Warn("daily reset refused: drawdown cutoff still breached",
			logger.Float64("drawdown_pct", s.dailyDrawdown))
		s.mu.Unlock()
		return false
	}
	if s.portfolioDrawdown >= s.th.PortfolioDrawdownPct {
		s.log.Warn("daily reset refused: portfolio drawdown still breached",
			logger.Float64("drawdown_pct", s.portfolioDrawdown))
		s.mu.Unlock()
		return false
	}

	s.state = StateActive
	s.blockedLayers = make(map[Layer]string)
	s.blockedAt = time.Time{}
	s.resetStatsLocked()
	s.mu.Unlock()

	if s.journal != nil {
		ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
		defer cancel()
		if err := s.journal.Clear(ctx); err != nil {
			s.log.Warn("kill switch journal clear failed", logger.Error(err))
		}
	}
	s.log.Info("kill switch reset to ACTIVE")
	return true
}

// blockLocked transitions to BLOCKED. Callers hold s.mu. The first
// transition records the timestamp; every tripped layer is kept. The
// returned snapshot is journaled by the caller after unlocking; a
// repeated trip of an already-recorded layer changes nothing and must
// not reach the journal.
func (s *Switch) blockLocked(layer Layer, reason string) (JournalEntry, bool) {
	changed := false
	if _, already := s.blockedLayers[layer]; !already {
		changed = true
		s.blockCount++
		if s.metrics != nil {
			s.metrics.RecordKillSwitchBlock(string(layer))
		}
	}
	s.blockedLayers[layer] = reason
	if s.state != StateBlocked {
		changed = true
		s.state = StateBlocked
		s.blockedAt = time.Now().UTC()
		s.log.Error("kill switch BLOCKED",
			logger.String("layer", string(layer)),
			logger.String("reason", reason))
	}
	entry := JournalEntry{BlockedAt: s.blockedAt, Layers: make(map[string]string, len(s.blockedLayers))}
	for l, r := range s.blockedLayers {
		entry.Layers[string(l)] = r
	}
	return entry, changed
}

// persist journals a block transition outside the gate mutex so
// CanSendOrders never waits on journal I/O.
func (s *Switch) persist(entry JournalEntry, changed bool) {
	if !changed || s.journal == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), journalTimeout)
	defer cancel()
	if err := s.journal.Store(ctx, entry); err != nil {
		s.log.Warn("kill switch journal write failed", logger.Error(err))
	}
}

// resetStatsLocked clears daily counters. Callers hold s.mu.
func (s *Switch) resetStatsLocked() {
	s.strategies = make(map[string]*strategyStat)
	s.dailyDrawdown = 0
	s.portfolioDrawdown = 0
}
