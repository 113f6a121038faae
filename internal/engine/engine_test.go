package engine

import (
	"context"
	"testing"
	"time"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/internal/ledger"
	"RiskArbiter/internal/services/allocation"
	"RiskArbiter/internal/services/arbiter"
	"RiskArbiter/internal/services/correlation"
	"RiskArbiter/internal/services/exposure"
	"RiskArbiter/internal/services/killswitch"
	"RiskArbiter/pkg/logger"
)

// fixedScorer returns preset scores keyed by signal id, so engine
// tests control arbitration outcomes without market fixtures.
type fixedScorer struct {
	scores map[string]float64
}

func (f *fixedScorer) Evaluate(c *models.SignalCandidate, _ *models.CorrelationSnapshot) models.QualityEvaluation {
	return models.QualityEvaluation{
		Score:       f.scores[c.SignalID],
		Confidence:  1.0,
		EvaluatedAt: time.Now(),
	}
}

type testRig struct {
	engine *Engine
	ledger *ledger.Ledger
	ks     *killswitch.Switch
}

func newRig(t *testing.T, scores map[string]float64, th killswitch.Thresholds) *testRig {
	t.Helper()
	log := logger.Nop()

	caps := exposure.Caps{TotalPct: 10, SymbolPct: 3, StrategyPct: 5, SectorPct: 6, DirectionPct: 8, ClusterPct: 4}
	tracker, err := exposure.New(caps, log, nil)
	if err != nil {
		t.Fatalf("tracker: %v", err)
	}

	limits := service.AllocationLimits{
		MinScore: 0.50, MaxRiskPct: 2.0, MinTradablePct: 0.05,
		SigmoidSlope: 12.0, SigmoidMidpoint: 0.655,
	}
	alloc := allocation.New(limits, log)

	arb := arbiter.New(arbiter.Config{
		LockTimeout:    250 * time.Millisecond,
		LiquidityFloor: 1.0,
		SlippageBps:    1.5,
	}, tracker, alloc, log, nil)

	corr := correlation.New(250, 0.7)
	ks := killswitch.New(th, log, nil, nil)
	led := ledger.New(1000, log, nil)

	eng := New(&fixedScorer{scores: scores}, arb, tracker, corr, ks, led, nil, NewBroadcaster(16), nil, log)
	return &testRig{engine: eng, ledger: led, ks: ks}
}

func defaultThresholds() killswitch.Thresholds {
	return killswitch.Thresholds{
		PerTradeRiskCapPct:   2.5,
		DailyDrawdownPct:     3.0,
		MaxConsecutiveLosses: 3,
		MinWinRate:           0.3,
		MinTradesForWinRate:  10,
		PortfolioDrawdownPct: 10.0,
	}
}

func candidate(signalID, symbol string, dir models.Direction) *models.SignalCandidate {
	return &models.SignalCandidate{
		SignalID:   signalID,
		StrategyID: "strat-a",
		Symbol:     symbol,
		Direction:  dir,
		Horizon:    "H1",
		Entry:      1.1000,
		Stop:       1.0950,
		Targets:    []float64{1.1150},
		Strength:   0.8,
		Market: models.MarketContext{
			Symbol:   symbol,
			Spread:   0.00002,
			Depth:    5_000_000,
			HasDepth: true,
		},
		StrategyWinRate: 0.6,
		StrategyTrades:  120,
		SubmittedAt:     time.Now(),
	}
}

func TestCycleAdmitsAndLedgers(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-1": 0.91}, defaultThresholds())

	res, err := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
	})
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if len(res.Decisions) != 1 || !res.Decisions[0].Accepted() {
		t.Fatalf("expected one admission, got %+v", res.Decisions)
	}
	if len(res.Sendable) != 1 {
		t.Fatalf("admitted decision should be sendable")
	}
	if rig.ledger.Len() != 1 {
		t.Fatalf("decision not ledgered")
	}
	if got, ok := rig.ledger.Get(res.Decisions[0].ID); !ok || got.Allocation == nil {
		t.Fatalf("ledgered decision missing allocation")
	}
}

func TestCycleRejectsDuplicateIntention(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-1": 0.91, "sig-2": 0.78}, defaultThresholds())

	res, _ := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
		candidate("sig-2", "EURUSD", models.DirectionLong),
	})
	if len(res.Decisions) != 2 {
		t.Fatalf("expected 2 decisions, got %d", len(res.Decisions))
	}
	for _, d := range res.Decisions {
		switch d.SignalID {
		case "sig-1":
			if !d.Accepted() {
				t.Fatalf("sig-1 should be admitted: %s", d.Detail)
			}
		case "sig-2":
			if d.Reason != models.ReasonDuplicateIntentionLost {
				t.Fatalf("sig-2 expected %s, got %s", models.ReasonDuplicateIntentionLost, d.Reason)
			}
		}
	}
}

func TestCycleRejectsInvalidCandidateAndContinues(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-ok": 0.80}, defaultThresholds())

	bad := candidate("sig-bad", "EURUSD", models.DirectionLong)
	bad.Entry = 0 // fails struct validation

	res, _ := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		bad,
		candidate("sig-ok", "GBPUSD", models.DirectionLong),
	})
	if len(res.Decisions) != 2 {
		t.Fatalf("one bad candidate must not abort the batch")
	}
	for _, d := range res.Decisions {
		switch d.SignalID {
		case "sig-bad":
			if d.Reason != models.ReasonValidationFailed {
				t.Fatalf("expected %s, got %s", models.ReasonValidationFailed, d.Reason)
			}
			if d.Detail == "" {
				t.Fatalf("rejection must carry an explanation")
			}
		case "sig-ok":
			if !d.Accepted() {
				t.Fatalf("valid candidate should be admitted: %s", d.Detail)
			}
		}
	}
}

func TestCycleBlockedKillSwitchRejectsAll(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-1": 0.95}, defaultThresholds())
	rig.ks.EmergencyStop("operator halt")

	res, _ := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
	})
	if len(res.Decisions) != 1 {
		t.Fatalf("expected 1 decision")
	}
	d := res.Decisions[0]
	if d.Reason != models.ReasonKillSwitchBlocked {
		t.Fatalf("expected %s, got %s", models.ReasonKillSwitchBlocked, d.Reason)
	}
	if rig.ledger.Len() != 1 {
		t.Fatalf("blocked rejection must still be ledgered")
	}
	if len(res.Sendable) != 0 {
		t.Fatalf("nothing is sendable while blocked")
	}
}

func TestMidCycleBlockSuppressesAtPreSendGate(t *testing.T) {
	// Per-trade risk cap below the allocation the 0.95 score produces:
	// the block lands after arbitration, before the pre-send gate.
	th := defaultThresholds()
	th.PerTradeRiskCapPct = 0.5
	rig := newRig(t, map[string]float64{"sig-1": 0.95}, th)

	res, _ := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
	})
	d := res.Decisions[0]
	if !d.Accepted() {
		t.Fatalf("decision should remain ACCEPT in the ledger: %s", d.Detail)
	}
	if len(res.Sendable) != 0 || res.Suppressed != 1 {
		t.Fatalf("accepted order must be suppressed at the pre-send gate, sendable=%d suppressed=%d",
			len(res.Sendable), res.Suppressed)
	}
	if rig.ks.CanSendOrders() {
		t.Fatalf("kill switch should be blocked")
	}
	if got, ok := rig.ledger.Get(d.ID); !ok || !got.Accepted() {
		t.Fatalf("ledgered decision must not be retroactively invalidated")
	}
	// The suppressed order never goes out, so its reservation must not
	// survive the cycle and silt up the caps.
	if snap := rig.engine.Budget(); snap.TotalCommitted != 0 {
		t.Fatalf("suppressed order left %.4f%% committed", snap.TotalCommitted)
	}
}

func TestReleaseDecisionFreesBudget(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-1": 0.91}, defaultThresholds())

	res, _ := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
	})
	id := res.Decisions[0].ID

	if snap := rig.engine.Budget(); snap.TotalCommitted <= 0 {
		t.Fatalf("admission should commit budget, got %.4f", snap.TotalCommitted)
	}
	if !rig.engine.ReleaseDecision(id) {
		t.Fatalf("release of accepted decision failed")
	}
	if snap := rig.engine.Budget(); snap.TotalCommitted != 0 {
		t.Fatalf("release left %.4f%% committed", snap.TotalCommitted)
	}
	if rig.engine.ReleaseDecision(id) {
		t.Fatalf("second release of the same decision must fail")
	}
	if rig.engine.ReleaseDecision("unknown") {
		t.Fatalf("release of unknown decision must fail")
	}
}

func TestReleaseDecisionRefusedForRejection(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-1": 0.30}, defaultThresholds())

	res, _ := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
	})
	d := res.Decisions[0]
	if d.Accepted() {
		t.Fatalf("low score should be rejected")
	}
	if rig.engine.ReleaseDecision(d.ID) {
		t.Fatalf("rejected decision holds no reservation to release")
	}
}

func TestEnrichDecision(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-1": 0.91}, defaultThresholds())

	res, _ := rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
	})
	id := res.Decisions[0].ID

	meta := models.ExecutionMetadata{OrderID: "ord-1", FillPrice: 1.1002, FillVolume: 10000, FilledAt: time.Now()}
	if !rig.engine.EnrichDecision(id, meta) {
		t.Fatalf("enrich failed")
	}
	if rig.engine.EnrichDecision("unknown", meta) {
		t.Fatalf("enrich of unknown id must fail")
	}
	got, _ := rig.ledger.Get(id)
	if got.Execution == nil || got.Execution.OrderID != "ord-1" {
		t.Fatalf("execution metadata not attached")
	}
}

func TestBroadcasterDeliversDecisions(t *testing.T) {
	rig := newRig(t, map[string]float64{"sig-1": 0.91}, defaultThresholds())

	ch, cancel := rig.engine.Events().Subscribe()
	defer cancel()

	rig.engine.RunCycle(context.Background(), []*models.SignalCandidate{
		candidate("sig-1", "EURUSD", models.DirectionLong),
	})

	select {
	case d := <-ch:
		if d.SignalID != "sig-1" {
			t.Fatalf("unexpected decision %s", d.SignalID)
		}
	case <-time.After(time.Second):
		t.Fatalf("no decision published")
	}
}
