package exposure

import (
	"fmt"
	"math"
	"sync"
	"testing"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/pkg/logger"
)

func testCaps() Caps {
	return Caps{
		TotalPct:     10,
		SymbolPct:    3,
		StrategyPct:  5,
		SectorPct:    6,
		DirectionPct: 8,
		ClusterPct:   4,
	}
}

func testCandidate(signalID, strategyID, symbol string) *models.SignalCandidate {
	return &models.SignalCandidate{
		SignalID:   signalID,
		StrategyID: strategyID,
		Symbol:     symbol,
		Direction:  models.DirectionLong,
		Market:     models.MarketContext{Sector: "fx"},
	}
}

func TestNewRejectsNegativeCaps(t *testing.T) {
	caps := testCaps()
	caps.SymbolPct = -1
	if _, err := New(caps, logger.Nop(), nil); err == nil {
		t.Fatalf("expected error for negative cap")
	}
}

func TestCheckAndReserveCommits(t *testing.T) {
	tr, err := New(testCaps(), logger.Nop(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	check, err := tr.CheckAndReserve(testCandidate("s1", "momo", "EURUSD"), 1.5, 0)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if !check.Passed {
		t.Fatalf("expected pass: %+v", check)
	}
	snap := tr.Snapshot()
	if snap.TotalCommitted != 1.5 || snap.BySymbol["EURUSD"] != 1.5 {
		t.Fatalf("ledger not committed: %+v", snap)
	}
}

func TestCapBreachRejectedWithoutCommit(t *testing.T) {
	tr, _ := New(testCaps(), logger.Nop(), nil)
	if _, err := tr.CheckAndReserve(testCandidate("s1", "momo", "EURUSD"), 2.5, 0); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	// symbol cap is 3.0; another 1.0 would breach it
	check, err := tr.CheckAndReserve(testCandidate("s2", "momo", "EURUSD"), 1.0, 0)
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if check.Passed {
		t.Fatalf("expected breach rejection")
	}
	failed, ok := check.FailedDimension()
	if !ok || failed.Dimension != models.DimensionSymbol {
		t.Fatalf("unexpected failed dimension: %+v", failed)
	}
	if snap := tr.Snapshot(); snap.TotalCommitted != 2.5 {
		t.Fatalf("rejected reservation leaked into ledger: %v", snap.TotalCommitted)
	}
}

func TestNegativeDeltaRejected(t *testing.T) {
	tr, _ := New(testCaps(), logger.Nop(), nil)
	if _, err := tr.CheckAndReserve(testCandidate("s1", "momo", "EURUSD"), -0.5, 0); err == nil {
		t.Fatalf("expected error for negative delta")
	}
	if _, err := tr.CheckAndReserve(testCandidate("s1", "momo", "EURUSD"), math.NaN(), 0); err == nil {
		t.Fatalf("expected error for NaN delta")
	}
}

func TestReleaseFreesExactly(t *testing.T) {
	tr, _ := New(testCaps(), logger.Nop(), nil)
	tr.CheckAndReserve(testCandidate("s1", "momo", "EURUSD"), 1.1, 0)
	tr.CheckAndReserve(testCandidate("s2", "momo", "GBPUSD"), 0.7, 0)

	if !tr.Release("s1") {
		t.Fatalf("release failed")
	}
	if tr.Release("s1") {
		t.Fatalf("double release must fail")
	}
	snap := tr.Snapshot()
	if math.Abs(snap.TotalCommitted-0.7) > 1e-12 {
		t.Fatalf("unexpected total after release: %v", snap.TotalCommitted)
	}
	if math.Abs(snap.BySymbol["EURUSD"]) > 1e-12 {
		t.Fatalf("symbol ledger not freed: %v", snap.BySymbol["EURUSD"])
	}
}

func TestRepeatedCyclesNoDrift(t *testing.T) {
	tr, _ := New(testCaps(), logger.Nop(), nil)
	for i := 0; i < 1000; i++ {
		id := fmt.Sprintf("s%d", i)
		if _, err := tr.CheckAndReserve(testCandidate(id, "momo", "EURUSD"), 0.1, 0); err != nil {
			t.Fatalf("reserve: %v", err)
		}
		tr.Release(id)
	}
	if snap := tr.Snapshot(); snap.TotalCommitted != 0 {
		t.Fatalf("ledger drifted after cycles: %v", snap.TotalCommitted)
	}
}

func TestConcurrentReservationsNeverJointlyBreach(t *testing.T) {
	caps := testCaps()
	caps.TotalPct = 5
	caps.SymbolPct = 0 // disable narrower caps so total is binding
	caps.StrategyPct = 0
	caps.SectorPct = 0
	caps.DirectionPct = 0
	caps.ClusterPct = 0
	tr, _ := New(caps, logger.Nop(), nil)

	const workers = 50
	var wg sync.WaitGroup
	passed := make(chan struct{}, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := testCandidate(fmt.Sprintf("s%d", n), "momo", "EURUSD")
			check, err := tr.CheckAndReserve(c, 1.0, -1)
			if err == nil && check.Passed {
				passed <- struct{}{}
			}
		}(i)
	}
	wg.Wait()
	close(passed)

	var admitted int
	for range passed {
		admitted++
	}
	if admitted > 5 {
		t.Fatalf("cap jointly breached: %d admissions against cap 5", admitted)
	}
	if snap := tr.Snapshot(); snap.TotalCommitted > 5 {
		t.Fatalf("total committed exceeds cap: %v", snap.TotalCommitted)
	}
}

func TestHeadroomReadOnly(t *testing.T) {
	tr, _ := New(testCaps(), logger.Nop(), nil)
	tr.CheckAndReserve(testCandidate("s1", "momo", "EURUSD"), 2.0, 0)

	check := tr.Headroom(testCandidate("s2", "momo", "EURUSD"), 0)
	if math.Abs(check.MinHeadroom-1.0) > 1e-12 {
		t.Fatalf("unexpected min headroom: %v", check.MinHeadroom)
	}
	if snap := tr.Snapshot(); snap.TotalCommitted != 2.0 {
		t.Fatalf("headroom probe mutated ledger: %v", snap.TotalCommitted)
	}
}

func TestInvariantHookFiresOnCorruption(t *testing.T) {
	tr, _ := New(testCaps(), logger.Nop(), nil)
	var fired string
	tr.SetInvariantHook(func(reason string) { fired = reason })

	// Corrupt the ledger through the internal state to simulate the
	// defect class the hook exists for.
	tr.CheckAndReserve(testCandidate("s1", "momo", "EURUSD"), 0.5, 0)
	tr.mu.Lock()
	res := tr.reservations["s1"]
	res.amount = res.amount.Add(res.amount) // release will subtract double
	tr.reservations["s1"] = res
	tr.mu.Unlock()

	tr.Release("s1")
	if fired == "" {
		t.Fatalf("invariant hook did not fire on negative ledger")
	}
}
