package killswitch

import (
	"context"
	"sync"
	"testing"
	"time"

	"RiskArbiter/pkg/cache"
	"RiskArbiter/pkg/logger"
)

// slowJournal counts Store calls and holds each one for delay.
type slowJournal struct {
	mu     sync.Mutex
	delay  time.Duration
	stores int
}

func (j *slowJournal) Store(ctx context.Context, entry JournalEntry) error {
	j.mu.Lock()
	j.stores++
	j.mu.Unlock()
	time.Sleep(j.delay)
	return nil
}

func (j *slowJournal) Load(ctx context.Context) (JournalEntry, bool, error) {
	return JournalEntry{}, false, nil
}

func (j *slowJournal) Clear(ctx context.Context) error { return nil }

func (j *slowJournal) storeCount() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.stores
}

func testThresholds() Thresholds {
	return Thresholds{
		PerTradeRiskCapPct:   2.0,
		DailyDrawdownPct:     5.0,
		MaxConsecutiveLosses: 3,
		MinWinRate:           0.25,
		MinTradesForWinRate:  10,
		PortfolioDrawdownPct: 10.0,
	}
}

func TestInitiallyActive(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	if !s.CanSendOrders() {
		t.Fatalf("new switch must be ACTIVE")
	}
}

func TestPerTradeRiskLayer(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.RecordTradeRisk(1.5)
	if !s.CanSendOrders() {
		t.Fatalf("risk within cap must not block")
	}
	s.RecordTradeRisk(2.5)
	if s.CanSendOrders() {
		t.Fatalf("risk above cap must block")
	}
	st := s.Status()
	if _, ok := st.BlockedLayers[LayerPerTradeRisk]; !ok {
		t.Fatalf("blocking layer not recorded: %+v", st.BlockedLayers)
	}
}

func TestDailyDrawdownLayer(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.RecordDailyDrawdown(5.1)
	if s.CanSendOrders() {
		t.Fatalf("drawdown beyond cutoff must block")
	}
}

func TestStrategyCircuitConsecutiveLosses(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.RecordTradeOutcome("momo", -0.1)
	s.RecordTradeOutcome("momo", -0.2)
	if !s.CanSendOrders() {
		t.Fatalf("two losses must not block")
	}
	s.RecordTradeOutcome("momo", -0.1)
	if s.CanSendOrders() {
		t.Fatalf("three consecutive losses must block")
	}
}

func TestStrategyCircuitWinRate(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	// Loss-loss-scratch pattern: no loss streak reaches three, but the
	// win rate stays at zero.
	for i := 0; i < 9; i++ {
		pnl := -1.0
		if i%3 == 2 {
			pnl = 0
		}
		s.RecordTradeOutcome("mr", pnl)
	}
	if !s.CanSendOrders() {
		t.Fatalf("win rate not checked before minimum trade count")
	}
	s.RecordTradeOutcome("mr", -1)
	if s.CanSendOrders() {
		t.Fatalf("win rate collapse must block")
	}
}

func TestPortfolioStopLayer(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.RecordPortfolioDrawdown(10.5)
	if s.CanSendOrders() {
		t.Fatalf("portfolio drawdown must block")
	}
}

func TestEmergencyStopUnconditional(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.EmergencyStop("operator intervention")
	if s.CanSendOrders() {
		t.Fatalf("emergency stop must block")
	}
	st := s.Status()
	if st.BlockedLayers[LayerManual] != "operator intervention" {
		t.Fatalf("manual reason not recorded: %+v", st.BlockedLayers)
	}
}

func TestFailClosedUnderConcurrency(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.RecordDailyDrawdown(6.0)
		}()
	}
	wg.Wait()
	for i := 0; i < 100; i++ {
		if s.CanSendOrders() {
			t.Fatalf("blocked state lost")
		}
	}
}

func TestDailyResetRefusedWhileTriggered(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.RecordDailyDrawdown(6.0)
	if s.DailyReset() {
		t.Fatalf("reset must be refused while drawdown persists")
	}
	if s.CanSendOrders() {
		t.Fatalf("refused reset must leave switch blocked")
	}
}

func TestDailyResetSucceedsWhenClear(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.EmergencyStop("end of day check")
	if !s.DailyReset() {
		t.Fatalf("reset should succeed when no metric condition persists")
	}
	if !s.CanSendOrders() {
		t.Fatalf("switch should be ACTIVE after reset")
	}
}

func TestBlockCountMonotonic(t *testing.T) {
	s := New(testThresholds(), logger.Nop(), nil, nil)
	s.EmergencyStop("one")
	s.DailyReset()
	s.EmergencyStop("two")
	if got := s.Status().BlockCount; got != 2 {
		t.Fatalf("expected lifetime block count 2, got %d", got)
	}
}

func TestGateNotStalledByJournalWrite(t *testing.T) {
	journal := &slowJournal{delay: 300 * time.Millisecond}
	s := New(testThresholds(), logger.Nop(), nil, journal)

	done := make(chan struct{})
	go func() {
		s.RecordDailyDrawdown(9.0)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for s.CanSendOrders() {
		if time.Now().After(deadline) {
			t.Fatalf("block never became visible")
		}
		time.Sleep(time.Millisecond)
	}

	// The journal write is still in flight; the gate must answer
	// immediately regardless.
	start := time.Now()
	if s.CanSendOrders() {
		t.Fatalf("expected block")
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("gate waited %v on journal I/O", elapsed)
	}
	<-done
}

func TestJournalWrittenOnlyOnTransition(t *testing.T) {
	journal := &slowJournal{}
	s := New(testThresholds(), logger.Nop(), nil, journal)

	s.RecordDailyDrawdown(6.0)
	s.RecordDailyDrawdown(6.5)
	s.RecordDailyDrawdown(7.0)

	if got := journal.storeCount(); got != 1 {
		t.Fatalf("expected a single journal write for one transition, got %d", got)
	}

	// A second layer tripping is a change and is journaled again.
	s.RecordPortfolioDrawdown(11.0)
	if got := journal.storeCount(); got != 2 {
		t.Fatalf("expected second write for new layer, got %d", got)
	}
}

func TestJournalRestoresBlock(t *testing.T) {
	store := cache.NewMemoryCache()
	journal := NewCacheJournal(store)

	s := New(testThresholds(), logger.Nop(), nil, journal)
	s.EmergencyStop("host maintenance")
	if s.CanSendOrders() {
		t.Fatalf("expected block")
	}

	// Simulated restart: a fresh switch over the same journal.
	s2 := New(testThresholds(), logger.Nop(), nil, journal)
	if s2.CanSendOrders() {
		t.Fatalf("restart forgot BLOCKED state")
	}
	if _, ok := s2.Status().BlockedLayers[LayerManual]; !ok {
		t.Fatalf("restored layers missing manual block")
	}
}
