package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/pkg/logger"
)

type captureSink struct {
	mu       sync.Mutex
	got      []string
	failures int
}

func (s *captureSink) Record(_ context.Context, d *models.Decision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("sink unavailable")
	}
	s.got = append(s.got, d.ID)
	return nil
}

func (s *captureSink) Close() error { return nil }

func (s *captureSink) ids() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

func decision(id string) *models.Decision {
	return &models.Decision{ID: id, Status: models.DecisionAccept, Reason: models.ReasonAccepted}
}

func TestDispatcherDelivers(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{QueueSize: 8, Workers: 2}, logger.Nop(), sink)
	d.Start(context.Background())

	for i := 0; i < 5; i++ {
		if !d.Enqueue(decision("d-" + string(rune('0'+i)))) {
			t.Fatalf("enqueue %d refused", i)
		}
	}
	d.Stop()

	if len(sink.ids()) != 5 {
		t.Fatalf("expected 5 deliveries, got %d", len(sink.ids()))
	}
}

func TestDispatcherRetriesTransientFailure(t *testing.T) {
	sink := &captureSink{failures: 1}
	d := NewDispatcher(Config{QueueSize: 8, Workers: 1, RetryLimit: 3, RetryDelay: time.Millisecond}, logger.Nop(), sink)
	d.Start(context.Background())

	d.Enqueue(decision("d-1"))
	deadline := time.Now().Add(time.Second)
	for len(sink.ids()) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	d.Stop()

	if got := sink.ids(); len(got) != 1 || got[0] != "d-1" {
		t.Fatalf("expected delivery after retry, got %v", got)
	}
}

func TestDispatcherFullQueueDropsWithoutBlocking(t *testing.T) {
	sink := &captureSink{}
	d := NewDispatcher(Config{QueueSize: 1, Workers: 1}, logger.Nop(), sink)
	// not started: the queue fills immediately

	if !d.Enqueue(decision("d-1")) {
		t.Fatalf("first enqueue should fit")
	}
	if d.Enqueue(decision("d-2")) {
		t.Fatalf("second enqueue should be dropped")
	}
	if d.Dropped() != 1 {
		t.Fatalf("expected 1 drop, got %d", d.Dropped())
	}
}

func TestDispatcherNoSinksRefuses(t *testing.T) {
	d := NewDispatcher(Config{}, logger.Nop())
	if d.Enqueue(decision("d-1")) {
		t.Fatalf("dispatcher without sinks should refuse")
	}
}
