package kafka

import (
	"sync"
	"testing"
	"time"
)

func TestNewProducerRequiresBrokers(t *testing.T) {
	if _, err := NewProducer(); err == nil {
		t.Fatalf("expected error without brokers")
	}
}

func TestConcurrentProducersShareMetrics(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := NewProducer(WithBrokers([]string{"localhost:9092"}))
			if err != nil {
				t.Errorf("producer: %v", err)
				return
			}
			// Observing right after construction must always see fully
			// initialized metric vars, even when another constructor
			// runs concurrently.
			observeProducerMetrics("audit", p.comp, 1, 1, time.Millisecond, nil)
		}()
	}
	wg.Wait()

	if producerMsgsTotal == nil || producerErrsTotal == nil || producerLatencyHist == nil {
		t.Fatalf("producer metrics left uninitialized")
	}
}

func TestEncodeValue(t *testing.T) {
	if v, _ := encodeValue([]byte("raw")); string(v) != "raw" {
		t.Fatalf("byte passthrough broken")
	}
	if v, _ := encodeValue("text"); string(v) != "text" {
		t.Fatalf("string passthrough broken")
	}
	v, err := encodeValue(map[string]int{"a": 1})
	if err != nil || string(v) != `{"a":1}` {
		t.Fatalf("json encoding broken: %s %v", v, err)
	}
}
